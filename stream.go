// Copyright (c) 2026 Slonik Authors. All rights reserved.

package slonik

import (
	"context"

	"github.com/taibuivan/slonik/sqlb"
	"github.com/taibuivan/slonik/streaming"
)

// Stream opens a server-side cursor over root, fetching batchSize rows
// per round-trip and feeding each to sink — spec §6's `stream` on the
// DatabasePool handle. A fresh connection is acquired for the stream's
// duration and released on completion, sink failure, or cancellation
// alike.
func (p *DatabasePool) Stream(ctx context.Context, batchSize int, root sqlb.Raw, sink func(row sqlb.Row) error) error {
	sql, values, err := sqlb.Interpret(root)
	if err != nil {
		return err
	}

	connID, release, err := p.physical.Acquire(ctx)
	if err != nil {
		return err
	}

	return streaming.Stream(ctx, p.handle.drv, p.handle.registry, connID, release, batchSize, sql, values, sink)
}

// CopyFromBinary streams tuples into a `COPY … FROM STDIN BINARY`
// statement using columnTypes to encode each column — spec §6's
// `copyFromBinary`, available only on the DatabasePool handle.
func (p *DatabasePool) CopyFromBinary(ctx context.Context, sql string, columnTypes []string, tuples [][]any) (streaming.CopyResult, error) {
	connID, release, err := p.physical.Acquire(ctx)
	if err != nil {
		return streaming.CopyResult{}, err
	}

	return streaming.CopyFromBinary(ctx, p.handle.drv, connID, release, sql, columnTypes, tuples)
}
