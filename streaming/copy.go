// Copyright (c) 2026 Slonik Authors. All rights reserved.

package streaming

import (
	"context"

	"github.com/taibuivan/slonik/driver"
	"github.com/taibuivan/slonik/internal/platform/ident"
)

// CopyResult reports how many rows a [CopyFromBinary] call uploaded.
type CopyResult struct {
	RowCount int64
}

// CopyFromBinary streams tuples into sql (a `COPY … FROM STDIN BINARY`
// statement) using columnTypes to encode each column — spec §4.H's
// `copyFromBinary`. The connection is always released, destroyed on
// failure since a partially-uploaded COPY leaves the connection's wire
// state unrecoverable for reuse.
func CopyFromBinary(ctx context.Context, drv driver.Driver, connID ident.ConnectionID, release func(destroy bool), sql string, columnTypes []string, tuples [][]any) (CopyResult, error) {
	rowCount, err := drv.CopyInBinary(ctx, connID, sql, columnTypes, tuples)
	release(err != nil)
	if err != nil {
		return CopyResult{}, err
	}
	return CopyResult{RowCount: rowCount}, nil
}
