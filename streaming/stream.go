// Copyright (c) 2026 Slonik Authors. All rights reserved.

/*
Package streaming implements the Stream & Copy Executors (component H):
a server-side-cursor-backed row stream and a binary COPY FROM uploader,
both guaranteeing connection release on sink failure, upstream
cancellation, and normal completion alike — spec §4.H.
*/
package streaming

import (
	"context"

	"github.com/taibuivan/slonik/driver"
	"github.com/taibuivan/slonik/internal/platform/ident"
	"github.com/taibuivan/slonik/rowparse"
	"github.com/taibuivan/slonik/sqlb"
)

// Sink receives one row at a time from [Stream]. Returning an error
// aborts the stream early; the cursor and connection are still released.
type Sink func(row sqlb.Row) error

// DefaultBatchSize is the row count fetched per network round-trip when
// the caller does not specify one.
const DefaultBatchSize = 100

// Stream opens a server-side cursor over sql/values on connID, fetching
// batchSize rows per round-trip, and feeds each parsed row to sink
// single-threaded and cooperatively — spec §4.H's `stream`.
//
// The cursor is always closed and release is always called exactly
// once, whether sink returns an error, ctx is cancelled mid-stream, or
// every row is consumed.
func Stream(ctx context.Context, drv driver.Driver, reg *rowparse.Registry, connID ident.ConnectionID, release func(destroy bool), batchSize int, sql string, values []any, sink Sink) (err error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	cursor, err := drv.ExecuteCursor(ctx, connID, sql, values, batchSize)
	if err != nil {
		release(true)
		return err
	}

	destroy := false
	defer func() {
		closeErr := cursor.Close(ctx)
		release(destroy)
		if err == nil {
			err = closeErr
		}
	}()

	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			destroy = true
			return ctxErr
		}

		batch, ok, batchErr := cursor.Next(ctx)
		if batchErr != nil {
			destroy = true
			return batchErr
		}

		for _, raw := range batch.Rows {
			row, parseErr := rowparse.ParseRow(reg, batch.Fields, raw)
			if parseErr != nil {
				destroy = true
				return parseErr
			}
			if sinkErr := sink(row); sinkErr != nil {
				return sinkErr
			}
		}

		if !ok {
			return nil
		}
	}
}
