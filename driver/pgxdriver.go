// Copyright (c) 2026 Slonik Authors. All rights reserved.

package driver

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/slonik/internal/platform/ident"
)

// pgxDriver implements [Driver] over a *pgxpool.Pool. It is the only
// place in the module that imports pgx's connection-level API; everything
// above it (pool manager, transaction state machine, execution pipeline)
// speaks only [Driver].
type pgxDriver struct {
	pool *pgxpool.Pool

	mu            sync.Mutex
	conns         map[ident.ConnectionID]*pgxpool.Conn
	errorHandlers map[ident.ConnectionID]ErrorHandler

	notices *NoticeBroker
}

// NewPgxDriver wraps an already-constructed pool (see
// internal/platform/postgres for pool construction and tuning) as a
// [Driver]. notices must be the same [*NoticeBroker] installed as the
// pool's ConnConfig.OnNotice handler, so notices captured during Execute
// can be attributed to the connection that produced them.
func NewPgxDriver(pool *pgxpool.Pool, notices *NoticeBroker) Driver {
	return &pgxDriver{
		pool:          pool,
		conns:         make(map[ident.ConnectionID]*pgxpool.Conn),
		errorHandlers: make(map[ident.ConnectionID]ErrorHandler),
		notices:       notices,
	}
}

func (d *pgxDriver) Acquire(ctx context.Context, _ ident.PoolID) (ident.ConnectionID, error) {
	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return "", fmt.Errorf("driver: acquire: %w", err)
	}

	id := ident.NewConnectionID()

	d.mu.Lock()
	d.conns[id] = conn
	d.mu.Unlock()

	d.notices.bind(conn.Conn().PgConn(), id)

	return id, nil
}

func (d *pgxDriver) Release(ctx context.Context, id ident.ConnectionID, destroy bool) error {
	d.mu.Lock()
	conn, ok := d.conns[id]
	delete(d.conns, id)
	delete(d.errorHandlers, id)
	d.mu.Unlock()

	if !ok {
		return fmt.Errorf("driver: release: unknown connection %s", id)
	}

	d.notices.unbind(conn.Conn().PgConn())

	if destroy {
		conn.Conn().Close(ctx)
	}
	conn.Release()

	return nil
}

func (d *pgxDriver) conn(id ident.ConnectionID) (*pgxpool.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	conn, ok := d.conns[id]
	if !ok {
		return nil, fmt.Errorf("driver: unknown connection %s", id)
	}
	return conn, nil
}

func (d *pgxDriver) Execute(ctx context.Context, id ident.ConnectionID, sql string, values []any) (ExecResult, error) {
	conn, err := d.conn(id)
	if err != nil {
		return ExecResult{}, err
	}

	rows, err := conn.Conn().Query(ctx, sql, values...)
	if err != nil {
		d.reportError(id, err)
		return ExecResult{}, err
	}
	defer rows.Close()

	typeMap := conn.Conn().TypeMap()

	var result ExecResult
	for rows.Next() {
		rowValues, err := rows.Values()
		if err != nil {
			d.reportError(id, err)
			return ExecResult{}, err
		}
		result.Rows = append(result.Rows, rowValues)
	}
	if err := rows.Err(); err != nil {
		d.reportError(id, err)
		return ExecResult{}, err
	}

	for _, fd := range rows.FieldDescriptions() {
		typeName := ""
		if t, ok := typeMap.TypeForOID(fd.DataTypeOID); ok {
			typeName = t.Name
		}
		result.Fields = append(result.Fields, FieldDescription{
			Name:     fd.Name,
			OID:      fd.DataTypeOID,
			TypeName: typeName,
		})
	}

	result.Command = rows.CommandTag().String()
	result.Notices = d.notices.drain(conn.Conn().PgConn())

	return result, nil
}

func (d *pgxDriver) ExecuteCursor(ctx context.Context, id ident.ConnectionID, sql string, values []any, batchSize int) (Cursor, error) {
	conn, err := d.conn(id)
	if err != nil {
		return nil, err
	}

	rows, err := conn.Conn().Query(ctx, sql, values...)
	if err != nil {
		d.reportError(id, err)
		return nil, err
	}

	return &pgxCursor{rows: rows, conn: conn.Conn(), batchSize: batchSize}, nil
}

func (d *pgxDriver) CopyInBinary(ctx context.Context, id ident.ConnectionID, sql string, columnTypes []string, tuples [][]any) (int64, error) {
	conn, err := d.conn(id)
	if err != nil {
		return 0, err
	}

	n, err := conn.Conn().PgConn().CopyFrom(ctx, newBinaryCopyReader(conn.Conn(), columnTypes, tuples), sql)
	if err != nil {
		d.reportError(id, err)
		return 0, err
	}

	return n.RowsAffected(), nil
}

func (d *pgxDriver) Cancel(ctx context.Context, id ident.ConnectionID) error {
	conn, err := d.conn(id)
	if err != nil {
		return err
	}
	return conn.Conn().PgConn().CancelRequest(ctx)
}

func (d *pgxDriver) SetSessionParameters(ctx context.Context, id ident.ConnectionID, params map[string]string) error {
	conn, err := d.conn(id)
	if err != nil {
		return err
	}

	for name, value := range params {
		// Session parameters cannot be bind parameters; name/value are
		// always produced internally from validated durations, never
		// from user input — see sessionParameters in the pool package.
		if _, err := conn.Conn().Exec(ctx, fmt.Sprintf("SET %s = '%s'", name, value)); err != nil {
			return fmt.Errorf("driver: set session parameter %s: %w", name, err)
		}
	}

	return nil
}

func (d *pgxDriver) OnNotice(id ident.ConnectionID, handler NoticeHandler) {
	d.notices.setHandler(id, handler)
}

func (d *pgxDriver) OnError(id ident.ConnectionID, handler ErrorHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errorHandlers[id] = handler
}

func (d *pgxDriver) reportError(id ident.ConnectionID, err error) {
	d.mu.Lock()
	handler := d.errorHandlers[id]
	d.mu.Unlock()
	if handler != nil {
		handler(err)
	}
}

func (d *pgxDriver) Close(ctx context.Context) error {
	d.pool.Close()
	return nil
}

// pgxCursor adapts a *pgx.Rows into the [Cursor] contract, fetching up to
// batchSize rows per Next call.
type pgxCursor struct {
	rows      pgx.Rows
	conn      *pgx.Conn
	batchSize int
}

func (c *pgxCursor) Next(ctx context.Context) (RowBatch, bool, error) {
	typeMap := c.conn.TypeMap()

	var batch RowBatch
	count := 0
	for count < c.batchSize && c.rows.Next() {
		values, err := c.rows.Values()
		if err != nil {
			return RowBatch{}, false, err
		}
		batch.Rows = append(batch.Rows, values)
		count++
	}
	if err := c.rows.Err(); err != nil {
		return RowBatch{}, false, err
	}

	for _, fd := range c.rows.FieldDescriptions() {
		typeName := ""
		if t, ok := typeMap.TypeForOID(fd.DataTypeOID); ok {
			typeName = t.Name
		}
		batch.Fields = append(batch.Fields, FieldDescription{Name: fd.Name, OID: fd.DataTypeOID, TypeName: typeName})
	}

	return batch, count > 0, nil
}

func (c *pgxCursor) Close(ctx context.Context) error {
	c.rows.Close()
	return nil
}

// NoticeBroker fans out pgconn-level notices to per-connection buffers
// and live handlers. One broker is shared by every physical connection
// in a pool — it is installed once, at pool construction, as
// pgxpool.Config.ConnConfig.OnNotice (see internal/platform/postgres).
type NoticeBroker struct {
	mu       sync.Mutex
	buffers  map[*pgconn.PgConn][]Notice
	bindings map[*pgconn.PgConn]ident.ConnectionID
	handlers map[ident.ConnectionID]NoticeHandler
}

// NewNoticeBroker constructs an empty [*NoticeBroker].
func NewNoticeBroker() *NoticeBroker {
	return &NoticeBroker{
		buffers:  make(map[*pgconn.PgConn][]Notice),
		bindings: make(map[*pgconn.PgConn]ident.ConnectionID),
		handlers: make(map[ident.ConnectionID]NoticeHandler),
	}
}

// OnNoticeFunc is installed as pgx.ConnConfig.OnNotice.
func (b *NoticeBroker) OnNoticeFunc(pgConn *pgconn.PgConn, notice *pgconn.Notice) {
	n := Notice{Severity: notice.Severity, Message: notice.Message, Code: notice.Code}

	b.mu.Lock()
	b.buffers[pgConn] = append(b.buffers[pgConn], n)
	id, bound := b.bindings[pgConn]
	handler := b.handlers[id]
	b.mu.Unlock()

	if bound && handler != nil {
		handler(n)
	}
}

func (b *NoticeBroker) bind(pgConn *pgconn.PgConn, id ident.ConnectionID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bindings[pgConn] = id
}

func (b *NoticeBroker) unbind(pgConn *pgconn.PgConn) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.bindings[pgConn]
	delete(b.bindings, pgConn)
	delete(b.buffers, pgConn)
	delete(b.handlers, id)
}

func (b *NoticeBroker) setHandler(id ident.ConnectionID, handler NoticeHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[id] = handler
}

func (b *NoticeBroker) drain(pgConn *pgconn.PgConn) []Notice {
	b.mu.Lock()
	defer b.mu.Unlock()
	notices := b.buffers[pgConn]
	b.buffers[pgConn] = nil
	return notices
}
