// Copyright (c) 2026 Slonik Authors. All rights reserved.

package driver

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

var binaryCopySignature = []byte{'P', 'G', 'C', 'O', 'P', 'Y', '\n', 0xff, '\r', '\n', 0x00}

// newBinaryCopyReader encodes tuples into the PostgreSQL binary COPY wire
// format ahead of time and returns an io.Reader suitable for
// [*pgconn.PgConn.CopyFrom]. columnTypes names one registered pgtype per
// column, in tuple order, matching the target `COPY … (col, …) FROM STDIN
// BINARY` column list.
func newBinaryCopyReader(conn *pgx.Conn, columnTypes []string, tuples [][]any) io.Reader {
	buf := &bytes.Buffer{}

	buf.Write(binaryCopySignature)
	_ = binary.Write(buf, binary.BigEndian, int32(0)) // flags
	_ = binary.Write(buf, binary.BigEndian, int32(0)) // header extension length

	typeMap := conn.TypeMap()
	oids := make([]uint32, len(columnTypes))
	for i, name := range columnTypes {
		t, ok := typeMap.TypeForName(name)
		if !ok {
			panic(fmt.Sprintf("driver: copy: unknown column type %q", name))
		}
		oids[i] = t.OID
	}

	for _, tuple := range tuples {
		_ = binary.Write(buf, binary.BigEndian, int16(len(tuple)))
		for i, v := range tuple {
			if v == nil {
				_ = binary.Write(buf, binary.BigEndian, int32(-1))
				continue
			}

			encoded, err := typeMap.Encode(oids[i], pgtype.BinaryFormatCode, v, nil)
			if err != nil {
				panic(fmt.Sprintf("driver: copy: encode column %d: %v", i, err))
			}
			_ = binary.Write(buf, binary.BigEndian, int32(len(encoded)))
			buf.Write(encoded)
		}
	}

	_ = binary.Write(buf, binary.BigEndian, int16(-1)) // file trailer

	return buf
}
