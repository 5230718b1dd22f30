// Copyright (c) 2026 Slonik Authors. All rights reserved.

package rowparse

import (
	"github.com/taibuivan/slonik/driver"
	"github.com/taibuivan/slonik/slonikerr"
	"github.com/taibuivan/slonik/sqlb"
)

// ParseRow applies reg's column parsers to one driver-decoded row,
// producing a [sqlb.Row] keyed by column name — step 1 of spec §4.C's
// row-parsing pipeline.
func ParseRow(reg *Registry, fields []driver.FieldDescription, raw []any) (sqlb.Row, error) {
	row := make(sqlb.Row, len(fields))

	for i, field := range fields {
		var v any
		if i < len(raw) {
			v = raw[i]
		}

		parsed, err := reg.ParseColumn(field.OID, field.TypeName, v)
		if err != nil {
			return nil, slonikerr.UnexpectedState("rowparse: column " + field.Name + ": " + err.Error())
		}
		row[field.Name] = parsed
	}

	return row, nil
}

// ApplySchema validates row against schema — step 3 of spec §4.C's
// row-parsing pipeline, invoked only when the originating [sqlb.Raw]
// token carried a non-nil RowSchema. A failing parse raises
// SchemaValidationError carrying the row and the schema's own error.
func ApplySchema(schema sqlb.RowSchema, row sqlb.Row) (sqlb.Row, error) {
	if schema == nil {
		return row, nil
	}

	parsed, err := schema.Parse(row)
	if err != nil {
		return nil, slonikerr.SchemaValidation("row schema rejected a row", err)
	}

	return parsed, nil
}
