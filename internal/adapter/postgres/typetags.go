package postgres

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
)

// typeTags maps PostgreSQL type OIDs to stable, human-readable tags.
var typeTags = map[uint32]string{
	pgtype.BoolOID:        "bool",
	pgtype.ByteaOID:       "bytea",
	pgtype.NameOID:        "name",
	pgtype.Int8OID:        "int8",
	pgtype.Int2OID:        "int2",
	pgtype.Int4OID:        "int4",
	pgtype.TextOID:        "text",
	pgtype.OIDOID:         "oid",
	pgtype.JSONOID:        "json",
	pgtype.XMLOID:         "xml",
	pgtype.Float4OID:      "float4",
	pgtype.Float8OID:      "float8",
	pgtype.BPCharOID:      "char",
	pgtype.VarcharOID:     "varchar",
	pgtype.DateOID:        "date",
	pgtype.TimeOID:        "time",
	pgtype.TimestampOID:   "timestamp",
	pgtype.TimestamptzOID: "timestamptz",
	pgtype.IntervalOID:    "interval",
	pgtype.NumericOID:     "numeric",
	pgtype.BitOID:         "bit",
	pgtype.VarbitOID:      "varbit",
	pgtype.UUIDOID:        "uuid",
	pgtype.JSONBOID:       "jsonb",
	pgtype.InetOID:        "inet",
	pgtype.CIDROID:        "cidr",
	pgtype.MacaddrOID:     "macaddr",
	pgtype.Int2ArrayOID:   "int2[]",
	pgtype.Int4ArrayOID:   "int4[]",
	pgtype.Int8ArrayOID:   "int8[]",
	pgtype.TextArrayOID:   "text[]",
	pgtype.UUIDArrayOID:   "uuid[]",
}

// typeTag renders an OID as its tag. Unknown OIDs get a generic tagged
// placeholder rather than an error.
func typeTag(oid uint32) string {
	if tag, ok := typeTags[oid]; ok {
		return tag
	}
	return fmt.Sprintf("type(%d)", oid)
}
