package executor

import (
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TharinduNimesh/api-builder-sub001/pkg/logging"
)

func TestDecodeResult(t *testing.T) {
	m := pgtype.NewMap()
	res := &pgconn.Result{
		FieldDescriptions: []pgconn.FieldDescription{
			{Name: "id", DataTypeOID: pgtype.Int4OID, Format: pgtype.TextFormatCode},
			{Name: "name", DataTypeOID: pgtype.TextOID, Format: pgtype.TextFormatCode},
			{Name: "active", DataTypeOID: pgtype.BoolOID, Format: pgtype.TextFormatCode},
			{Name: "key", DataTypeOID: pgtype.UUIDOID, Format: pgtype.TextFormatCode},
			{Name: "custom", DataTypeOID: 999999, Format: pgtype.TextFormatCode},
		},
		Rows: [][][]byte{
			{[]byte("1"), []byte("bolt"), []byte("t"), []byte("550e8400-e29b-41d4-a716-446655440000"), []byte("raw")},
			{[]byte("2"), nil, []byte("f"), nil, nil},
		},
	}

	columns, rows, err := decodeResult(m, res)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "active", "key", "custom"}, columns)
	require.Len(t, rows, 2)

	assert.Equal(t, int32(1), rows[0]["id"])
	assert.Equal(t, "bolt", rows[0]["name"])
	assert.Equal(t, true, rows[0]["active"])
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", rows[0]["key"])
	assert.Equal(t, "raw", rows[0]["custom"])

	assert.Nil(t, rows[1]["name"])
	assert.Nil(t, rows[1]["key"])
	assert.Equal(t, false, rows[1]["active"])
}

func TestDecodeResult_BadValue(t *testing.T) {
	m := pgtype.NewMap()
	res := &pgconn.Result{
		FieldDescriptions: []pgconn.FieldDescription{
			{Name: "n", DataTypeOID: pgtype.Int4OID, Format: pgtype.TextFormatCode},
		},
		Rows: [][][]byte{{[]byte("not-a-number")}},
	}

	_, _, err := decodeResult(m, res)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode column n")
}

func TestJSONValue(t *testing.T) {
	id := [16]byte{0x55, 0x0e, 0x84, 0x00, 0xe2, 0x9b, 0x41, 0xd4, 0xa7, 0x16, 0x44, 0x66, 0x55, 0x44, 0x00, 0x00}
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", jsonValue(id))
	assert.Equal(t, int64(5), jsonValue(int64(5)))
	assert.Nil(t, jsonValue(nil))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "SELECT 1", truncate("SELECT 1"))

	long := "SELECT " + strings.Repeat("x", 200)
	out := truncate(long)
	assert.Len(t, out, logging.MaxQueryLogLength+3)
	assert.True(t, strings.HasSuffix(out, "..."))
}
