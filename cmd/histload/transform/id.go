// Package transform converts COPY rows from PostgreSQL dumps into decoded
// value-timeline records.
package transform

import (
	"hash/fnv"
)

// GenerateSeriesID creates a deterministic int64 ID from a series key.
// Uses FNV-1a with the high bit cleared to ensure positive values, so
// re-running a load produces the same IDs.
func GenerateSeriesID(seriesKey string) int64 {
	h := fnv.New64a()
	h.Write([]byte(seriesKey))
	return int64(h.Sum64() & 0x7FFFFFFFFFFFFFFF)
}

// SeriesKey builds the canonical series key for a decoded column of one
// row: "schema.table.column:rowkey".
func SeriesKey(location, column, rowKey string) string {
	return location + "." + column + ":" + rowKey
}
