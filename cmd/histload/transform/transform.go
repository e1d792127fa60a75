package transform

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Lulexs/versioned-pg/cmd/histload/parser"
	"github.com/Lulexs/versioned-pg/internal/domain/entity"
	"github.com/Lulexs/versioned-pg/internal/pkg/hexutil"
	"github.com/Lulexs/versioned-pg/internal/pkg/pgtime"
	"github.com/Lulexs/versioned-pg/internal/pkg/pgwire"
)

// TimedColumn pairs an integer value column with the little-endian hex
// timestamptz column that dates it.
type TimedColumn struct {
	ValueColumn string
	TimeColumn  string
}

// TableMapping declares which columns of a dumped table hold decodable
// history.
type TableMapping struct {
	// Location is the schema-qualified table name, e.g. "public.sensors".
	Location string

	// KeyColumn identifies the row the series belongs to, e.g. "id".
	KeyColumn string

	// VersionedIntColumns are bytea columns holding versioned_int images.
	// Each image contributes its full version history.
	VersionedIntColumns []string

	// TimedColumns are (value, timestamptz-hex) column pairs. Each row
	// contributes one version.
	TimedColumns []TimedColumn
}

// Block converts all rows of a COPY block into ValueVersion records
// according to the mapping. NULL fields are skipped; malformed fields are
// errors, never silently dropped.
func Block(block *parser.CopyBlock, mapping TableMapping) ([]*entity.ValueVersion, error) {
	colIndex := block.ColumnIndex()

	if _, ok := colIndex[mapping.KeyColumn]; !ok {
		return nil, fmt.Errorf("table %s: key column %q not in dump", mapping.Location, mapping.KeyColumn)
	}
	for _, col := range mapping.VersionedIntColumns {
		if _, ok := colIndex[col]; !ok {
			return nil, fmt.Errorf("table %s: versioned_int column %q not in dump", mapping.Location, col)
		}
	}
	for _, tc := range mapping.TimedColumns {
		if _, ok := colIndex[tc.ValueColumn]; !ok {
			return nil, fmt.Errorf("table %s: value column %q not in dump", mapping.Location, tc.ValueColumn)
		}
		if _, ok := colIndex[tc.TimeColumn]; !ok {
			return nil, fmt.Errorf("table %s: time column %q not in dump", mapping.Location, tc.TimeColumn)
		}
	}

	var out []*entity.ValueVersion
	for rowNum, row := range block.Rows {
		records, err := transformRow(row, colIndex, mapping)
		if err != nil {
			return nil, fmt.Errorf("table %s row %d: %w", mapping.Location, rowNum+1, err)
		}
		out = append(out, records...)
	}
	return out, nil
}

func transformRow(row []string, colIndex map[string]int, mapping TableMapping) ([]*entity.ValueVersion, error) {
	getField := func(name string) string {
		if idx, ok := colIndex[name]; ok && idx < len(row) {
			return row[idx]
		}
		return ""
	}

	rowKey := getField(mapping.KeyColumn)
	if rowKey == "" {
		return nil, fmt.Errorf("empty key column %q", mapping.KeyColumn)
	}

	var out []*entity.ValueVersion

	for _, col := range mapping.VersionedIntColumns {
		field := getField(col)
		if field == "" {
			continue
		}
		decoded, err := pgwire.DecodeVersionedIntHex(field)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col, err)
		}

		key := SeriesKey(mapping.Location, col, rowKey)
		id := GenerateSeriesID(key)
		for _, ver := range decoded.Versions() {
			record, err := entity.NewValueVersion(id, key, ver.Value, ver.ValidAt)
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", col, err)
			}
			out = append(out, record)
		}
	}

	for _, tc := range mapping.TimedColumns {
		valueField := getField(tc.ValueColumn)
		timeField := getField(tc.TimeColumn)
		if valueField == "" || timeField == "" {
			continue
		}

		value, err := strconv.ParseInt(valueField, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("column %q: invalid integer %q", tc.ValueColumn, valueField)
		}

		micros, err := hexutil.DecodeInt64LE(strings.TrimPrefix(timeField, "\\x"))
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", tc.TimeColumn, err)
		}
		at, err := pgtime.ToTime(micros)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", tc.TimeColumn, err)
		}

		key := SeriesKey(mapping.Location, tc.ValueColumn, rowKey)
		record, err := entity.NewValueVersion(GenerateSeriesID(key), key, int32(value), at)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", tc.ValueColumn, err)
		}
		out = append(out, record)
	}

	return out, nil
}
