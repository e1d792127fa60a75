// Package parser provides parsers for PostgreSQL dump files.
package parser

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// CopyBlock represents a COPY statement block from a PostgreSQL dump.
type CopyBlock struct {
	Schema  string     // Schema name (e.g., "public")
	Table   string     // Table name (e.g., "sensors")
	Columns []string   // Column names in order
	Rows    [][]string // Each row is a slice of field values
}

// Location returns the schema-qualified table name.
func (b *CopyBlock) Location() string {
	if b.Schema == "" {
		return b.Table
	}
	return b.Schema + "." + b.Table
}

// ColumnIndex returns a map of column name to index for field lookup.
func (b *CopyBlock) ColumnIndex() map[string]int {
	idx := make(map[string]int, len(b.Columns))
	for i, col := range b.Columns {
		idx[col] = i
	}
	return idx
}

// ParseCopyBlocks parses all COPY blocks from a PostgreSQL dump. The dump
// format expected is:
//
//	COPY schema."table" (col1, col2, ...) FROM stdin;
//	value1\tvalue2\t...
//	\.
//
// Everything outside COPY blocks (DDL, comments) is skipped.
func ParseCopyBlocks(r io.Reader) ([]*CopyBlock, error) {
	scanner := bufio.NewScanner(r)
	// Dumps of wide rows can exceed the default token size.
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var blocks []*CopyBlock
	var current *CopyBlock

	for scanner.Scan() {
		line := scanner.Text()

		if current != nil {
			if line == "\\." {
				blocks = append(blocks, current)
				current = nil
				continue
			}
			current.Rows = append(current.Rows, parseCopyRow(line))
			continue
		}

		if strings.HasPrefix(line, "COPY ") {
			block, err := parseCopyStatement(line)
			if err != nil {
				return nil, fmt.Errorf("failed to parse COPY statement: %w", err)
			}
			current = block
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanner error: %w", err)
	}
	if current != nil {
		return nil, fmt.Errorf("unterminated COPY block for %s", current.Location())
	}

	return blocks, nil
}

// parseCopyStatement parses a line of the form
// COPY schema."table" (col1, col2, ...) FROM stdin;
func parseCopyStatement(line string) (*CopyBlock, error) {
	line = strings.TrimPrefix(line, "COPY ")
	line = strings.TrimSuffix(line, " FROM stdin;")

	parenStart := strings.Index(line, "(")
	parenEnd := strings.LastIndex(line, ")")
	if parenStart == -1 || parenEnd == -1 || parenEnd <= parenStart {
		return nil, fmt.Errorf("no column list found")
	}

	schema, table := parseTableRef(strings.TrimSpace(line[:parenStart]))
	columns := parseColumnList(line[parenStart+1 : parenEnd])
	if len(columns) == 0 {
		return nil, fmt.Errorf("empty column list")
	}

	return &CopyBlock{
		Schema:  schema,
		Table:   table,
		Columns: columns,
	}, nil
}

// parseTableRef parses schema."table", schema.table or a bare table name.
func parseTableRef(ref string) (schema, table string) {
	parts := strings.SplitN(ref, ".", 2)
	if len(parts) == 2 {
		schema = strings.Trim(parts[0], "\"")
		table = strings.Trim(parts[1], "\"")
	} else {
		table = strings.Trim(parts[0], "\"")
	}
	return
}

func parseColumnList(s string) []string {
	parts := strings.Split(s, ",")
	columns := make([]string, 0, len(parts))
	for _, p := range parts {
		col := strings.Trim(strings.TrimSpace(p), "\"")
		if col != "" {
			columns = append(columns, col)
		}
	}
	return columns
}

// parseCopyRow splits a tab-separated COPY data line and unescapes each
// field.
func parseCopyRow(line string) []string {
	fields := strings.Split(line, "\t")
	result := make([]string, len(fields))
	for i, field := range fields {
		result[i] = unescapeCopyValue(field)
	}
	return result
}

// unescapeCopyValue handles PostgreSQL COPY escape sequences. Bytea hex
// fields keep their leading \x marker, since only the backslash pairs
// listed here are escapes.
func unescapeCopyValue(s string) string {
	if s == "\\N" {
		return "" // NULL; callers distinguish via IsNull on the raw field
	}
	if !strings.Contains(s, "\\") {
		return s
	}

	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case '\\':
				sb.WriteByte('\\')
				i++
			case 'n':
				sb.WriteByte('\n')
				i++
			case 'r':
				sb.WriteByte('\r')
				i++
			case 't':
				sb.WriteByte('\t')
				i++
			default:
				sb.WriteByte(s[i])
			}
		} else {
			sb.WriteByte(s[i])
		}
	}
	return sb.String()
}

// IsNull checks if a COPY field value represents NULL.
func IsNull(field string) bool {
	return field == "\\N"
}
