package transform

import (
	"strings"
	"testing"
	"time"

	"github.com/Lulexs/versioned-pg/cmd/histload/parser"
)

func parseSingleBlock(t *testing.T, dump string) *parser.CopyBlock {
	t.Helper()
	blocks, err := parser.ParseCopyBlocks(strings.NewReader(dump))
	if err != nil {
		t.Fatalf("ParseCopyBlocks: %v", err)
	}
	if len(blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(blocks))
	}
	return blocks[0]
}

func TestBlock_VersionedIntColumn(t *testing.T) {
	// reading holds a two-entry versioned_int image: 5 at the PostgreSQL
	// epoch, then 42 at 2020-12-31T23:00:00Z.
	dump := `COPY public.sensors (id, reading) FROM stdin;
7	\\xa000000002000000050000000000000000000000000000002a0000000000000000fc195ac95a0200
\.
`
	block := parseSingleBlock(t, dump)

	records, err := Block(block, TableMapping{
		Location:            "public.sensors",
		KeyColumn:           "id",
		VersionedIntColumns: []string{"reading"},
	})
	if err != nil {
		t.Fatalf("Block: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	wantKey := "public.sensors.reading:7"
	for _, rec := range records {
		if rec.SeriesKey != wantKey {
			t.Errorf("expected key %q, got %q", wantKey, rec.SeriesKey)
		}
		if rec.SeriesID != GenerateSeriesID(wantKey) {
			t.Errorf("series id mismatch for %q", rec.SeriesKey)
		}
	}

	if records[0].Value != 5 || records[1].Value != 42 {
		t.Errorf("expected values 5, 42; got %d, %d", records[0].Value, records[1].Value)
	}
	if !records[0].ValidAt.Equal(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("first record: got %v", records[0].ValidAt)
	}
	if !records[1].ValidAt.Equal(time.Date(2020, 12, 31, 23, 0, 0, 0, time.UTC)) {
		t.Errorf("second record: got %v", records[1].ValidAt)
	}
}

func TestBlock_TimedColumns(t *testing.T) {
	// threshold is dated by a little-endian hex timestamptz capture.
	dump := `COPY public.devices (device_id, threshold, threshold_updated) FROM stdin;
3	100	00fc195ac95a0200
4	200	\N
\.
`
	block := parseSingleBlock(t, dump)

	records, err := Block(block, TableMapping{
		Location:  "public.devices",
		KeyColumn: "device_id",
		TimedColumns: []TimedColumn{
			{ValueColumn: "threshold", TimeColumn: "threshold_updated"},
		},
	})
	if err != nil {
		t.Fatalf("Block: %v", err)
	}

	// The NULL-dated row contributes nothing.
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	rec := records[0]
	if rec.SeriesKey != "public.devices.threshold:3" {
		t.Errorf("unexpected key %q", rec.SeriesKey)
	}
	if rec.Value != 100 {
		t.Errorf("expected value 100, got %d", rec.Value)
	}
	if !rec.ValidAt.Equal(time.Date(2020, 12, 31, 23, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected time %v", rec.ValidAt)
	}
}

func TestBlock_Errors(t *testing.T) {
	tests := []struct {
		name    string
		dump    string
		mapping TableMapping
	}{
		{
			name: "missing key column",
			dump: "COPY public.sensors (reading) FROM stdin;\n\\.\n",
			mapping: TableMapping{
				Location:            "public.sensors",
				KeyColumn:           "id",
				VersionedIntColumns: []string{"reading"},
			},
		},
		{
			name: "missing mapped column",
			dump: "COPY public.sensors (id) FROM stdin;\n\\.\n",
			mapping: TableMapping{
				Location:            "public.sensors",
				KeyColumn:           "id",
				VersionedIntColumns: []string{"reading"},
			},
		},
		{
			name: "corrupt versioned_int image",
			dump: "COPY public.sensors (id, reading) FROM stdin;\n1\t\\\\xdeadbeef\n\\.\n",
			mapping: TableMapping{
				Location:            "public.sensors",
				KeyColumn:           "id",
				VersionedIntColumns: []string{"reading"},
			},
		},
		{
			name: "malformed timestamptz token",
			dump: "COPY public.devices (id, v, ts) FROM stdin;\n1\t5\tnot-hex\n\\.\n",
			mapping: TableMapping{
				Location:     "public.devices",
				KeyColumn:    "id",
				TimedColumns: []TimedColumn{{ValueColumn: "v", TimeColumn: "ts"}},
			},
		},
		{
			name: "non-integer value column",
			dump: "COPY public.devices (id, v, ts) FROM stdin;\n1\tfive\t0000000000000000\n\\.\n",
			mapping: TableMapping{
				Location:     "public.devices",
				KeyColumn:    "id",
				TimedColumns: []TimedColumn{{ValueColumn: "v", TimeColumn: "ts"}},
			},
		},
		{
			name: "empty key field",
			dump: "COPY public.devices (id, v, ts) FROM stdin;\n\\N\t5\t0000000000000000\n\\.\n",
			mapping: TableMapping{
				Location:     "public.devices",
				KeyColumn:    "id",
				TimedColumns: []TimedColumn{{ValueColumn: "v", TimeColumn: "ts"}},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			blocks, err := parser.ParseCopyBlocks(strings.NewReader(tc.dump))
			if err != nil {
				t.Fatalf("ParseCopyBlocks: %v", err)
			}
			if _, err := Block(blocks[0], tc.mapping); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestGenerateSeriesID(t *testing.T) {
	a := GenerateSeriesID("public.sensors.reading:1")
	b := GenerateSeriesID("public.sensors.reading:1")
	c := GenerateSeriesID("public.sensors.reading:2")

	if a != b {
		t.Error("same key must produce same id")
	}
	if a == c {
		t.Error("different keys should produce different ids")
	}
	if a <= 0 {
		t.Errorf("ids must be positive, got %d", a)
	}
}
