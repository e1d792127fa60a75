package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Lulexs/versioned-pg/cmd/histload/transform"
	"github.com/Lulexs/versioned-pg/internal/adapters/outbound/memory"
)

func TestParseMappings(t *testing.T) {
	mappings, err := parseMappings(
		stringList{"public.sensors:id:reading,calibration"},
		stringList{"public.devices:device_id:threshold@threshold_updated"},
	)
	if err != nil {
		t.Fatalf("parseMappings: %v", err)
	}

	if len(mappings) != 2 {
		t.Fatalf("expected 2 mappings, got %d", len(mappings))
	}

	sensors := mappings["public.sensors"]
	if sensors.KeyColumn != "id" {
		t.Errorf("expected key column id, got %q", sensors.KeyColumn)
	}
	if len(sensors.VersionedIntColumns) != 2 {
		t.Errorf("expected 2 versioned_int columns, got %v", sensors.VersionedIntColumns)
	}

	devices := mappings["public.devices"]
	if len(devices.TimedColumns) != 1 {
		t.Fatalf("expected 1 timed column, got %v", devices.TimedColumns)
	}
	tc := devices.TimedColumns[0]
	if tc.ValueColumn != "threshold" || tc.TimeColumn != "threshold_updated" {
		t.Errorf("unexpected timed column %+v", tc)
	}
}

func TestParseMappings_MergesSameTable(t *testing.T) {
	mappings, err := parseMappings(
		stringList{"public.sensors:id:reading"},
		stringList{"public.sensors:id:threshold@threshold_updated"},
	)
	if err != nil {
		t.Fatalf("parseMappings: %v", err)
	}
	if len(mappings) != 1 {
		t.Fatalf("expected 1 merged mapping, got %d", len(mappings))
	}
	m := mappings["public.sensors"]
	if len(m.VersionedIntColumns) != 1 || len(m.TimedColumns) != 1 {
		t.Errorf("expected merged columns, got %+v", m)
	}
}

func TestParseMappings_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		plain stringList
		timed stringList
	}{
		{"map missing parts", stringList{"public.sensors:id"}, nil},
		{"map empty column", stringList{"public.sensors:id:"}, nil},
		{"timed map without @", nil, stringList{"public.devices:id:threshold"}},
		{"timed map empty time column", nil, stringList{"public.devices:id:threshold@"}},
		{"conflicting key columns", stringList{"public.s:id:a"}, stringList{"public.s:other:v@t"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := parseMappings(tc.plain, tc.timed); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadStream(t *testing.T) {
	dump := `COPY public.sensors (id, reading) FROM stdin;
7	\\xa000000002000000050000000000000000000000000000002a0000000000000000fc195ac95a0200
\.
`
	dir := t.TempDir()
	path := filepath.Join(dir, "dump.sql")
	if err := os.WriteFile(path, []byte(dump), 0o644); err != nil {
		t.Fatalf("write dump: %v", err)
	}

	repo := memory.NewHistoryRepository()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mappings := map[string]transform.TableMapping{
		"public.sensors": {
			Location:            "public.sensors",
			KeyColumn:           "id",
			VersionedIntColumns: []string{"reading"},
		},
	}

	stream := dumpStream{
		name: path,
		open: func(ctx context.Context) (io.ReadCloser, error) { return os.Open(path) },
	}

	n, err := loadStream(context.Background(), logger, repo, mappings, stream)
	if err != nil {
		t.Fatalf("loadStream: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 versions loaded, got %d", n)
	}

	id := transform.GenerateSeriesID("public.sensors.reading:7")
	value, ok, err := repo.ValueAt(context.Background(), id, time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil || !ok {
		t.Fatalf("ValueAt: ok=%v err=%v", ok, err)
	}
	if value != 42 {
		t.Errorf("expected 42, got %d", value)
	}
}
