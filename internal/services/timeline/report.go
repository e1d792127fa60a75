package timeline

import (
	"fmt"
	"strings"
	"time"
)

// ReportEntry is one series in a snapshot report.
type ReportEntry struct {
	// SeriesKey is the canonical series key ("schema.table.column:row").
	SeriesKey string `json:"series_key"`

	// Value is the value in effect at the snapshot instant.
	Value int32 `json:"value"`

	// Defined is false when the series' history starts after the instant.
	Defined bool `json:"defined"`

	// VersionCount is the total number of stored versions.
	VersionCount int `json:"version_count"`
}

// Report is the value of every stored series at one instant.
type Report struct {
	// At is the snapshot instant, in UTC.
	At time.Time `json:"at"`

	// Entries are the per-series values, ordered by series key.
	Entries []ReportEntry `json:"entries"`
}

// UndefinedCount returns the number of series with no value at the instant.
func (r *Report) UndefinedCount() int {
	n := 0
	for _, e := range r.Entries {
		if !e.Defined {
			n++
		}
	}
	return n
}

// String renders the report as a human-readable table.
func (r *Report) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Snapshot at %s\n", r.At.Format(time.RFC3339Nano))
	for _, e := range r.Entries {
		if e.Defined {
			fmt.Fprintf(&sb, "  %-50s %12d  (%d versions)\n", e.SeriesKey, e.Value, e.VersionCount)
		} else {
			fmt.Fprintf(&sb, "  %-50s %12s  (%d versions)\n", e.SeriesKey, "-", e.VersionCount)
		}
	}
	return sb.String()
}
