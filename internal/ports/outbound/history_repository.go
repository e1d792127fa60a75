package outbound

import (
	"context"
	"time"

	"github.com/Lulexs/versioned-pg/internal/domain/entity"
)

// SeriesInfo describes one stored value timeline.
type SeriesInfo struct {
	ID           int64
	Key          string
	VersionCount int
	FirstValidAt time.Time
	LastValidAt  time.Time
}

// HistoryRepository defines the interface for persisting decoded value
// timelines.
type HistoryRepository interface {
	// UpsertVersions upserts version records.
	// Conflict resolution: ON CONFLICT (series_id, valid_at) DO UPDATE,
	// so reloading a dump is idempotent and later dumps win.
	UpsertVersions(ctx context.Context, versions []*entity.ValueVersion) error

	// ValueAt returns the value a series held at the given instant: the
	// latest version with valid_at <= at. The boolean is false when the
	// series has no version at or before the instant.
	ValueAt(ctx context.Context, seriesID int64, at time.Time) (int32, bool, error)

	// ListSeries returns all stored series with version counts and
	// timeline bounds, ordered by key.
	ListSeries(ctx context.Context) ([]SeriesInfo, error)
}
