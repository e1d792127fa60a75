// Package memory provides an in-memory implementation of the history
// repository. Useful for testing and dry runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Lulexs/versioned-pg/internal/domain/entity"
	"github.com/Lulexs/versioned-pg/internal/ports/outbound"
)

// Compile-time check that HistoryRepository implements outbound.HistoryRepository
var _ outbound.HistoryRepository = (*HistoryRepository)(nil)

type storedVersion struct {
	value   int32
	validAt time.Time
}

type storedSeries struct {
	key      string
	versions []storedVersion // kept sorted by validAt
}

// HistoryRepository is an in-memory implementation of the
// outbound.HistoryRepository port.
type HistoryRepository struct {
	mu     sync.RWMutex
	series map[int64]*storedSeries
}

// NewHistoryRepository creates a new in-memory history repository.
func NewHistoryRepository() *HistoryRepository {
	return &HistoryRepository{
		series: make(map[int64]*storedSeries),
	}
}

// UpsertVersions upserts version records, replacing the value of an
// existing (series, valid_at) pair.
func (r *HistoryRepository) UpsertVersions(ctx context.Context, versions []*entity.ValueVersion) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, v := range versions {
		s, ok := r.series[v.SeriesID]
		if !ok {
			s = &storedSeries{key: v.SeriesKey}
			r.series[v.SeriesID] = s
		}

		idx := sort.Search(len(s.versions), func(i int) bool {
			return !s.versions[i].validAt.Before(v.ValidAt)
		})
		if idx < len(s.versions) && s.versions[idx].validAt.Equal(v.ValidAt) {
			s.versions[idx].value = v.Value
			continue
		}
		s.versions = append(s.versions, storedVersion{})
		copy(s.versions[idx+1:], s.versions[idx:])
		s.versions[idx] = storedVersion{value: v.Value, validAt: v.ValidAt}
	}
	return nil
}

// ValueAt returns the value the series held at the given instant.
func (r *HistoryRepository) ValueAt(ctx context.Context, seriesID int64, at time.Time) (int32, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.series[seriesID]
	if !ok {
		return 0, false, nil
	}
	for i := len(s.versions) - 1; i >= 0; i-- {
		if !s.versions[i].validAt.After(at) {
			return s.versions[i].value, true, nil
		}
	}
	return 0, false, nil
}

// ListSeries returns all stored series ordered by key.
func (r *HistoryRepository) ListSeries(ctx context.Context) ([]outbound.SeriesInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]outbound.SeriesInfo, 0, len(r.series))
	for id, s := range r.series {
		if len(s.versions) == 0 {
			continue
		}
		infos = append(infos, outbound.SeriesInfo{
			ID:           id,
			Key:          s.key,
			VersionCount: len(s.versions),
			FirstValidAt: s.versions[0].validAt,
			LastValidAt:  s.versions[len(s.versions)-1].validAt,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}
