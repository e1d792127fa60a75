package memory

import (
	"context"
	"testing"
	"time"

	"github.com/Lulexs/versioned-pg/internal/domain/entity"
)

func mustVersion(t *testing.T, seriesID int64, key string, value int32, at time.Time) *entity.ValueVersion {
	t.Helper()
	v, err := entity.NewValueVersion(seriesID, key, value, at)
	if err != nil {
		t.Fatalf("NewValueVersion: %v", err)
	}
	return v
}

func TestHistoryRepository_UpsertAndValueAt(t *testing.T) {
	ctx := context.Background()
	repo := NewHistoryRepository()
	t0 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	// Insert out of order; the repository must keep the timeline sorted.
	err := repo.UpsertVersions(ctx, []*entity.ValueVersion{
		mustVersion(t, 1, "public.sensors.reading:7", 2, t1),
		mustVersion(t, 1, "public.sensors.reading:7", 1, t0),
	})
	if err != nil {
		t.Fatalf("UpsertVersions: %v", err)
	}

	tests := []struct {
		name   string
		at     time.Time
		want   int32
		wantOK bool
	}{
		{"before first", t0.Add(-time.Second), 0, false},
		{"at first", t0, 1, true},
		{"between", t0.Add(30 * time.Minute), 1, true},
		{"after last", t1.Add(time.Hour), 2, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok, err := repo.ValueAt(ctx, 1, tc.at)
			if err != nil {
				t.Fatalf("ValueAt: %v", err)
			}
			if ok != tc.wantOK || got != tc.want {
				t.Errorf("expected (%d, %v), got (%d, %v)", tc.want, tc.wantOK, got, ok)
			}
		})
	}
}

func TestHistoryRepository_UpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewHistoryRepository()
	t0 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	v := mustVersion(t, 1, "k", 1, t0)
	if err := repo.UpsertVersions(ctx, []*entity.ValueVersion{v}); err != nil {
		t.Fatalf("UpsertVersions: %v", err)
	}
	// Same instant, new value: the reload wins.
	if err := repo.UpsertVersions(ctx, []*entity.ValueVersion{mustVersion(t, 1, "k", 9, t0)}); err != nil {
		t.Fatalf("UpsertVersions: %v", err)
	}

	got, ok, err := repo.ValueAt(ctx, 1, t0)
	if err != nil || !ok {
		t.Fatalf("ValueAt: got ok=%v err=%v", ok, err)
	}
	if got != 9 {
		t.Errorf("expected 9, got %d", got)
	}

	infos, err := repo.ListSeries(ctx)
	if err != nil {
		t.Fatalf("ListSeries: %v", err)
	}
	if len(infos) != 1 || infos[0].VersionCount != 1 {
		t.Errorf("expected one series with one version, got %+v", infos)
	}
}

func TestHistoryRepository_ListSeries(t *testing.T) {
	ctx := context.Background()
	repo := NewHistoryRepository()
	t0 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	err := repo.UpsertVersions(ctx, []*entity.ValueVersion{
		mustVersion(t, 2, "b-series", 1, t0),
		mustVersion(t, 2, "b-series", 2, t1),
		mustVersion(t, 1, "a-series", 5, t0),
	})
	if err != nil {
		t.Fatalf("UpsertVersions: %v", err)
	}

	infos, err := repo.ListSeries(ctx)
	if err != nil {
		t.Fatalf("ListSeries: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 series, got %d", len(infos))
	}
	if infos[0].Key != "a-series" || infos[1].Key != "b-series" {
		t.Errorf("expected key ordering, got %q, %q", infos[0].Key, infos[1].Key)
	}
	if infos[1].VersionCount != 2 {
		t.Errorf("expected 2 versions for b-series, got %d", infos[1].VersionCount)
	}
	if !infos[1].FirstValidAt.Equal(t0) || !infos[1].LastValidAt.Equal(t1) {
		t.Errorf("unexpected bounds: %+v", infos[1])
	}
}
