// Package timeline provides queries over loaded value histories: what
// every stored series held at a given instant.
package timeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Lulexs/versioned-pg/internal/ports/outbound"
)

// ServiceConfig holds configuration for the timeline service.
type ServiceConfig struct {
	// Logger is the structured logger.
	Logger *slog.Logger
}

// Service answers value-at-time questions against a history repository.
type Service struct {
	history outbound.HistoryRepository
	logger  *slog.Logger
}

// NewService creates a new timeline service.
func NewService(config ServiceConfig, history outbound.HistoryRepository) (*Service, error) {
	if history == nil {
		return nil, fmt.Errorf("history repository is required")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Service{
		history: history,
		logger:  config.Logger.With("component", "timeline"),
	}, nil
}

// ValueAt returns the value one series held at the given instant.
func (s *Service) ValueAt(ctx context.Context, seriesID int64, at time.Time) (int32, bool, error) {
	return s.history.ValueAt(ctx, seriesID, at.UTC())
}

// Snapshot reports the value of every stored series at the given instant.
// Series whose history starts after the instant appear in the report with
// Defined=false.
func (s *Service) Snapshot(ctx context.Context, at time.Time) (*Report, error) {
	at = at.UTC()

	series, err := s.history.ListSeries(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing series: %w", err)
	}

	report := &Report{At: at}
	for _, info := range series {
		value, ok, err := s.history.ValueAt(ctx, info.ID, at)
		if err != nil {
			return nil, fmt.Errorf("querying series %q: %w", info.Key, err)
		}
		report.Entries = append(report.Entries, ReportEntry{
			SeriesKey:    info.Key,
			Value:        value,
			Defined:      ok,
			VersionCount: info.VersionCount,
		})
	}

	s.logger.Info("built snapshot",
		"at", at,
		"series", len(report.Entries),
		"undefined", report.UndefinedCount())
	return report, nil
}
