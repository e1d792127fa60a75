package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Lulexs/versioned-pg/internal/domain/entity"
	"github.com/Lulexs/versioned-pg/internal/pkg/retry"
	"github.com/Lulexs/versioned-pg/internal/ports/outbound"
)

// Compile-time check that HistoryRepository implements outbound.HistoryRepository
var _ outbound.HistoryRepository = (*HistoryRepository)(nil)

// HistoryRepository is a PostgreSQL implementation of the
// outbound.HistoryRepository port.
type HistoryRepository struct {
	pool      *pgxpool.Pool
	logger    *slog.Logger
	batchSize int
	retryCfg  retry.Config
}

// NewHistoryRepository creates a new PostgreSQL history repository.
// batchSize <= 0 selects the default of 1000 versions per statement.
func NewHistoryRepository(pool *pgxpool.Pool, logger *slog.Logger, batchSize int) *HistoryRepository {
	if logger == nil {
		logger = slog.Default()
	}
	if batchSize <= 0 {
		// 1000 rows * 4 params stays well under the 32k parameter limit
		batchSize = 1000
	}
	return &HistoryRepository{
		pool:      pool,
		logger:    logger,
		batchSize: batchSize,
		retryCfg:  retry.DefaultConfig(),
	}
}

// UpsertVersions upserts version records and their series rows.
// Conflict resolution: ON CONFLICT (series_id, valid_at) DO UPDATE, so
// reloading the same dump is idempotent. Duplicate (series, valid_at)
// pairs within one call are collapsed to the last occurrence first;
// PostgreSQL rejects a statement whose ON CONFLICT target would update
// the same row twice (error 21000).
func (r *HistoryRepository) UpsertVersions(ctx context.Context, versions []*entity.ValueVersion) error {
	if len(versions) == 0 {
		return nil
	}
	versions = dedupeVersions(versions)

	if err := r.upsertSeries(ctx, versions); err != nil {
		return err
	}

	for i := 0; i < len(versions); i += r.batchSize {
		end := i + r.batchSize
		if end > len(versions) {
			end = len(versions)
		}
		if err := r.upsertVersionBatch(ctx, versions[i:end]); err != nil {
			return err
		}
	}

	r.logger.Debug("upserted versions", "count", len(versions))
	return nil
}

// dedupeVersions collapses versions sharing a (series, valid_at) pair,
// keeping the last occurrence and the first occurrence's position. A
// versioned_int image may legally carry two entries at the same instant,
// and the table key is (series_id, valid_at).
func dedupeVersions(versions []*entity.ValueVersion) []*entity.ValueVersion {
	type rowKey struct {
		seriesID int64
		validAt  int64
	}
	seen := make(map[rowKey]int, len(versions))
	out := make([]*entity.ValueVersion, 0, len(versions))
	for _, v := range versions {
		k := rowKey{v.SeriesID, v.ValidAt.UnixMicro()}
		if idx, ok := seen[k]; ok {
			out[idx] = v
			continue
		}
		seen[k] = len(out)
		out = append(out, v)
	}
	return out
}

func (r *HistoryRepository) upsertSeries(ctx context.Context, versions []*entity.ValueVersion) error {
	seen := make(map[int64]string, len(versions))
	for _, v := range versions {
		seen[v.SeriesID] = v.SeriesKey
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO series (id, key) VALUES `)
	args := make([]any, 0, len(seen)*2)
	i := 0
	for id, key := range seen {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(fmt.Sprintf("($%d, $%d)", i*2+1, i*2+2))
		args = append(args, id, key)
		i++
	}
	sb.WriteString(` ON CONFLICT (id) DO NOTHING`)

	return r.execWithRetry(ctx, "upsert series", sb.String(), args)
}

func (r *HistoryRepository) upsertVersionBatch(ctx context.Context, versions []*entity.ValueVersion) error {
	var sb strings.Builder
	sb.WriteString(`
		INSERT INTO value_versions (series_id, value, valid_at, loaded_at)
		VALUES `)

	args := make([]any, 0, len(versions)*3)
	for i, v := range versions {
		if i > 0 {
			sb.WriteString(", ")
		}
		baseIdx := i * 3
		sb.WriteString(fmt.Sprintf("($%d, $%d, $%d, NOW())", baseIdx+1, baseIdx+2, baseIdx+3))
		args = append(args, v.SeriesID, v.Value, v.ValidAt)
	}

	sb.WriteString(`
		ON CONFLICT (series_id, valid_at) DO UPDATE SET
			value = EXCLUDED.value,
			loaded_at = NOW()
	`)

	return r.execWithRetry(ctx, "upsert version batch", sb.String(), args)
}

// ValueAt returns the value the series held at the given instant.
func (r *HistoryRepository) ValueAt(ctx context.Context, seriesID int64, at time.Time) (int32, bool, error) {
	var value int32
	err := r.pool.QueryRow(ctx, `
		SELECT value FROM value_versions
		WHERE series_id = $1 AND valid_at <= $2
		ORDER BY valid_at DESC
		LIMIT 1`, seriesID, at).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to query value at %v: %w", at, err)
	}
	return value, true, nil
}

// ListSeries returns all stored series ordered by key.
func (r *HistoryRepository) ListSeries(ctx context.Context) ([]outbound.SeriesInfo, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.id, s.key, COUNT(v.valid_at), MIN(v.valid_at), MAX(v.valid_at)
		FROM series s
		JOIN value_versions v ON v.series_id = s.id
		GROUP BY s.id, s.key
		ORDER BY s.key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list series: %w", err)
	}
	defer rows.Close()

	var infos []outbound.SeriesInfo
	for rows.Next() {
		var info outbound.SeriesInfo
		if err := rows.Scan(&info.ID, &info.Key, &info.VersionCount, &info.FirstValidAt, &info.LastValidAt); err != nil {
			return nil, fmt.Errorf("failed to scan series row: %w", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate series rows: %w", err)
	}
	return infos, nil
}

func (r *HistoryRepository) execWithRetry(ctx context.Context, op, sql string, args []any) error {
	onRetry := func(attempt int, err error, backoff time.Duration) {
		r.logger.Warn("retrying statement", "op", op, "attempt", attempt, "backoff", backoff, "error", err)
	}
	err := retry.DoVoid(ctx, r.retryCfg, isTransient, onRetry, func() error {
		_, err := r.pool.Exec(ctx, sql, args...)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	return nil
}

// isTransient reports whether a statement is worth retrying: serialization
// failures, deadlocks, and dropped connections.
func isTransient(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "57P03", "08006", "08003":
			return true
		}
		return false
	}
	return pgconn.SafeToRetry(err)
}
