// Command histload loads versioned value history from PostgreSQL dumps
// into the timeline database.
//
// It reads dump files (COPY format) from a local file or S3, decodes the
// versioned_int and timestamptz hex fields named by the column mappings,
// and upserts the resulting version records.
//
// Usage:
//
//	histload --postgres-url="postgres://..." --file=dump.sql \
//	    --map="public.sensors:id:reading"
//
// Options:
//
//	--postgres-url  PostgreSQL connection URL (required unless --dry-run)
//	--file          Local dump file path
//	--s3-bucket     S3 bucket with dump files (alternative to --file)
//	--s3-prefix     S3 prefix for dump files
//	--aws-profile   AWS profile name
//	--map           versioned_int mappings: "schema.table:key:col[,col...]" (repeatable)
//	--timed-map     timed value mappings: "schema.table:key:valuecol@timecol" (repeatable)
//	--snapshot-at   Print a value snapshot for this RFC3339 instant after loading
//	--dry-run       Decode into memory only, print a snapshot, no DB writes
//	--migrate       Run database migrations before loading
//	--verbose       Enable verbose logging
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/joho/godotenv"

	"github.com/Lulexs/versioned-pg/cmd/histload/parser"
	"github.com/Lulexs/versioned-pg/cmd/histload/transform"
	"github.com/Lulexs/versioned-pg/db"
	"github.com/Lulexs/versioned-pg/db/migrator"
	"github.com/Lulexs/versioned-pg/internal/adapters/outbound/memory"
	"github.com/Lulexs/versioned-pg/internal/adapters/outbound/postgres"
	"github.com/Lulexs/versioned-pg/internal/adapters/outbound/s3"
	"github.com/Lulexs/versioned-pg/internal/ports/outbound"
	"github.com/Lulexs/versioned-pg/internal/services/timeline"
)

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

var (
	postgresURL = flag.String("postgres-url", "", "PostgreSQL connection URL")
	file        = flag.String("file", "", "Local dump file path")
	s3Bucket    = flag.String("s3-bucket", "", "S3 bucket with dump files")
	s3Prefix    = flag.String("s3-prefix", "", "S3 prefix for dump files")
	awsProfile  = flag.String("aws-profile", "", "AWS profile name")
	snapshotAt  = flag.String("snapshot-at", "", "Print a value snapshot for this RFC3339 instant after loading")
	dryRun      = flag.Bool("dry-run", false, "Decode into memory only, no DB writes")
	migrate     = flag.Bool("migrate", false, "Run database migrations before loading")
	verbose     = flag.Bool("verbose", false, "Enable verbose logging")

	mapFlags      stringList
	timedMapFlags stringList
)

func main() {
	flag.Var(&mapFlags, "map", `versioned_int mapping "schema.table:key:col[,col...]" (repeatable)`)
	flag.Var(&timedMapFlags, "timed-map", `timed value mapping "schema.table:key:valuecol@timecol" (repeatable)`)
	flag.Parse()

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("histload failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	if err := godotenv.Load(); err == nil {
		logger.Debug("loaded .env file")
	}

	mappings, err := parseMappings(mapFlags, timedMapFlags)
	if err != nil {
		return err
	}
	if len(mappings) == 0 {
		return fmt.Errorf("at least one --map or --timed-map is required")
	}
	if *file == "" && *s3Bucket == "" {
		return fmt.Errorf("either --file or --s3-bucket is required")
	}
	if !*dryRun && *postgresURL == "" {
		return fmt.Errorf("--postgres-url is required (or use --dry-run)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	repo, cleanup, err := openRepository(ctx, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	loaded, err := loadDumps(ctx, logger, repo, mappings)
	if err != nil {
		return err
	}
	logger.Info("load complete", "versions", loaded)

	return printSnapshot(ctx, logger, repo)
}

func openRepository(ctx context.Context, logger *slog.Logger) (outbound.HistoryRepository, func(), error) {
	if *dryRun {
		logger.Info("dry run: using in-memory repository")
		return memory.NewHistoryRepository(), func() {}, nil
	}

	logger.Info("connecting to database")
	pool, err := postgres.OpenPool(ctx, postgres.DefaultDBConfig(*postgresURL))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if *migrate {
		logger.Info("running migrations")
		m := migrator.New(pool, db.Migrations, db.MigrationsDir)
		if err := m.ApplyAll(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return postgres.NewHistoryRepository(pool, logger, 0), pool.Close, nil
}

// loadDumps streams every selected dump through the parser, transforms the
// mapped blocks, and upserts the records. Returns the number of versions
// loaded.
func loadDumps(ctx context.Context, logger *slog.Logger, repo outbound.HistoryRepository, mappings map[string]transform.TableMapping) (int, error) {
	streams, err := openStreams(ctx, logger)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, stream := range streams {
		n, err := loadStream(ctx, logger, repo, mappings, stream)
		if err != nil {
			return total, fmt.Errorf("loading %s: %w", stream.name, err)
		}
		total += n
	}
	return total, nil
}

type dumpStream struct {
	name string
	open func(ctx context.Context) (io.ReadCloser, error)
}

func openStreams(ctx context.Context, logger *slog.Logger) ([]dumpStream, error) {
	if *file != "" {
		path := *file
		return []dumpStream{{
			name: path,
			open: func(ctx context.Context) (io.ReadCloser, error) {
				return os.Open(path)
			},
		}}, nil
	}

	logger.Info("initializing AWS config", "profile", *awsProfile)
	opts := []func(*awsconfig.LoadOptions) error{}
	if *awsProfile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(*awsProfile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	reader := s3.NewReader(awsCfg, logger)
	files, err := reader.ListFiles(ctx, *s3Bucket, *s3Prefix)
	if err != nil {
		return nil, err
	}

	streams := make([]dumpStream, 0, len(files))
	for _, f := range files {
		key := f.Key
		streams = append(streams, dumpStream{
			name: key,
			open: func(ctx context.Context) (io.ReadCloser, error) {
				return reader.StreamFile(ctx, *s3Bucket, key)
			},
		})
	}
	return streams, nil
}

func loadStream(ctx context.Context, logger *slog.Logger, repo outbound.HistoryRepository, mappings map[string]transform.TableMapping, stream dumpStream) (int, error) {
	logger.Info("loading dump", "source", stream.name)

	rc, err := stream.open(ctx)
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	blocks, err := parser.ParseCopyBlocks(rc)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, block := range blocks {
		mapping, ok := mappings[block.Location()]
		if !ok {
			logger.Debug("skipping unmapped table", "table", block.Location())
			continue
		}

		records, err := transform.Block(block, mapping)
		if err != nil {
			return total, err
		}
		if err := repo.UpsertVersions(ctx, records); err != nil {
			return total, err
		}

		logger.Info("loaded table", "table", block.Location(), "rows", len(block.Rows), "versions", len(records))
		total += len(records)
	}
	return total, nil
}

func printSnapshot(ctx context.Context, logger *slog.Logger, repo outbound.HistoryRepository) error {
	at := time.Now().UTC()
	if *snapshotAt != "" {
		parsed, err := time.Parse(time.RFC3339, *snapshotAt)
		if err != nil {
			return fmt.Errorf("invalid --snapshot-at: %w", err)
		}
		at = parsed
	} else if !*dryRun {
		// Snapshots are opt-in outside dry runs.
		return nil
	}

	svc, err := timeline.NewService(timeline.ServiceConfig{Logger: logger}, repo)
	if err != nil {
		return err
	}
	report, err := svc.Snapshot(ctx, at)
	if err != nil {
		return err
	}
	fmt.Print(report.String())
	return nil
}

// parseMappings merges --map and --timed-map flags into per-table
// mappings.
func parseMappings(plain, timed stringList) (map[string]transform.TableMapping, error) {
	mappings := make(map[string]transform.TableMapping)

	get := func(location, key string) (transform.TableMapping, error) {
		m, ok := mappings[location]
		if !ok {
			m = transform.TableMapping{Location: location, KeyColumn: key}
		} else if m.KeyColumn != key {
			return m, fmt.Errorf("table %s mapped with conflicting key columns %q and %q", location, m.KeyColumn, key)
		}
		return m, nil
	}

	for _, arg := range plain {
		parts := strings.SplitN(arg, ":", 3)
		if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
			return nil, fmt.Errorf("invalid --map %q, want \"schema.table:key:col[,col...]\"", arg)
		}
		m, err := get(parts[0], parts[1])
		if err != nil {
			return nil, err
		}
		m.VersionedIntColumns = append(m.VersionedIntColumns, strings.Split(parts[2], ",")...)
		mappings[parts[0]] = m
	}

	for _, arg := range timed {
		parts := strings.SplitN(arg, ":", 3)
		if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid --timed-map %q, want \"schema.table:key:valuecol@timecol\"", arg)
		}
		cols := strings.SplitN(parts[2], "@", 2)
		if len(cols) != 2 || cols[0] == "" || cols[1] == "" {
			return nil, fmt.Errorf("invalid --timed-map %q, want \"schema.table:key:valuecol@timecol\"", arg)
		}
		m, err := get(parts[0], parts[1])
		if err != nil {
			return nil, err
		}
		m.TimedColumns = append(m.TimedColumns, transform.TimedColumn{ValueColumn: cols[0], TimeColumn: cols[1]})
		mappings[parts[0]] = m
	}

	return mappings, nil
}
