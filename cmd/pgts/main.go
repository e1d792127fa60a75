// Command pgts decodes PostgreSQL timestamptz captures to UTC timestamps.
//
// Each argument is a 16-character little-endian hex token, as seen in a
// binary dump of a timestamptz column. With --micros, arguments are the
// decoded microsecond offsets themselves.
//
// Usage:
//
//	pgts a922e78e1bdd0200
//	pgts --micros 662770800000000
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/Lulexs/versioned-pg/internal/pkg/env"
	"github.com/Lulexs/versioned-pg/internal/pkg/hexutil"
	"github.com/Lulexs/versioned-pg/internal/pkg/pgtime"
)

var micros = flag.Bool("micros", false, "Arguments are decimal microsecond offsets, not hex tokens")

func main() {
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: env.ParseLogLevel(slog.LevelInfo),
	}))

	if err := run(logger, flag.Args()); err != nil {
		logger.Error("pgts failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("no tokens given; usage: pgts [--micros] token...")
	}

	for _, arg := range args {
		offset, err := decodeArg(arg)
		if err != nil {
			return err
		}

		ts, err := pgtime.ToTime(offset)
		if err != nil {
			return fmt.Errorf("token %q: %w", arg, err)
		}

		fmt.Printf("%s\t%d\t%s\n", arg, offset, ts.Format(time.RFC3339Nano))
	}
	return nil
}

func decodeArg(arg string) (int64, error) {
	if *micros {
		offset, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid microsecond offset %q", arg)
		}
		return offset, nil
	}
	offset, err := hexutil.DecodeInt64LE(arg)
	if err != nil {
		return 0, fmt.Errorf("token %q: %w", arg, err)
	}
	return offset, nil
}
