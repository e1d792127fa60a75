package outbound

import (
	"context"
	"io"
	"time"
)

// DumpFile represents metadata about an available dump file.
type DumpFile struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// DumpReader defines the interface for reading PostgreSQL dump files from
// a store such as S3.
type DumpReader interface {
	// ListFiles lists all dump files under the given bucket and prefix.
	ListFiles(ctx context.Context, bucket, prefix string) ([]DumpFile, error)

	// StreamFile returns a reader for the file content.
	// The caller is responsible for closing the reader.
	// If the file is gzipped (.gz extension), the reader automatically
	// decompresses.
	StreamFile(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}
