package filesystem

import (
	"context"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
)

var Logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

// FileSystem is the read surface archive sources are fetched through.
// The client only ever reads archives, never writes them back.
type FileSystem interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Stat(ctx context.Context, name string) (fs.FileInfo, error)
	IsLocal() bool
}

const s3Scheme = "s3://"

// ForTarget resolves a submission target to the filesystem able to read
// it, plus the target path within that filesystem.
func ForTarget(ctx context.Context, target string, s3cfg S3Config) (fsys FileSystem, path string, err error) {
	if strings.HasPrefix(target, s3Scheme) {
		fsys, err = NewS3FileSystem(ctx, s3cfg)
		if err != nil {
			return
		}
		path = strings.TrimPrefix(target, s3Scheme)
		return
	}
	fsys = NewLocalFileSystem()
	path = target
	return
}
