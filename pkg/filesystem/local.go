package filesystem

import (
	"context"
	"io"
	"io/fs"
	"os"
)

// LocalFileSystem reads archives from the local filesystem.
type LocalFileSystem struct{}

func NewLocalFileSystem() *LocalFileSystem {
	return &LocalFileSystem{}
}

func (l *LocalFileSystem) Open(ctx context.Context, name string) (reader io.ReadCloser, err error) {
	reader, err = os.Open(name) //nolint:gosec // file indicated by user, for submitting only
	return
}

func (l *LocalFileSystem) Stat(ctx context.Context, name string) (info fs.FileInfo, err error) {
	info, err = os.Stat(name)
	return
}

func (l *LocalFileSystem) IsLocal() bool {
	return true
}
