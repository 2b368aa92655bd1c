package intake

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// PackDir packages a source directory into a zip archive under the
// system temp dir, so plain source trees can be submitted like archives.
// VCS metadata is left out. The caller owns the returned file.
func PackDir(dir string) (archive string, err error) {
	dir = filepath.Clean(dir)
	info, err := os.Stat(dir)
	if err != nil {
		return
	}
	if !info.IsDir() {
		err = fmt.Errorf("%s is not a directory", dir)
		return
	}

	out, err := os.CreateTemp(os.TempDir(), filepath.Base(dir)+"_*.zip")
	if err != nil {
		return
	}
	archive = out.Name()
	defer func() {
		if e := out.Close(); e != nil && err == nil {
			err = e
		}
		if err != nil {
			if e := os.Remove(archive); e != nil {
				logger.Warn("could not remove partial archive", slog.String("archive", archive), slog.String("error", e.Error()))
			}
			archive = ""
		}
	}()

	zw := zip.NewWriter(out)
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			logger.Debug("skip file", slog.String("file", path), slog.String("reason", "not a regular file"))
			return nil
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return relErr
		}
		w, createErr := zw.Create(filepath.ToSlash(rel))
		if createErr != nil {
			return createErr
		}
		f, openErr := os.Open(filepath.Clean(path))
		if openErr != nil {
			return openErr
		}
		defer f.Close()
		_, copyErr := io.Copy(w, f)
		return copyErr
	})
	if err != nil {
		zw.Close()
		return
	}
	if err = zw.Close(); err != nil {
		return
	}
	err = checkPackedArchive(archive)
	return
}

// empty zip archives are rejected upstream; guard against packing one
func checkPackedArchive(archive string) (err error) {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return
	}
	defer zr.Close()
	if len(zr.File) == 0 {
		err = ErrEmptyArchive
	}
	return
}

// IsRepositoryURL reports whether the submission target looks like a Git
// repository rather than a local path.
func IsRepositoryURL(target string) bool {
	if strings.HasSuffix(target, ".git") {
		return true
	}
	return strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") || strings.HasPrefix(target, "git@")
}
