package intake

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/units"
)

var LogLevel = &slog.LevelVar{}

var logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
	Level: LogLevel,
}))

const defaultMaxArchiveSize int64 = 100 * 1024 * 1024

// accepted archive suffixes paired with their declared media type. The
// pairing is by extension, not content sniffing: the backend re-validates
// whatever it receives.
var acceptedTypes = []struct {
	suffix    string
	mediaType string
}{
	{".tar.gz", "application/gzip"},
	{".tgz", "application/gzip"},
	{".tar", "application/x-tar"},
	{".zip", "application/zip"},
}

var (
	ErrNoArchive        = errors.New("no archive offered")
	ErrMultipleArchives = errors.New("more than one archive offered")
	ErrNotAccepted      = errors.New("file type not accepted")
	ErrEmptyArchive     = errors.New("archive is empty")
	ErrTooBig           = errors.New("archive exceeds the maximum size")
)

// Accepted reports whether the file name carries one of the accepted
// archive types (zip, tar, gzip-tar).
func Accepted(name string) bool {
	return MediaType(name) != ""
}

// MediaType returns the declared media type for an accepted archive name,
// or "" when the type is not accepted.
func MediaType(name string) string {
	lower := strings.ToLower(name)
	for _, t := range acceptedTypes {
		if strings.HasSuffix(lower, t.suffix) {
			return t.mediaType
		}
	}
	return ""
}

type Validator struct {
	maxSize int64
}

func NewValidator(maxArchiveSize string) (v *Validator, err error) {
	maxSize := defaultMaxArchiveSize
	if maxArchiveSize != "" {
		maxSize, err = units.ParseStrictBytes(maxArchiveSize)
		if err != nil {
			err = fmt.Errorf("could not parse max-archive-size: %w", err)
			return
		}
	}
	if maxSize <= 0 {
		logger.Warn("max archive size must be greater than 0, set the value to 100MiB", slog.String("max-archive-size", maxArchiveSize))
		maxSize = defaultMaxArchiveSize
	}
	v = &Validator{maxSize: maxSize}
	return
}

// CheckSize validates the size of an archive that cannot be stat'ed
// locally, such as an S3 object.
func (v *Validator) CheckSize(size int64) (err error) {
	if size == 0 {
		return ErrEmptyArchive
	}
	if size > v.maxSize {
		return fmt.Errorf("%w: %d bytes, max %d", ErrTooBig, size, v.maxSize)
	}
	return
}

// Select accepts exactly one qualifying archive from the offered files.
// An empty offer returns ErrNoArchive (callers treat it as a no-op); more
// than one qualifying file is rejected without submission.
func (v *Validator) Select(offered ...string) (archive string, err error) {
	if len(offered) == 0 {
		err = ErrNoArchive
		return
	}

	qualifying := make([]string, 0, 1)
	for _, name := range offered {
		if !Accepted(name) {
			logger.Debug("skip file", slog.String("file", name), slog.String("reason", "type not accepted"))
			continue
		}
		qualifying = append(qualifying, name)
	}

	switch len(qualifying) {
	case 0:
		err = fmt.Errorf("%w: accepted types are zip, tar and gzip-tar", ErrNotAccepted)
		return
	case 1:
	default:
		err = fmt.Errorf("%w: got %d", ErrMultipleArchives, len(qualifying))
		return
	}

	archive = qualifying[0]
	info, err := os.Stat(archive)
	if err != nil {
		archive = ""
		return
	}
	if info.Size() == 0 {
		archive = ""
		err = ErrEmptyArchive
		return
	}
	if info.Size() > v.maxSize {
		archive = ""
		err = fmt.Errorf("%w: %d bytes, max %d", ErrTooBig, info.Size(), v.maxSize)
		return
	}
	return
}
