// Package artifact persists session audio to disk.
package artifact

import (
	"context"
	"os"
	"path/filepath"
	"time"

	apperrors "github.com/GriffinCanCode/scribe/internal/errors"
	"github.com/GriffinCanCode/scribe/internal/trace"
)

// DefaultDir is used when no output directory is configured.
const DefaultDir = "./.output"

// nameLayout renders YYYY-MM-DD-HH-mm.
const nameLayout = "2006-01-02-15-04"

// Sink stores an encoded payload and returns where it went.
type Sink interface {
	Save(ctx context.Context, data []byte, ext string, at time.Time) (string, error)
}

// FileSink writes artifacts into a directory, one file per session.
type FileSink struct {
	Dir string
}

// NewFileSink creates a sink rooted at dir.
func NewFileSink(dir string) *FileSink {
	if dir == "" {
		dir = DefaultDir
	}
	return &FileSink{Dir: dir}
}

// Name returns the file name for a session stopped at the given time.
func Name(at time.Time, ext string) string {
	return at.UTC().Format(nameLayout) + "." + ext
}

// Save writes data to <Dir>/<UTC timestamp>.<ext>, creating Dir if needed.
// A second session stopped in the same minute overwrites the first.
func (s *FileSink) Save(ctx context.Context, data []byte, ext string, at time.Time) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeInternal, "failed to create output dir").WithMetadata("path", s.Dir)
	}
	path := filepath.Join(s.Dir, Name(at, ext))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeInternal, "failed to write artifact").WithMetadata("path", path)
	}
	trace.Logger(ctx).Info("saved session audio", "path", path, "bytes", len(data))
	return path, nil
}
