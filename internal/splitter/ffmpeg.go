package splitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	apperrors "github.com/GriffinCanCode/scribe/internal/errors"
)

// Transcoder probes and cuts audio files.
type Transcoder interface {
	Duration(ctx context.Context, path string) (time.Duration, error)
	Segment(ctx context.Context, path string, offset, duration time.Duration, kbps int, format string) ([]byte, error)
}

// FFmpeg shells out to ffprobe and ffmpeg on PATH.
type FFmpeg struct{}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Duration reads the container duration reported by ffprobe.
func (FFmpeg) Duration(ctx context.Context, path string) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	out, err := ffmpeg.Probe(path)
	if err != nil {
		return 0, apperrors.SourceUnreadable(err, path)
	}
	return parseProbe(out, path)
}

func parseProbe(out, path string) (time.Duration, error) {
	var probe probeOutput
	if err := json.Unmarshal([]byte(out), &probe); err != nil {
		return 0, apperrors.SourceUnreadable(err, path)
	}
	seconds, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil || seconds <= 0 {
		return 0, apperrors.SourceUnreadable(fmt.Errorf("no usable duration in probe output %q", probe.Format.Duration), path)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// Segment transcodes [offset, offset+duration) to format at kbps and returns the encoded bytes.
func (FFmpeg) Segment(ctx context.Context, path string, offset, duration time.Duration, kbps int, format string) ([]byte, error) {
	var out, stderr bytes.Buffer
	cmd := ffmpeg.Input(path, ffmpeg.KwArgs{
		"ss": seconds(offset),
		"t":  seconds(duration),
	}).
		Output("pipe:", ffmpeg.KwArgs{
			"f":   format,
			"b:a": fmt.Sprintf("%dk", kbps),
		}).
		WithOutput(&out).
		WithErrorOutput(&stderr).
		Compile()

	if err := cmd.Start(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeUnavailable, "failed to start ffmpeg")
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
		return nil, ctx.Err()
	case err := <-done:
		if err != nil {
			return nil, apperrors.Wrapf(err, apperrors.CodeInternal, "ffmpeg failed at offset %s: %s", offset, lastLine(stderr.String())).
				WithMetadata("path", path)
		}
	}
	return out.Bytes(), nil
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
