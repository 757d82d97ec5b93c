// Package splitter transcribes long recordings by cutting them into segments that each
// fit under the transcription service's payload limit.
package splitter

import (
	"math"
	"time"

	apperrors "github.com/GriffinCanCode/scribe/internal/errors"
)

// Plan describes how a recording is cut. Every segment has the same duration.
type Plan struct {
	Total           time.Duration
	MaxSegment      time.Duration
	Count           int
	SegmentDuration time.Duration
}

// NewPlan sizes segments so an encoding at kbps stays under limit bytes.
func NewPlan(total time.Duration, limit, kbps int) (Plan, error) {
	if limit <= 0 || kbps <= 0 {
		return Plan{}, apperrors.Newf(apperrors.CodeInvalidArgument, "invalid payload limit %d or bitrate %dkbps", limit, kbps)
	}
	if total <= 0 {
		return Plan{}, apperrors.Newf(apperrors.CodeInvalidArgument, "recording duration %s is not positive", total)
	}

	bytesPerSecond := kbps * 1024 / 8
	maxSeconds := limit / bytesPerSecond
	if maxSeconds == 0 {
		return Plan{}, apperrors.Newf(apperrors.CodeInvalidArgument,
			"payload limit %d bytes holds less than one second at %dkbps", limit, kbps)
	}

	maxSegment := time.Duration(maxSeconds) * time.Second
	count := int(math.Ceil(total.Seconds() / float64(maxSeconds)))
	return Plan{
		Total:           total,
		MaxSegment:      maxSegment,
		Count:           count,
		SegmentDuration: total / time.Duration(count),
	}, nil
}

// Offset returns the start of segment i.
func (p Plan) Offset(i int) time.Duration {
	return time.Duration(i) * p.SegmentDuration
}
