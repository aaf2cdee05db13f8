package services

import (
	"context"

	"github.com/slidecast/slidecast/internal/logger"
)

// DurationResolver turns a narration file into an authoritative slide
// duration. Probing failures are not transient — a file that ffprobe cannot
// read now will not become readable — so there is no retry: the resolver
// degrades to the configured default and never returns an error.
type DurationResolver struct {
	ffmpeg  *FFmpegService
	defolt  float64
	minimum float64
	log     *logger.Logger
}

func NewDurationResolver(ffmpeg *FFmpegService, defaultSeconds, minSeconds float64) *DurationResolver {
	if defaultSeconds < minSeconds {
		defaultSeconds = minSeconds
	}
	return &DurationResolver{
		ffmpeg:  ffmpeg,
		defolt:  defaultSeconds,
		minimum: minSeconds,
		log:     logger.New("resolver"),
	}
}

// Default returns the fallback duration, already clamped to the minimum.
func (r *DurationResolver) Default() float64 {
	return r.defolt
}

// Resolve returns the narration's duration in seconds, or the default when
// the path is empty, probing fails, or the probe reports a non-positive
// value.
func (r *DurationResolver) Resolve(ctx context.Context, narrationPath string) float64 {
	if narrationPath == "" {
		return r.defolt
	}

	duration, err := r.ffmpeg.ProbeDuration(ctx, narrationPath)
	if err != nil {
		r.log.Warnf("could not probe %s, using default %.1fs: %v", narrationPath, r.defolt, err)
		return r.defolt
	}
	if duration <= 0 {
		r.log.Warnf("probe of %s returned %.3fs, using default %.1fs", narrationPath, duration, r.defolt)
		return r.defolt
	}
	return duration
}
