package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/slidecast/slidecast/internal/logger"
	"github.com/slidecast/slidecast/internal/models"
)

// Renderer produces the final video from a RenderSpec: each clip becomes a
// still-image segment with optional caption overlay and a fade transition,
// the segments are concatenated, and the master audio track is muxed on.
// Rendering failure is fatal to the job — no partial video is delivered.
type Renderer struct {
	ffmpeg *FFmpegService
	log    *logger.Logger
}

func NewRenderer(ffmpeg *FFmpegService) *Renderer {
	return &Renderer{ffmpeg: ffmpeg, log: logger.New("renderer")}
}

func (r *Renderer) Render(ctx context.Context, spec models.RenderSpec) error {
	if len(spec.Clips) == 0 {
		return fmt.Errorf("render spec has no clips")
	}

	workDir := filepath.Dir(spec.OutputPath)

	// Stage 1: render each slide to its own segment.
	clipPaths := make([]string, 0, len(spec.Clips))
	for i, clip := range spec.Clips {
		segPath := filepath.Join(workDir, fmt.Sprintf("seg_%03d.mp4", i))
		filter := BuildSlideFilter(clip, spec, i == 0, i == len(spec.Clips)-1)

		r.log.Debugf("rendering segment %d/%d (duration=%.2fs)", i+1, len(spec.Clips), clip.Duration)
		if err := r.ffmpeg.RenderStill(ctx, clip.ImagePath, clip.Duration, spec.FPS, filter, segPath); err != nil {
			r.ffmpeg.Cleanup(clipPaths...)
			return fmt.Errorf("rendering slide %d: %w", clip.Index, err)
		}
		clipPaths = append(clipPaths, segPath)
	}
	defer r.ffmpeg.Cleanup(clipPaths...)

	// Stage 2: concatenate. When there is no audio the concat output is the
	// final video; otherwise it is an intermediate.
	videoPath := spec.OutputPath
	if spec.AudioPath != "" {
		videoPath = filepath.Join(workDir, "silent.mp4")
		defer os.Remove(videoPath)
	}
	if err := r.ffmpeg.Concat(ctx, clipPaths, videoPath); err != nil {
		return fmt.Errorf("concatenating %d segments: %w", len(clipPaths), err)
	}

	// Stage 3: mux the master track, trimmed to video length.
	if spec.AudioPath != "" {
		if err := r.ffmpeg.MuxAudio(ctx, videoPath, spec.AudioPath, spec.OutputPath); err != nil {
			return fmt.Errorf("muxing master audio: %w", err)
		}
	}

	return nil
}

// BuildSlideFilter constructs the -vf chain for one slide: fit the image to
// the output frame (letterboxed), burn in the caption lines, and apply the
// fade transition. Fade-in is skipped on the first clip and fade-out on the
// last so the video starts and ends on a full frame.
func BuildSlideFilter(clip models.ResolvedClip, spec models.RenderSpec, first, last bool) string {
	parts := []string{
		fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease", spec.Width, spec.Height),
		fmt.Sprintf("pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=black", spec.Width, spec.Height),
		"setsar=1",
	}

	if clip.Caption != nil {
		parts = append(parts, captionFilters(clip.Caption, spec.Height)...)
	}

	if t := spec.TransitionDuration; t > 0 && clip.Duration > 2*t {
		if !first {
			parts = append(parts, fmt.Sprintf("fade=t=in:st=0:d=%s", formatSeconds(t)))
		}
		if !last {
			parts = append(parts, fmt.Sprintf("fade=t=out:st=%s:d=%s",
				formatSeconds(clip.Duration-t), formatSeconds(t)))
		}
	}

	return strings.Join(parts, ",")
}

// captionFilters emits one drawtext filter per wrapped line, centered
// horizontally and stacked at the caption's anchor position.
func captionFilters(caption *models.CaptionLayer, frameHeight int) []string {
	lineHeight := caption.FontSize + caption.FontSize/4
	blockHeight := lineHeight * len(caption.Lines)

	var yBase int
	switch caption.Position {
	case models.CaptionTop:
		yBase = frameHeight / 12
	case models.CaptionCenter:
		yBase = (frameHeight - blockHeight) / 2
	default: // bottom
		yBase = frameHeight - frameHeight/10 - blockHeight
	}

	filters := make([]string, 0, len(caption.Lines))
	for i, line := range caption.Lines {
		filters = append(filters, fmt.Sprintf(
			"drawtext=text='%s':fontsize=%d:fontcolor=%s:borderw=2:bordercolor=black:x=(w-text_w)/2:y=%d",
			escapeFilterText(line), caption.FontSize, caption.Color, yBase+i*lineHeight,
		))
	}
	return filters
}
