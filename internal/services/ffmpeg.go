package services

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/slidecast/slidecast/internal/logger"
)

// FFmpegService wraps the ffmpeg/ffprobe binaries. It is the single place
// that spawns media subprocesses; the resolver, mixer and renderer build on
// its primitives. Stderr is captured and attached to errors so renderer
// failures surface the underlying diagnostic verbatim.
type FFmpegService struct {
	ffmpegBin  string
	ffprobeBin string
	log        *logger.Logger
}

func NewFFmpegService() *FFmpegService {
	return &FFmpegService{
		ffmpegBin:  "ffmpeg",
		ffprobeBin: "ffprobe",
		log:        logger.New("ffmpeg"),
	}
}

// stderrTailBytes bounds how much diagnostic output gets attached to errors.
const stderrTailBytes = 2048

func (s *FFmpegService) run(ctx context.Context, bin string, args []string) error {
	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		tail := stderr.Bytes()
		if len(tail) > stderrTailBytes {
			tail = tail[len(tail)-stderrTailBytes:]
		}
		return fmt.Errorf("%s %s failed: %w: %s", bin, args[0], err, strings.TrimSpace(string(tail)))
	}
	return nil
}

// ProbeDuration returns a media file's duration in seconds via ffprobe.
func (s *FFmpegService) ProbeDuration(ctx context.Context, path string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}

	cmd := exec.CommandContext(ctx, s.ffprobeBin, args...)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed for %s: %w", path, err)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration for %s: %w", path, err)
	}
	if math.IsNaN(duration) || math.IsInf(duration, 0) {
		return 0, fmt.Errorf("ffprobe returned non-finite duration for %s", path)
	}
	return duration, nil
}

// RenderStill renders a still image into a video clip of the given duration,
// applying the supplied -vf filter chain.
func (s *FFmpegService) RenderStill(ctx context.Context, imagePath string, duration float64, fps int, filter, outputPath string) error {
	args := []string{
		"-loop", "1",
		"-t", formatSeconds(duration),
		"-i", imagePath,
		"-vf", filter,
		"-r", strconv.Itoa(fps),
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-an",
		"-y",
		outputPath,
	}
	return s.run(ctx, s.ffmpegBin, args)
}

// Concat joins clips losslessly with the concat demuxer. All clips share the
// same codec parameters, so no re-encode is needed.
func (s *FFmpegService) Concat(ctx context.Context, clipPaths []string, outputPath string) error {
	if len(clipPaths) == 0 {
		return fmt.Errorf("no clips to concatenate")
	}

	listPath := filepath.Join(filepath.Dir(outputPath), "concat_list.txt")
	var sb strings.Builder
	for _, p := range clipPaths {
		fmt.Fprintf(&sb, "file '%s'\n", p)
	}
	if err := os.WriteFile(listPath, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to write concat list: %w", err)
	}
	defer os.Remove(listPath)

	args := []string{
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		"-y",
		outputPath,
	}
	return s.run(ctx, s.ffmpegBin, args)
}

// MuxAudio muxes an audio track onto a video, trimming audio to video length.
func (s *FFmpegService) MuxAudio(ctx context.Context, videoPath, audioPath, outputPath string) error {
	args := []string{
		"-i", videoPath,
		"-i", audioPath,
		"-map", "0:v",
		"-map", "1:a",
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", "192k",
		"-shortest",
		"-y",
		outputPath,
	}
	return s.run(ctx, s.ffmpegBin, args)
}

// MixTracks runs a prebuilt ffmpeg argument list (from the mixer).
func (s *FFmpegService) MixTracks(ctx context.Context, args []string) error {
	return s.run(ctx, s.ffmpegBin, args)
}

// Cleanup removes temporary files, ignoring errors.
func (s *FFmpegService) Cleanup(paths ...string) {
	for _, p := range paths {
		os.Remove(p)
	}
}

func formatSeconds(d float64) string {
	return strconv.FormatFloat(d, 'f', 3, 64)
}

// escapeFilterText escapes text for use inside an ffmpeg filter argument.
// Filter strings treat backslashes, colons, quotes, commas and percent
// signs specially.
func escapeFilterText(text string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`'`, `\'`,
		`:`, `\:`,
		`,`, `\,`,
		`%`, `\%`,
		`[`, `\[`,
		`]`, `\]`,
	)
	return r.Replace(text)
}
