package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/slidecast/slidecast/internal/logger"
	"github.com/slidecast/slidecast/internal/models"
)

// MixPolicy holds the gain ratios applied when narration and background
// music are combined. Source material disagrees on the "right" attenuation
// (0.15-0.3 in the wild), so both values are explicit configuration rather
// than constants buried in a filter string.
type MixPolicy struct {
	MusicGain float64 // music bed volume relative to full scale
	VoiceGain float64 // narration volume, normally 1.0
}

// NarrationPlacement pins one narration file to its clip's start offset on
// the master timeline. Duration is the clip's span: the narration is trimmed
// to it so a track that decodes longer than its resolved duration cannot
// bleed into the next clip.
type NarrationPlacement struct {
	Path     string
	Offset   float64 // seconds from the start of the video
	Duration float64 // clip span the narration must fit inside
}

// NarrationTimeline walks clips in order, accumulating elapsed time, and
// returns the placement of every narration track plus the total duration.
// Clips without narration contribute silence for their span.
func NarrationTimeline(clips []models.ResolvedClip) ([]NarrationPlacement, float64) {
	var placements []NarrationPlacement
	var elapsed float64
	for _, clip := range clips {
		if clip.NarrationPath != "" {
			placements = append(placements, NarrationPlacement{
				Path:     clip.NarrationPath,
				Offset:   elapsed,
				Duration: clip.Duration,
			})
		}
		elapsed += clip.Duration
	}
	return placements, elapsed
}

// AudioMixer builds one master audio track per job. Mixing is a best-effort
// enhancement: when the external mix fails the mixer degrades to a
// voice-only track, and finally to no track at all, but never fails the job.
type AudioMixer struct {
	ffmpeg *FFmpegService
	policy MixPolicy
	log    *logger.Logger
}

func NewAudioMixer(ffmpeg *FFmpegService, policy MixPolicy) *AudioMixer {
	if policy.VoiceGain <= 0 {
		policy.VoiceGain = 1.0
	}
	return &AudioMixer{ffmpeg: ffmpeg, policy: policy, log: logger.New("mixer")}
}

// BuildMaster produces the master track in workDir and returns its path.
// An empty path with a nil error means "silent output" — a valid state when
// the job has neither narration nor music.
func (m *AudioMixer) BuildMaster(ctx context.Context, clips []models.ResolvedClip, musicPath, workDir string) (string, error) {
	placements, total := NarrationTimeline(clips)
	if total <= 0 {
		return "", nil
	}

	outputPath := filepath.Join(workDir, "master.m4a")

	if len(placements) == 0 {
		if musicPath == "" {
			return "", nil
		}
		// Music-only bed, looped/trimmed to the slide timeline.
		args := musicOnlyArgs(musicPath, total, m.policy.MusicGain, outputPath)
		if err := m.ffmpeg.MixTracks(ctx, args); err != nil {
			m.log.Warnf("music-only mix failed, rendering silent: %v", err)
			return "", nil
		}
		return outputPath, nil
	}

	// Narration bed with optional attenuated music underneath.
	args := mixArgs(placements, total, musicPath, m.policy, outputPath)
	if err := m.ffmpeg.MixTracks(ctx, args); err == nil {
		return outputPath, nil
	} else if musicPath == "" {
		m.log.Warnf("narration mix failed, rendering silent: %v", err)
		return "", nil
	} else {
		m.log.Warnf("full mix failed, retrying voice-only: %v", err)
	}

	// Fallback: drop the music layer and keep narration.
	args = mixArgs(placements, total, "", m.policy, outputPath)
	if err := m.ffmpeg.MixTracks(ctx, args); err != nil {
		m.log.Warnf("voice-only mix failed, rendering silent: %v", err)
		return "", nil
	}
	return outputPath, nil
}

// mixArgs builds the ffmpeg invocation that lays narration clips onto a
// silence bed of exactly total seconds, optionally mixing a looped music
// layer underneath. The bed is the first amix input with duration=first, so
// the master's length always equals the slide timeline.
func mixArgs(placements []NarrationPlacement, total float64, musicPath string, policy MixPolicy, outputPath string) []string {
	args := []string{
		"-f", "lavfi",
		"-t", formatSeconds(total),
		"-i", "anullsrc=channel_layout=stereo:sample_rate=44100",
	}
	for _, p := range placements {
		args = append(args, "-i", p.Path)
	}
	if musicPath != "" {
		args = append(args, "-stream_loop", "-1", "-i", musicPath)
	}

	var filter strings.Builder
	labels := []string{"[0:a]"}
	for i, p := range placements {
		delayMs := int(p.Offset * 1000)
		fmt.Fprintf(&filter, "[%d:a]atrim=0:%s,adelay=%d|%d,volume=%.2f[n%d];",
			i+1, formatSeconds(p.Duration), delayMs, delayMs, policy.VoiceGain, i)
		labels = append(labels, fmt.Sprintf("[n%d]", i))
	}
	if musicPath != "" {
		fmt.Fprintf(&filter, "[%d:a]volume=%.2f[mus];", len(placements)+1, policy.MusicGain)
		labels = append(labels, "[mus]")
	}
	fmt.Fprintf(&filter, "%samix=inputs=%d:duration=first:dropout_transition=0:normalize=0[aout]",
		strings.Join(labels, ""), len(labels))

	args = append(args,
		"-filter_complex", filter.String(),
		"-map", "[aout]",
		"-t", formatSeconds(total),
		"-c:a", "aac",
		"-b:a", "192k",
		"-y",
		outputPath,
	)
	return args
}

func musicOnlyArgs(musicPath string, total, gain float64, outputPath string) []string {
	return []string{
		"-stream_loop", "-1",
		"-i", musicPath,
		"-t", formatSeconds(total),
		"-af", fmt.Sprintf("volume=%.2f", gain),
		"-c:a", "aac",
		"-b:a", "192k",
		"-y",
		outputPath,
	}
}
