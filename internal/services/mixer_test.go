package services

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/slidecast/slidecast/internal/models"
)

func clipsWithDurations(narrated []bool, durations []float64) []models.ResolvedClip {
	clips := make([]models.ResolvedClip, len(durations))
	for i, d := range durations {
		clips[i] = models.ResolvedClip{Index: i, ImagePath: "img", Duration: d}
		if narrated[i] {
			clips[i].NarrationPath = "narration"
		}
	}
	return clips
}

func TestNarrationTimelineOffsets(t *testing.T) {
	clips := clipsWithDurations([]bool{true, true, true}, []float64{2, 3, 1.5})

	placements, total := NarrationTimeline(clips)

	if math.Abs(total-6.5) > 0.001 {
		t.Errorf("total = %.3f, want 6.5", total)
	}
	wantOffsets := []float64{0, 2, 5}
	wantDurations := []float64{2, 3, 1.5}
	if len(placements) != len(wantOffsets) {
		t.Fatalf("got %d placements, want %d", len(placements), len(wantOffsets))
	}
	for i, p := range placements {
		if math.Abs(p.Offset-wantOffsets[i]) > 0.001 {
			t.Errorf("placement %d offset = %.3f, want %.3f", i, p.Offset, wantOffsets[i])
		}
		if math.Abs(p.Duration-wantDurations[i]) > 0.001 {
			t.Errorf("placement %d duration = %.3f, want %.3f", i, p.Duration, wantDurations[i])
		}
	}
}

// Silent clips still advance the timeline, so the master track's length
// always equals the sum of all clip durations.
func TestNarrationTimelineSilentGaps(t *testing.T) {
	clips := clipsWithDurations([]bool{false, true}, []float64{4.0, 4.0})

	placements, total := NarrationTimeline(clips)

	if math.Abs(total-8.0) > 0.001 {
		t.Errorf("total = %.3f, want 8.0", total)
	}
	if len(placements) != 1 {
		t.Fatalf("got %d placements, want 1", len(placements))
	}
	if math.Abs(placements[0].Offset-4.0) > 0.001 {
		t.Errorf("offset = %.3f, want 4.0", placements[0].Offset)
	}
}

func TestNarrationTimelineEmpty(t *testing.T) {
	placements, total := NarrationTimeline(nil)
	if placements != nil || total != 0 {
		t.Errorf("empty timeline = (%v, %.2f), want (nil, 0)", placements, total)
	}
}

func TestMixArgsFullMix(t *testing.T) {
	placements := []NarrationPlacement{
		{Path: "/w/narration_000.mp3", Offset: 0, Duration: 2.5},
		{Path: "/w/narration_001.mp3", Offset: 2.5, Duration: 4.0},
	}
	policy := MixPolicy{MusicGain: 0.2, VoiceGain: 1.0}

	args := mixArgs(placements, 6.5, "/w/music.mp3", policy, "/w/master.m4a")
	joined := strings.Join(args, " ")

	// Silence bed first, trimmed to the slide timeline.
	if !strings.Contains(joined, "anullsrc=channel_layout=stereo:sample_rate=44100") {
		t.Error("missing silence bed input")
	}
	if !strings.Contains(joined, "-t 6.500") {
		t.Error("missing total-duration trim")
	}
	// Music input looped indefinitely; amix trims it.
	if !strings.Contains(joined, "-stream_loop -1 -i /w/music.mp3") {
		t.Error("music input not looped")
	}

	var filter string
	for i, a := range args {
		if a == "-filter_complex" {
			filter = args[i+1]
		}
	}
	if filter == "" {
		t.Fatal("no -filter_complex argument")
	}
	// Each narration trimmed to its clip span, delayed to the clip offset,
	// voice at full gain.
	if !strings.Contains(filter, "atrim=0:2.500,adelay=0|0,volume=1.00") {
		t.Errorf("first narration trim/delay/gain missing in filter: %s", filter)
	}
	if !strings.Contains(filter, "atrim=0:4.000,adelay=2500|2500,volume=1.00") {
		t.Errorf("second narration trim/delay/gain missing in filter: %s", filter)
	}
	// Music attenuated under the narration.
	if !strings.Contains(filter, "volume=0.20[mus]") {
		t.Errorf("music attenuation missing in filter: %s", filter)
	}
	// Bed + 2 narrations + music = 4 inputs; bed length wins.
	if !strings.Contains(filter, "amix=inputs=4:duration=first") {
		t.Errorf("amix shape wrong: %s", filter)
	}
	if !strings.Contains(joined, "-map [aout]") {
		t.Error("mixed stream not mapped to output")
	}
}

// An overlong narration track (decodable despite a failed probe) is cut at
// its clip boundary rather than spilling into the next clip's narration.
func TestMixArgsTrimsNarrationToClipSpan(t *testing.T) {
	placements := []NarrationPlacement{
		{Path: "/w/narration_000.mp3", Offset: 0, Duration: 4.0},
		{Path: "/w/narration_001.mp3", Offset: 4.0, Duration: 3.0},
	}
	policy := MixPolicy{MusicGain: 0.2, VoiceGain: 1.0}

	args := mixArgs(placements, 7.0, "", policy, "/w/master.m4a")

	var filter string
	for i, a := range args {
		if a == "-filter_complex" {
			filter = args[i+1]
		}
	}
	if strings.Count(filter, "atrim=") != len(placements) {
		t.Errorf("every narration input needs a trim: %s", filter)
	}
	if !strings.Contains(filter, "[1:a]atrim=0:4.000,") {
		t.Errorf("first narration not bounded by its clip span: %s", filter)
	}
}

func TestMixArgsVoiceOnly(t *testing.T) {
	placements := []NarrationPlacement{{Path: "/w/narration_000.mp3", Offset: 0, Duration: 4.0}}
	policy := MixPolicy{MusicGain: 0.2, VoiceGain: 1.0}

	args := mixArgs(placements, 4.0, "", policy, "/w/master.m4a")
	joined := strings.Join(args, " ")

	if strings.Contains(joined, "-stream_loop") {
		t.Error("voice-only mix must not include a music input")
	}
	if !strings.Contains(joined, "amix=inputs=2:duration=first") {
		t.Errorf("expected bed+narration amix: %s", joined)
	}
}

func TestMusicOnlyArgs(t *testing.T) {
	args := musicOnlyArgs("/w/music.mp3", 12.0, 0.25, "/w/master.m4a")
	joined := strings.Join(args, " ")

	if !strings.Contains(joined, "-stream_loop -1 -i /w/music.mp3") {
		t.Error("music not looped")
	}
	if !strings.Contains(joined, "-t 12.000") {
		t.Error("music not trimmed to timeline")
	}
	if !strings.Contains(joined, "volume=0.25") {
		t.Error("music not attenuated")
	}
}

// No narration and no music is a valid silent state, not an error.
func TestBuildMasterSilent(t *testing.T) {
	m := NewAudioMixer(nil, MixPolicy{MusicGain: 0.2})
	clips := clipsWithDurations([]bool{false, false}, []float64{4.0, 4.0})

	path, err := m.BuildMaster(context.Background(), clips, "", t.TempDir())
	if err != nil {
		t.Fatalf("silent build returned error: %v", err)
	}
	if path != "" {
		t.Errorf("silent build returned path %q, want empty", path)
	}
}

func TestBuildMasterEmptyTimeline(t *testing.T) {
	m := NewAudioMixer(nil, MixPolicy{MusicGain: 0.2})

	path, err := m.BuildMaster(context.Background(), nil, "/w/music.mp3", t.TempDir())
	if err != nil || path != "" {
		t.Errorf("empty timeline = (%q, %v), want (\"\", nil)", path, err)
	}
}

func TestNewAudioMixerDefaultsVoiceGain(t *testing.T) {
	m := NewAudioMixer(nil, MixPolicy{MusicGain: 0.2})
	if m.policy.VoiceGain != 1.0 {
		t.Errorf("voice gain = %.2f, want 1.0", m.policy.VoiceGain)
	}
}
