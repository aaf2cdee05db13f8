package models

import (
	"testing"
)

func TestJobStateTerminal(t *testing.T) {
	active := []JobState{JobStateRegistered, JobStateDownloading, JobStateProcessing, JobStateUploading}
	for _, s := range active {
		if s.IsTerminal() {
			t.Errorf("state %s should not be terminal", s)
		}
	}

	for _, s := range []JobState{JobStateCompleted, JobStateFailed} {
		if !s.IsTerminal() {
			t.Errorf("state %s should be terminal", s)
		}
	}
}

func TestNewJobDefaults(t *testing.T) {
	req := CreateJobRequest{
		Slides: []SlideRequest{
			{ImageRef: "https://example.com/a.png"},
			{ImageRef: "https://example.com/b.png", NarrationRef: "https://example.com/b.mp3"},
		},
		WebhookURL: "https://example.com/hook",
	}

	job := NewJob(req)

	if job.State != JobStateRegistered {
		t.Errorf("expected registered state, got %s", job.State)
	}
	if job.RequestID == "" {
		t.Error("expected generated request id when none supplied")
	}
	if len(job.Slides) != 2 {
		t.Fatalf("expected 2 slides, got %d", len(job.Slides))
	}
	if job.Slides[1].NarrationRef != "https://example.com/b.mp3" {
		t.Errorf("narration ref not carried over: %q", job.Slides[1].NarrationRef)
	}
	if job.CreatedAt.IsZero() || job.UpdatedAt.IsZero() {
		t.Error("timestamps must be set at registration")
	}
}

func TestSanitizeRequestID(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"simple-id_1.2", "simple-id_1.2"},
		{"with space/and:slash", "with_space_and_slash"},
		{"../../etc/passwd", "_.._etc_passwd"},
		{"...", ""},
		{"  ", ""},
	}

	for _, c := range cases {
		if got := SanitizeRequestID(c.in); got != c.want {
			t.Errorf("SanitizeRequestID(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFromN8N(t *testing.T) {
	legacy := N8NRequest{
		SupabaseData: []N8NItem{
			{ImageURL: "https://cdn/a.png", AudioURL: "https://cdn/a.mp3", Caption: "Hello"},
			{ImageURL: "https://cdn/b.png"},
		},
		N8NWebhookURL: "https://n8n.example.com/webhook/123",
		MusicURL:      "https://cdn/bed.mp3",
	}

	req := FromN8N(legacy)

	if req.WebhookURL != legacy.N8NWebhookURL {
		t.Errorf("webhook url not mapped: %q", req.WebhookURL)
	}
	if req.MusicRef != legacy.MusicURL {
		t.Errorf("music ref not mapped: %q", req.MusicRef)
	}
	if len(req.Slides) != 2 {
		t.Fatalf("expected 2 slides, got %d", len(req.Slides))
	}
	if req.Slides[0].Caption == nil || req.Slides[0].Caption.Text != "Hello" {
		t.Error("caption not mapped for first slide")
	}
	if req.Slides[1].Caption != nil {
		t.Error("expected no caption for second slide")
	}
	if req.Slides[0].NarrationRef != "https://cdn/a.mp3" {
		t.Errorf("narration not mapped: %q", req.Slides[0].NarrationRef)
	}
}
