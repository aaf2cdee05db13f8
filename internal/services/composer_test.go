package services

import (
	"reflect"
	"strings"
	"testing"

	"github.com/slidecast/slidecast/internal/models"
)

func TestWrapWords(t *testing.T) {
	cases := []struct {
		name     string
		text     string
		maxWords int
		want     []string
	}{
		{
			name:     "short caption stays on one line",
			text:     "Hello World",
			maxWords: 8,
			want:     []string{"Hello World"},
		},
		{
			name:     "exactly max words stays on one line",
			text:     "one two three four five six seven eight",
			maxWords: 8,
			want:     []string{"one two three four five six seven eight"},
		},
		{
			name:     "ninth word wraps",
			text:     "one two three four five six seven eight nine",
			maxWords: 8,
			want:     []string{"one two three four five six seven eight", "nine"},
		},
		{
			name:     "whitespace runs collapse",
			text:     "  spaced \t out\n words ",
			maxWords: 2,
			want:     []string{"spaced out", "words"},
		},
		{
			name:     "blank text yields no lines",
			text:     "   ",
			maxWords: 8,
			want:     nil,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := WrapWords(c.text, c.maxWords)
			if !reflect.DeepEqual(got, c.want) {
				t.Errorf("WrapWords(%q, %d) = %v, want %v", c.text, c.maxWords, got, c.want)
			}
		})
	}
}

func TestFontSizeFor(t *testing.T) {
	cases := []struct {
		length int
		want   int
	}{
		{10, captionFontLarge},
		{40, captionFontLarge},
		{41, captionFontMedium},
		{90, captionFontMedium},
		{91, captionFontSmall},
		{160, captionFontSmall},
		{161, captionFontTiny},
		{400, captionFontTiny},
	}

	for _, c := range cases {
		text := strings.Repeat("a", c.length)
		if got := FontSizeFor(text); got != c.want {
			t.Errorf("FontSizeFor(len=%d) = %d, want %d", c.length, got, c.want)
		}
	}
}

func TestComposeCaptionDefaults(t *testing.T) {
	c := NewComposer(8)
	slide := models.SlideSpec{
		ImageRef: "https://cdn/a.png",
		Caption:  &models.CaptionSpec{Text: "Hello World"},
	}

	clip := c.Compose(0, slide, "/tmp/a.png", "", 4.0)

	if clip.Caption == nil {
		t.Fatal("expected caption layer")
	}
	if clip.Caption.Color != defaultCaptionColor {
		t.Errorf("color = %q, want %q", clip.Caption.Color, defaultCaptionColor)
	}
	if clip.Caption.Position != models.CaptionBottom {
		t.Errorf("position = %q, want bottom", clip.Caption.Position)
	}
	if clip.Caption.FontSize != captionFontLarge {
		t.Errorf("font size = %d, want %d", clip.Caption.FontSize, captionFontLarge)
	}
	if len(clip.Caption.Lines) != 1 || clip.Caption.Lines[0] != "Hello World" {
		t.Errorf("lines = %v", clip.Caption.Lines)
	}
}

func TestComposeCaptionOverrides(t *testing.T) {
	c := NewComposer(8)
	slide := models.SlideSpec{
		ImageRef: "https://cdn/a.png",
		Caption: &models.CaptionSpec{
			Text:     "Styled",
			Color:    "yellow",
			Position: models.CaptionTop,
			FontSize: 30,
		},
	}

	clip := c.Compose(0, slide, "/tmp/a.png", "", 4.0)

	if clip.Caption.Color != "yellow" || clip.Caption.Position != models.CaptionTop || clip.Caption.FontSize != 30 {
		t.Errorf("explicit styling lost: %+v", clip.Caption)
	}
}

func TestComposeUnknownPositionFallsBack(t *testing.T) {
	c := NewComposer(8)
	slide := models.SlideSpec{
		ImageRef: "https://cdn/a.png",
		Caption:  &models.CaptionSpec{Text: "hi", Position: "sideways"},
	}

	clip := c.Compose(0, slide, "/tmp/a.png", "", 4.0)
	if clip.Caption.Position != models.CaptionBottom {
		t.Errorf("position = %q, want bottom fallback", clip.Caption.Position)
	}
}

func TestComposeBlankCaptionIgnored(t *testing.T) {
	c := NewComposer(8)
	slide := models.SlideSpec{
		ImageRef: "https://cdn/a.png",
		Caption:  &models.CaptionSpec{Text: "   "},
	}

	clip := c.Compose(2, slide, "/tmp/a.png", "/tmp/a.mp3", 3.5)
	if clip.Caption != nil {
		t.Error("blank caption should produce no layer")
	}
	if clip.Index != 2 || clip.Duration != 3.5 || clip.NarrationPath != "/tmp/a.mp3" {
		t.Errorf("clip fields wrong: %+v", clip)
	}
}

func TestComposeDeterministic(t *testing.T) {
	c := NewComposer(8)
	slide := models.SlideSpec{
		ImageRef: "https://cdn/a.png",
		Caption:  &models.CaptionSpec{Text: "the same caption every time, wrapped the same way"},
	}

	a := c.Compose(1, slide, "/tmp/a.png", "", 4.0)
	b := c.Compose(1, slide, "/tmp/a.png", "", 4.0)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("compose not deterministic:\n%+v\n%+v", a, b)
	}
}
