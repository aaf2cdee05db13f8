package services

import (
	"strings"

	"github.com/slidecast/slidecast/internal/models"
)

// Caption styling defaults. Font size steps down as captions get longer so
// long text still fits the frame; sizes are tuned for the 1280x768 canvas.
const (
	defaultCaptionColor    = "white"
	defaultCaptionPosition = models.CaptionBottom

	captionFontLarge  = 48 // up to 40 chars
	captionFontMedium = 36 // up to 90 chars
	captionFontSmall  = 28 // up to 160 chars
	captionFontTiny   = 22 // anything longer
)

// Composer turns a slide plus its resolved assets into a renderable clip.
// It is deterministic and does no I/O beyond what the caller already did.
type Composer struct {
	maxWordsPerLine int
}

func NewComposer(maxWordsPerLine int) *Composer {
	if maxWordsPerLine <= 0 {
		maxWordsPerLine = 8
	}
	return &Composer{maxWordsPerLine: maxWordsPerLine}
}

// Compose builds the ResolvedClip for one slide. imagePath must exist;
// narrationPath may be empty; duration must already be resolved and > 0.
func (c *Composer) Compose(index int, slide models.SlideSpec, imagePath, narrationPath string, duration float64) models.ResolvedClip {
	clip := models.ResolvedClip{
		Index:         index,
		ImagePath:     imagePath,
		NarrationPath: narrationPath,
		Duration:      duration,
	}

	if slide.Caption != nil && strings.TrimSpace(slide.Caption.Text) != "" {
		clip.Caption = c.composeCaption(*slide.Caption)
	}

	return clip
}

func (c *Composer) composeCaption(spec models.CaptionSpec) *models.CaptionLayer {
	layer := &models.CaptionLayer{
		Lines:    WrapWords(spec.Text, c.maxWordsPerLine),
		FontSize: spec.FontSize,
		Color:    spec.Color,
		Position: spec.Position,
	}

	if layer.FontSize <= 0 {
		layer.FontSize = FontSizeFor(spec.Text)
	}
	if layer.Color == "" {
		layer.Color = defaultCaptionColor
	}
	switch layer.Position {
	case models.CaptionTop, models.CaptionCenter, models.CaptionBottom:
	default:
		layer.Position = defaultCaptionPosition
	}

	return layer
}

// WrapWords splits text into lines of at most maxWords words each,
// collapsing runs of whitespace.
func WrapWords(text string, maxWords int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	for start := 0; start < len(words); start += maxWords {
		end := start + maxWords
		if end > len(words) {
			end = len(words)
		}
		lines = append(lines, strings.Join(words[start:end], " "))
	}
	return lines
}

// FontSizeFor picks a caption font size from the text's total length:
// longer captions step down through the size tiers.
func FontSizeFor(text string) int {
	n := len(strings.TrimSpace(text))
	switch {
	case n <= 40:
		return captionFontLarge
	case n <= 90:
		return captionFontMedium
	case n <= 160:
		return captionFontSmall
	default:
		return captionFontTiny
	}
}
