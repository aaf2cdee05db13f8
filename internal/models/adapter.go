package models

// Legacy n8n payload support. Early automation clients post
// {"supabaseData": [{"image_url": ...}], "n8nWebhookUrl": ...} instead of
// the canonical job request. The adapter converts that shape at the API
// boundary so nothing downstream ever branches on input format.

type N8NItem struct {
	ImageURL string `json:"image_url"`
	AudioURL string `json:"audio_url,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

type N8NRequest struct {
	SupabaseData  []N8NItem `json:"supabaseData" validate:"required,min=1"`
	N8NWebhookURL string    `json:"n8nWebhookUrl" validate:"required,url"`
	MusicURL      string    `json:"music_url,omitempty"`
	RequestID     string    `json:"request_id,omitempty"`
}

// FromN8N maps the legacy shape onto the canonical CreateJobRequest.
func FromN8N(req N8NRequest) CreateJobRequest {
	slides := make([]SlideRequest, len(req.SupabaseData))
	for i, item := range req.SupabaseData {
		slides[i] = SlideRequest{
			ImageRef:     item.ImageURL,
			NarrationRef: item.AudioURL,
		}
		if item.Caption != "" {
			slides[i].Caption = &CaptionSpec{Text: item.Caption}
		}
	}
	return CreateJobRequest{
		RequestID:  req.RequestID,
		Slides:     slides,
		MusicRef:   req.MusicURL,
		WebhookURL: req.N8NWebhookURL,
	}
}
