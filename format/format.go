// Package format projects a transcription result onto one of the response
// contracts offered by the API.
package format

import (
	"net/http"
	"strings"

	"github.com/kbukum/asrgate/observability"
	"github.com/kbukum/asrgate/transcription"
)

// Mode selects the response contract.
type Mode int

const (
	// Full is the complete structured result plus metrics.
	Full Mode = iota
	// TextOnly is {"text": "..."}.
	TextOnly
	// PlainText is the bare transcript as text/plain.
	PlainText
)

func (m Mode) String() string {
	switch m {
	case TextOnly:
		return "text_only"
	case PlainText:
		return "plain_text"
	default:
		return "full"
	}
}

// ParseMode maps a request value onto a Mode. Unknown or empty values are
// Full.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "simple", "text_only", "textonly":
		return TextOnly
	case "text", "plain", "plain_text":
		return PlainText
	default:
		return Full
	}
}

const (
	ContentTypeJSON = "application/json; charset=utf-8"
	ContentTypeText = "text/plain; charset=utf-8"
)

// Response is a rendered reply. Exactly one of Body or Text is meaningful,
// as indicated by ContentType.
type Response struct {
	Status      int
	ContentType string
	Body        any
	Text        string
}

// FullBody is the Full-mode payload.
type FullBody struct {
	Text                string                        `json:"text"`
	Segments            []transcription.Segment       `json:"segments"`
	Language            string                        `json:"language,omitempty"`
	LanguageProbability float64                       `json:"language_probability,omitempty"`
	Duration            float64                       `json:"duration"`
	Strategy            string                        `json:"strategy,omitempty"`
	Converted           bool                          `json:"converted"`
	Metrics             *observability.RequestMetrics `json:"metrics,omitempty"`
}

// TextBody is the TextOnly payload.
type TextBody struct {
	Text string `json:"text"`
}

// Meta carries request facts that Full mode reports alongside the result.
type Meta struct {
	Strategy  transcription.Strategy
	Converted bool
	// AudioDuration is the probed duration, used when the engine reports none.
	AudioDuration float64
}

// Render projects res onto mode. res is never modified; Full mode copies
// the segment slice.
func Render(res *transcription.Result, metrics *observability.RequestMetrics, meta Meta, mode Mode) Response {
	if res == nil {
		res = &transcription.Result{}
	}
	switch mode {
	case TextOnly:
		return Response{Status: http.StatusOK, ContentType: ContentTypeJSON, Body: TextBody{Text: res.Text}}
	case PlainText:
		return Response{Status: http.StatusOK, ContentType: ContentTypeText, Text: res.Text}
	}

	segments := make([]transcription.Segment, len(res.Segments))
	copy(segments, res.Segments)
	duration := res.Duration
	if duration == 0 {
		duration = meta.AudioDuration
	}
	var m *observability.RequestMetrics
	if metrics != nil {
		cp := *metrics
		m = &cp
	}
	return Response{
		Status:      http.StatusOK,
		ContentType: ContentTypeJSON,
		Body: FullBody{
			Text:                res.Text,
			Segments:            segments,
			Language:            res.Language,
			LanguageProbability: res.LanguageProbability,
			Duration:            duration,
			Strategy:            meta.Strategy.String(),
			Converted:           meta.Converted,
			Metrics:             m,
		},
	}
}
