package format

import (
	"net/http"
	"reflect"
	"testing"

	"github.com/kbukum/asrgate/observability"
	"github.com/kbukum/asrgate/transcription"
)

func sample() *transcription.Result {
	return &transcription.Result{
		Text:     "hello world",
		Segments: []transcription.Segment{{ID: 0, Start: 0, End: 1.2, Text: " hello"}, {ID: 1, Start: 1.2, End: 2.0, Text: " world"}},
		Language: "en",
		Duration: 2.0,
	}
}

func TestParseMode(t *testing.T) {
	tests := map[string]Mode{
		"":           Full,
		"json":       Full,
		"full":       Full,
		"bogus":      Full,
		"simple":     TextOnly,
		"TEXT_ONLY":  TextOnly,
		"textonly":   TextOnly,
		"text":       PlainText,
		" plain ":    PlainText,
		"plain_text": PlainText,
	}
	for in, want := range tests {
		if got := ParseMode(in); got != want {
			t.Errorf("ParseMode(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestRender_TextOnly(t *testing.T) {
	resp := Render(sample(), nil, Meta{}, TextOnly)
	if resp.Status != http.StatusOK || resp.ContentType != ContentTypeJSON {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.Body != (TextBody{Text: "hello world"}) {
		t.Errorf("unexpected body %+v", resp.Body)
	}
}

func TestRender_PlainText(t *testing.T) {
	resp := Render(sample(), nil, Meta{}, PlainText)
	if resp.ContentType != ContentTypeText || resp.Text != "hello world" || resp.Body != nil {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestRender_FullWithMetrics(t *testing.T) {
	m := &observability.RequestMetrics{ProcessingTime: 1.5, Characters: 11}
	resp := Render(sample(), m, Meta{Strategy: transcription.LongForm, Converted: true}, Full)
	body, ok := resp.Body.(FullBody)
	if !ok {
		t.Fatalf("expected FullBody, got %T", resp.Body)
	}
	if body.Text != "hello world" || body.Language != "en" || len(body.Segments) != 2 {
		t.Errorf("unexpected body %+v", body)
	}
	if body.Metrics == nil || body.Metrics.ProcessingTime != 1.5 {
		t.Error("expected metrics in full body")
	}
	if body.Strategy != "long_form" || !body.Converted {
		t.Errorf("unexpected meta %q %v", body.Strategy, body.Converted)
	}
}

func TestRender_FullFallsBackToProbedDuration(t *testing.T) {
	res := sample()
	res.Duration = 0
	body := Render(res, nil, Meta{AudioDuration: 9.5}, Full).Body.(FullBody)
	if body.Duration != 9.5 {
		t.Errorf("expected probed duration, got %v", body.Duration)
	}
	if body.Metrics != nil {
		t.Error("metrics should be omitted when absent")
	}
}

func TestRender_DoesNotMutate(t *testing.T) {
	res := sample()
	before := sample()
	for _, mode := range []Mode{Full, TextOnly, PlainText} {
		resp := Render(res, nil, Meta{}, mode)
		if b, ok := resp.Body.(FullBody); ok {
			b.Segments[0].Text = "changed"
		}
	}
	if !reflect.DeepEqual(res, before) {
		t.Error("Render must not mutate the result")
	}
}
