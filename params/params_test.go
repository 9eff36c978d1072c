package params

import (
	"encoding/json"
	"net/url"
	"reflect"
	"testing"

	"github.com/kbukum/asrgate/transcription"
)

func TestNormalize_Defaults(t *testing.T) {
	o := New(nil).Normalize(url.Values{})
	if !reflect.DeepEqual(o, transcription.DefaultOptions()) {
		t.Errorf("empty params should resolve to defaults:\n%+v", o)
	}
}

func TestNormalize_Temperature(t *testing.T) {
	n := New(nil)
	tests := []struct {
		name   string
		values []string
		want   []float64
	}{
		{"comma list", []string{"0.0,0.2,0.4"}, []float64{0, 0.2, 0.4}},
		{"single", []string{"0.5"}, []float64{0.5}},
		{"repeated", []string{"0.1", "0.3"}, []float64{0.1, 0.3}},
		{"bracketed", []string{"[0, 1]"}, []float64{0, 1}},
		{"malformed", []string{"hot"}, transcription.DefaultTemperatures},
		{"partly malformed", []string{"0.1,x"}, transcription.DefaultTemperatures},
		{"nan", []string{"nan"}, transcription.DefaultTemperatures},
		{"infinite item", []string{"0.2,Inf"}, transcription.DefaultTemperatures},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			o := n.Normalize(url.Values{"temperature": tc.values})
			if o.Temperature.Kind != transcription.KindSequence {
				t.Errorf("temperature must always be a sequence, got kind %v", o.Temperature.Kind)
			}
			if !reflect.DeepEqual(o.Temperature.Values, tc.want) {
				t.Errorf("got %v, want %v", o.Temperature.Values, tc.want)
			}
		})
	}
}

func TestNormalize_ClipTimestamps(t *testing.T) {
	n := New(nil)

	if o := n.Normalize(url.Values{"clip_timestamps": {"0"}}); !o.ClipTimestamps.IsSentinel() {
		t.Errorf("expected sentinel, got %+v", o.ClipTimestamps)
	}
	o := n.Normalize(url.Values{"clip_timestamps": {"0,10.5,20"}})
	if o.ClipTimestamps.Kind != transcription.KindSequence || !reflect.DeepEqual(o.ClipTimestamps.Values, []float64{0, 10.5, 20}) {
		t.Errorf("unexpected clip sequence %+v", o.ClipTimestamps)
	}
	o = n.Normalize(url.Values{"clip_timestamps": {"5", "9"}})
	if !reflect.DeepEqual(o.ClipTimestamps.Values, []float64{5, 9}) {
		t.Errorf("unexpected repeated clip %+v", o.ClipTimestamps)
	}
	if o := n.Normalize(url.Values{"clip_timestamps": {"abc"}}); !o.ClipTimestamps.IsSentinel() {
		t.Errorf("malformed clip should fall back to sentinel, got %+v", o.ClipTimestamps)
	}
}

func TestNormalize_LenientScalars(t *testing.T) {
	o := New(nil).Normalize(url.Values{
		"beam_size":                  {"seven"},
		"best_of":                    {"3.0"},
		"patience":                   {"2"},
		"condition_on_previous_text": {"maybe"},
		"word_timestamps":            {"yes"},
		"vad_filter":                 {"1"},
		"task":                       {"summarize"},
		"speed":                      {"fast"},
	})
	if o.BeamSize != 5 {
		t.Errorf("malformed beam_size should fall back to 5, got %d", o.BeamSize)
	}
	if o.BestOf != 3 {
		t.Errorf("expected best_of 3, got %d", o.BestOf)
	}
	if o.Patience != 2 {
		t.Errorf("expected patience 2, got %v", o.Patience)
	}
	if !o.ConditionOnPreviousText {
		t.Error("malformed bool should fall back to default true")
	}
	if !o.WordTimestamps || !o.VADFilter {
		t.Error("expected truthy booleans")
	}
	if o.Task != transcription.TaskTranscribe {
		t.Errorf("unknown task should fall back, got %s", o.Task)
	}
	if o.Speed != 1.0 {
		t.Errorf("malformed speed should fall back to 1.0, got %v", o.Speed)
	}
}

func TestNormalize_NonFiniteFallsBack(t *testing.T) {
	o := New(nil).Normalize(url.Values{
		"speed":               {"NaN"},
		"temperature":         {"nan"},
		"patience":            {"Inf"},
		"length_penalty":      {"-Inf"},
		"no_speech_threshold": {"NaN"},
		"beam_size":           {"Inf"},
	})
	def := transcription.DefaultOptions()
	if o.Speed != def.Speed {
		t.Errorf("NaN speed should fall back to %v, got %v", def.Speed, o.Speed)
	}
	if o.Patience != def.Patience || o.LengthPenalty != def.LengthPenalty {
		t.Errorf("infinite values should fall back, got patience=%v length_penalty=%v", o.Patience, o.LengthPenalty)
	}
	if o.NoSpeechThreshold != nil {
		t.Errorf("NaN threshold should stay unset, got %v", *o.NoSpeechThreshold)
	}
	if o.BeamSize != def.BeamSize {
		t.Errorf("infinite beam_size should fall back, got %d", o.BeamSize)
	}
	if !reflect.DeepEqual(o.Temperature.Values, transcription.DefaultTemperatures) {
		t.Errorf("NaN temperature should fall back, got %v", o.Temperature.Values)
	}
	if _, err := json.Marshal(o); err != nil {
		t.Errorf("resolved options must encode: %v", err)
	}
}

func TestNormalize_OptionalThresholds(t *testing.T) {
	n := New(nil)
	o := n.Normalize(url.Values{})
	if o.CompressionRatioThreshold != nil || o.LogProbThreshold != nil || o.NoSpeechThreshold != nil || o.HallucinationSilenceThreshold != nil {
		t.Error("unset thresholds must be omitted")
	}

	o = n.Normalize(url.Values{
		"compression_ratio_threshold": {"2.4"},
		"logprob_threshold":           {"-1.0"},
		"no_speech_threshold":         {"bad"},
		"max_new_tokens":              {"128"},
		"initial_prompt":              {"Meeting notes."},
	})
	if o.CompressionRatioThreshold == nil || *o.CompressionRatioThreshold != 2.4 {
		t.Error("expected compression ratio threshold 2.4")
	}
	if o.LogProbThreshold == nil || *o.LogProbThreshold != -1.0 {
		t.Error("expected logprob alias to set log_prob_threshold")
	}
	if o.NoSpeechThreshold != nil {
		t.Error("malformed optional threshold must stay omitted")
	}
	if o.MaxNewTokens == nil || *o.MaxNewTokens != 128 {
		t.Error("expected max_new_tokens 128")
	}
	if o.InitialPrompt == nil || *o.InitialPrompt != "Meeting notes." {
		t.Error("expected initial prompt")
	}
}

func TestNormalize_ListsAndObjects(t *testing.T) {
	o := New(nil).Normalize(url.Values{
		"suppress_tokens": {"-1,50256"},
		"vad_parameters":  {`{"min_silence_duration_ms": 500}`},
		"language":        {" EN "},
	})
	if !reflect.DeepEqual(o.SuppressTokens, []int{-1, 50256}) {
		t.Errorf("unexpected suppress tokens %v", o.SuppressTokens)
	}
	if o.VADParameters["min_silence_duration_ms"] != float64(500) {
		t.Errorf("unexpected vad parameters %v", o.VADParameters)
	}
	if o.Language != "en" {
		t.Errorf("expected language en, got %q", o.Language)
	}

	bad := New(nil).Normalize(url.Values{"vad_parameters": {"{not json"}, "language": {"auto"}})
	if bad.VADParameters != nil {
		t.Error("malformed vad_parameters must be omitted")
	}
	if bad.Language != "" {
		t.Errorf("auto should mean detect, got %q", bad.Language)
	}
}

func TestNormalize_PunctuationPassthrough(t *testing.T) {
	o := New(nil).Normalize(url.Values{"append_punctuations": {" .。"}})
	if o.AppendPunctuations != " .。" {
		t.Errorf("punctuation must pass through verbatim, got %q", o.AppendPunctuations)
	}
	if o.PrependPunctuations != transcription.DefaultPrependPunctuations {
		t.Error("expected default prepend punctuations")
	}
}

func TestNew_ConfiguredDefaults(t *testing.T) {
	n := New(map[string]any{
		"beam_size":      1,
		"temperature":    []any{0.0, 0.5},
		"vad_filter":     true,
		"vad_parameters": map[string]any{"threshold": 0.4},
	})
	o := n.Normalize(url.Values{})
	if o.BeamSize != 1 || !o.VADFilter {
		t.Errorf("configured defaults not applied: %+v", o)
	}
	if !reflect.DeepEqual(o.Temperature.Values, []float64{0, 0.5}) {
		t.Errorf("unexpected temperature %v", o.Temperature.Values)
	}
	if o.VADParameters["threshold"] != 0.4 {
		t.Errorf("unexpected vad parameters %v", o.VADParameters)
	}

	// Request values still win, and malformed ones fall back to the configured default.
	o = n.Normalize(url.Values{"beam_size": {"3"}})
	if o.BeamSize != 3 {
		t.Errorf("expected request override, got %d", o.BeamSize)
	}
	o = n.Normalize(url.Values{"beam_size": {"x"}})
	if o.BeamSize != 1 {
		t.Errorf("expected configured fallback, got %d", o.BeamSize)
	}
}

func TestNormalize_DoesNotShareState(t *testing.T) {
	n := New(nil)
	a := n.Normalize(url.Values{})
	a.SuppressTokens[0] = 99
	a.Temperature.Values[0] = 9
	b := n.Normalize(url.Values{})
	if b.SuppressTokens[0] != -1 || b.Temperature.Values[0] != 0 {
		t.Error("requests must not share option slices")
	}
}
