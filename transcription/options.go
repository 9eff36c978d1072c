package transcription

import (
	"encoding/json"
	"strconv"
	"strings"
)

// SeqKind tags the shape of a FloatSeq.
type SeqKind int

const (
	KindSingle SeqKind = iota
	KindSequence
	// KindSentinel is the "0" no-clipping marker for clip timestamps.
	KindSentinel
)

// FloatSeq is a float parameter that may be a single value, an ordered
// sequence, or the "0" sentinel. A Sentinel is distinct from an empty
// Sequence.
type FloatSeq struct {
	Kind   SeqKind
	Values []float64
}

// Single returns a one-value FloatSeq.
func Single(v float64) FloatSeq { return FloatSeq{Kind: KindSingle, Values: []float64{v}} }

// Sequence returns an ordered FloatSeq.
func Sequence(vs ...float64) FloatSeq {
	return FloatSeq{Kind: KindSequence, Values: append([]float64{}, vs...)}
}

// NoClip returns the clip-timestamps sentinel.
func NoClip() FloatSeq { return FloatSeq{Kind: KindSentinel} }

// IsSentinel reports whether s is the "0" sentinel.
func (s FloatSeq) IsSentinel() bool { return s.Kind == KindSentinel }

// AsSequence returns s with KindSingle widened to KindSequence.
func (s FloatSeq) AsSequence() FloatSeq {
	if s.Kind == KindSingle {
		return Sequence(s.Values...)
	}
	return s
}

// String renders the canonical wire form: "0" for the sentinel, otherwise
// comma-separated values.
func (s FloatSeq) String() string {
	if s.Kind == KindSentinel {
		return "0"
	}
	parts := make([]string, len(s.Values))
	for i, v := range s.Values {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}

// MarshalJSON encodes the sentinel as the string "0", a single value as a
// number and a sequence as an array.
func (s FloatSeq) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case KindSentinel:
		return []byte(`"0"`), nil
	case KindSingle:
		if len(s.Values) == 1 {
			return json.Marshal(s.Values[0])
		}
	}
	vs := s.Values
	if vs == nil {
		vs = []float64{}
	}
	return json.Marshal(vs)
}

// Task selects transcription or translation to English.
type Task string

const (
	TaskTranscribe Task = "transcribe"
	TaskTranslate  Task = "translate"
)

// Default punctuation sets, passed through to the engine verbatim.
const (
	DefaultPrependPunctuations = "\"'“¿([{-"
	DefaultAppendPunctuations  = "\"'.。,，!！?？:：”)]}、"
)

// DefaultTemperatures is the fallback decoding schedule.
var DefaultTemperatures = []float64{0.0, 0.2, 0.4, 0.6, 0.8, 1.0}

// Options is the fully resolved parameter set handed to an engine. Pointer
// fields are optional and omitted when nil so the engine's own defaults apply.
type Options struct {
	Language                      string         `json:"language,omitempty"`
	Task                          Task           `json:"task"`
	Temperature                   FloatSeq       `json:"temperature"`
	BeamSize                      int            `json:"beam_size"`
	BestOf                        int            `json:"best_of"`
	Patience                      float64        `json:"patience"`
	LengthPenalty                 float64        `json:"length_penalty"`
	RepetitionPenalty             float64        `json:"repetition_penalty"`
	NoRepeatNgramSize             int            `json:"no_repeat_ngram_size"`
	CompressionRatioThreshold     *float64       `json:"compression_ratio_threshold,omitempty"`
	LogProbThreshold              *float64       `json:"log_prob_threshold,omitempty"`
	NoSpeechThreshold             *float64       `json:"no_speech_threshold,omitempty"`
	HallucinationSilenceThreshold *float64       `json:"hallucination_silence_threshold,omitempty"`
	ConditionOnPreviousText       bool           `json:"condition_on_previous_text"`
	PromptResetOnTemperature      float64        `json:"prompt_reset_on_temperature"`
	InitialPrompt                 *string        `json:"initial_prompt,omitempty"`
	Prefix                        *string        `json:"prefix,omitempty"`
	Hotwords                      *string        `json:"hotwords,omitempty"`
	SuppressBlank                 bool           `json:"suppress_blank"`
	SuppressTokens                []int          `json:"suppress_tokens"`
	WithoutTimestamps             bool           `json:"without_timestamps"`
	WordTimestamps                bool           `json:"word_timestamps"`
	MaxInitialTimestamp           float64        `json:"max_initial_timestamp"`
	PrependPunctuations           string         `json:"prepend_punctuations"`
	AppendPunctuations            string         `json:"append_punctuations"`
	VADFilter                     bool           `json:"vad_filter"`
	VADParameters                 map[string]any `json:"vad_parameters,omitempty"`
	MaxNewTokens                  *int           `json:"max_new_tokens,omitempty"`
	ChunkLength                   *int           `json:"chunk_length,omitempty"`
	ClipTimestamps                FloatSeq       `json:"clip_timestamps"`
	LanguageDetectionThreshold    *float64       `json:"language_detection_threshold,omitempty"`
	LanguageDetectionSegments     int            `json:"language_detection_segments"`
	LogProgress                   bool           `json:"log_progress"`

	// Speed is applied during audio normalisation, never sent to the engine.
	Speed float64 `json:"-"`
}

// DefaultOptions returns the built-in defaults.
func DefaultOptions() Options {
	return Options{
		Task:                      TaskTranscribe,
		Temperature:               Sequence(DefaultTemperatures...),
		BeamSize:                  5,
		BestOf:                    5,
		Patience:                  1.0,
		LengthPenalty:             1.0,
		RepetitionPenalty:         1.0,
		ConditionOnPreviousText:   true,
		PromptResetOnTemperature:  0.5,
		SuppressBlank:             true,
		SuppressTokens:            []int{-1},
		MaxInitialTimestamp:       1.0,
		PrependPunctuations:       DefaultPrependPunctuations,
		AppendPunctuations:        DefaultAppendPunctuations,
		ClipTimestamps:            NoClip(),
		LanguageDetectionSegments: 1,
		Speed:                     1.0,
	}
}
