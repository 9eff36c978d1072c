// Package params turns loosely typed request parameters into a fully
// resolved transcription.Options.
//
// Parsing is lenient: a malformed value falls back to the default for that
// field and is logged at debug level. Normalize never fails.
package params

import (
	"encoding/json"
	"maps"
	"net/url"
	"slices"
	"strings"

	"github.com/spf13/cast"

	"github.com/kbukum/asrgate/logger"
	"github.com/kbukum/asrgate/transcription"
)

// Normalizer resolves request parameters against a set of defaults.
type Normalizer struct {
	base transcription.Options
	log  *logger.Logger
}

// New creates a normalizer. configured overrides the built-in defaults and
// uses the same keys and shapes as request parameters.
func New(configured map[string]any) *Normalizer {
	n := &Normalizer{
		base: transcription.DefaultOptions(),
		log:  logger.Get("params"),
	}
	if len(configured) > 0 {
		n.base = n.resolve(n.base, ValuesFromMap(configured))
	}
	return n
}

// Defaults returns a copy of the resolved defaults.
func (n *Normalizer) Defaults() transcription.Options {
	return clone(n.base)
}

// Normalize resolves values into Options. Repeated keys form lists.
func (n *Normalizer) Normalize(values url.Values) transcription.Options {
	return n.resolve(clone(n.base), values)
}

func (n *Normalizer) resolve(o transcription.Options, v url.Values) transcription.Options {
	r := reader{values: v, log: n.log}

	if s, ok := r.str("language"); ok {
		s = strings.ToLower(s)
		if s == "auto" {
			s = ""
		}
		o.Language = s
	}
	if s, ok := r.str("task"); ok {
		switch t := transcription.Task(strings.ToLower(s)); t {
		case transcription.TaskTranscribe, transcription.TaskTranslate:
			o.Task = t
		default:
			r.fallback("task", s)
		}
	}

	o.Temperature = r.floatSeq("temperature", o.Temperature, false).AsSequence()
	o.ClipTimestamps = r.floatSeq("clip_timestamps", o.ClipTimestamps, true)

	o.BeamSize = r.int("beam_size", o.BeamSize)
	o.BestOf = r.int("best_of", o.BestOf)
	o.Patience = r.float("patience", o.Patience)
	o.LengthPenalty = r.float("length_penalty", o.LengthPenalty)
	o.RepetitionPenalty = r.float("repetition_penalty", o.RepetitionPenalty)
	o.NoRepeatNgramSize = r.int("no_repeat_ngram_size", o.NoRepeatNgramSize)

	o.CompressionRatioThreshold = r.optFloat("compression_ratio_threshold", o.CompressionRatioThreshold)
	o.LogProbThreshold = r.optFloat("log_prob_threshold", r.optFloat("logprob_threshold", o.LogProbThreshold))
	o.NoSpeechThreshold = r.optFloat("no_speech_threshold", o.NoSpeechThreshold)
	o.HallucinationSilenceThreshold = r.optFloat("hallucination_silence_threshold", o.HallucinationSilenceThreshold)
	o.LanguageDetectionThreshold = r.optFloat("language_detection_threshold", o.LanguageDetectionThreshold)

	o.ConditionOnPreviousText = r.bool("condition_on_previous_text", o.ConditionOnPreviousText)
	o.PromptResetOnTemperature = r.float("prompt_reset_on_temperature", o.PromptResetOnTemperature)
	o.InitialPrompt = r.optString("initial_prompt", o.InitialPrompt)
	o.Prefix = r.optString("prefix", o.Prefix)
	o.Hotwords = r.optString("hotwords", o.Hotwords)
	o.SuppressBlank = r.bool("suppress_blank", o.SuppressBlank)
	o.SuppressTokens = r.intList("suppress_tokens", o.SuppressTokens)
	o.WithoutTimestamps = r.bool("without_timestamps", o.WithoutTimestamps)
	o.WordTimestamps = r.bool("word_timestamps", o.WordTimestamps)
	o.MaxInitialTimestamp = r.float("max_initial_timestamp", o.MaxInitialTimestamp)
	o.PrependPunctuations = r.raw("prepend_punctuations", o.PrependPunctuations)
	o.AppendPunctuations = r.raw("append_punctuations", o.AppendPunctuations)
	o.VADFilter = r.bool("vad_filter", o.VADFilter)
	o.VADParameters = r.object("vad_parameters", o.VADParameters)
	o.MaxNewTokens = r.optInt("max_new_tokens", o.MaxNewTokens)
	o.ChunkLength = r.optInt("chunk_length", o.ChunkLength)
	o.LanguageDetectionSegments = r.int("language_detection_segments", o.LanguageDetectionSegments)
	o.LogProgress = r.bool("log_progress", o.LogProgress)

	o.Speed = r.float("speed", o.Speed)
	return o
}

// ValuesFromMap converts a config map into request-shaped values. Slices
// become repeated keys; nested maps are encoded as JSON.
func ValuesFromMap(m map[string]any) url.Values {
	v := make(url.Values, len(m))
	for k, raw := range m {
		switch val := raw.(type) {
		case nil:
		case []any:
			v[k] = toStrings(val)
		case []float64:
			v[k] = toStrings(val)
		case []int:
			v[k] = toStrings(val)
		case []string:
			v[k] = val
		case map[string]any:
			if b, err := json.Marshal(val); err == nil {
				v.Set(k, string(b))
			}
		default:
			v.Set(k, cast.ToString(val))
		}
	}
	return v
}

func toStrings[T any](xs []T) []string {
	out := make([]string, len(xs))
	for i, x := range xs {
		out[i] = cast.ToString(x)
	}
	return out
}

func clone(o transcription.Options) transcription.Options {
	o.Temperature.Values = slices.Clone(o.Temperature.Values)
	o.ClipTimestamps.Values = slices.Clone(o.ClipTimestamps.Values)
	o.SuppressTokens = slices.Clone(o.SuppressTokens)
	o.VADParameters = maps.Clone(o.VADParameters)
	return o
}
