package params

import (
	"encoding/json"
	"math"
	"net/url"
	"strings"

	"github.com/spf13/cast"

	"github.com/kbukum/asrgate/logger"
	"github.com/kbukum/asrgate/transcription"
)

// reader extracts typed fields from url.Values, falling back on bad input.
type reader struct {
	values url.Values
	log    *logger.Logger
}

func (r reader) fallback(key, value string) {
	r.log.Debug("malformed parameter, using default", logger.Fields("parameter", key, "value", value))
}

// str returns the first trimmed non-empty value for key.
func (r reader) str(key string) (string, bool) {
	for _, s := range r.values[key] {
		if s = strings.TrimSpace(s); s != "" {
			return s, true
		}
	}
	return "", false
}

// raw returns the first value untrimmed; punctuation sets may contain spaces.
func (r reader) raw(key string, def string) string {
	vs := r.values[key]
	if len(vs) == 0 || vs[0] == "" {
		return def
	}
	return vs[0]
}

func (r reader) float(key string, def float64) float64 {
	s, ok := r.str(key)
	if !ok {
		return def
	}
	f, ok := parseFloat(s)
	if !ok {
		r.fallback(key, s)
		return def
	}
	return f
}

// parseFloat rejects NaN and infinities.
func parseFloat(s string) (float64, bool) {
	f, err := cast.ToFloat64E(s)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func (r reader) int(key string, def int) int {
	s, ok := r.str(key)
	if !ok {
		return def
	}
	i, ok := parseInt(s)
	if !ok {
		r.fallback(key, s)
		return def
	}
	return i
}

// parseInt also accepts integral floats such as "5.0".
func parseInt(s string) (int, bool) {
	if i, err := cast.ToIntE(s); err == nil {
		return i, true
	}
	f, ok := parseFloat(s)
	if !ok || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}

func (r reader) bool(key string, def bool) bool {
	s, ok := r.str(key)
	if !ok {
		return def
	}
	switch strings.ToLower(s) {
	case "yes", "y", "on":
		return true
	case "no", "n", "off":
		return false
	}
	b, err := cast.ToBoolE(s)
	if err != nil {
		r.fallback(key, s)
		return def
	}
	return b
}

func (r reader) optFloat(key string, def *float64) *float64 {
	s, ok := r.str(key)
	if !ok {
		return def
	}
	f, ok := parseFloat(s)
	if !ok {
		r.fallback(key, s)
		return def
	}
	return &f
}

func (r reader) optInt(key string, def *int) *int {
	s, ok := r.str(key)
	if !ok {
		return def
	}
	i, ok := parseInt(s)
	if !ok {
		r.fallback(key, s)
		return def
	}
	return &i
}

func (r reader) optString(key string, def *string) *string {
	s, ok := r.str(key)
	if !ok {
		return def
	}
	return &s
}

// list splits every value on commas and strips JSON-style brackets, so
// "0,0.2", "[0, 0.2]" and repeated keys all produce the same items.
func (r reader) list(key string) []string {
	var items []string
	for _, v := range r.values[key] {
		v = strings.TrimSpace(v)
		v = strings.TrimPrefix(v, "[")
		v = strings.TrimSuffix(v, "]")
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				items = append(items, part)
			}
		}
	}
	return items
}

// floatSeq parses a scalar-or-list float field. With allowSentinel a lone
// "0" is the sentinel rather than a one-element sequence.
func (r reader) floatSeq(key string, def transcription.FloatSeq, allowSentinel bool) transcription.FloatSeq {
	items := r.list(key)
	if len(items) == 0 {
		return def
	}
	if allowSentinel && len(items) == 1 && items[0] == "0" {
		return transcription.NoClip()
	}
	vals := make([]float64, 0, len(items))
	for _, it := range items {
		f, ok := parseFloat(it)
		if !ok {
			r.fallback(key, strings.Join(r.values[key], ","))
			return def
		}
		vals = append(vals, f)
	}
	if len(vals) == 1 && !allowSentinel {
		return transcription.Single(vals[0])
	}
	return transcription.Sequence(vals...)
}

func (r reader) intList(key string, def []int) []int {
	items := r.list(key)
	if len(items) == 0 {
		return def
	}
	out := make([]int, 0, len(items))
	for _, it := range items {
		i, ok := parseInt(it)
		if !ok {
			r.fallback(key, strings.Join(r.values[key], ","))
			return def
		}
		out = append(out, i)
	}
	return out
}

func (r reader) object(key string, def map[string]any) map[string]any {
	s, ok := r.str(key)
	if !ok {
		return def
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil || m == nil {
		r.fallback(key, s)
		return def
	}
	return m
}
