package transcription

// LongFormThreshold is the engine's native single-window capacity in
// seconds. Audio at or below it is transcribed in one pass.
const LongFormThreshold = 30.0

// Strategy is the transcription strategy for a request.
type Strategy int

const (
	ShortForm Strategy = iota
	LongForm
)

func (s Strategy) String() string {
	if s == LongForm {
		return "long_form"
	}
	return "short_form"
}

// ChooseStrategy picks ShortForm for durations up to and including
// LongFormThreshold. An unknown duration (0) is short-form.
func ChooseStrategy(seconds float64) Strategy {
	if seconds > LongFormThreshold {
		return LongForm
	}
	return ShortForm
}
