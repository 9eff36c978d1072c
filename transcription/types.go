package transcription

// Word is a word-level timestamp.
type Word struct {
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Word        string  `json:"word"`
	Probability float64 `json:"probability"`
}

// Segment is a time-aligned portion of a transcript.
type Segment struct {
	ID               int     `json:"id"`
	Start            float64 `json:"start"`
	End              float64 `json:"end"`
	Text             string  `json:"text"`
	AvgLogProb       float64 `json:"avg_logprob,omitempty"`
	CompressionRatio float64 `json:"compression_ratio,omitempty"`
	NoSpeechProb     float64 `json:"no_speech_prob,omitempty"`
	Temperature      float64 `json:"temperature,omitempty"`
	Words            []Word  `json:"words,omitempty"`
}

// Result is an engine's transcription output.
type Result struct {
	Text                string    `json:"text"`
	Segments            []Segment `json:"segments,omitempty"`
	Language            string    `json:"language,omitempty"`
	LanguageProbability float64   `json:"language_probability,omitempty"`
	// Duration is the audio length in seconds as reported by the engine.
	Duration float64 `json:"duration,omitempty"`
}
