package observability

import (
	"sync"
	"time"
	"unicode/utf8"

	"github.com/kbukum/asrgate/util"
)

// RequestMetrics summarises one transcription request.
type RequestMetrics struct {
	// ProcessingTime is wall-clock seconds between Start and Stop.
	ProcessingTime float64 `json:"processing_time"`
	Characters     int     `json:"characters"`
	AudioDuration  float64 `json:"audio_duration"`
	CharsPerSecond float64 `json:"chars_per_second"`
	// RealTimeFactor is audio seconds per processing second; above 1 is
	// faster than real time.
	RealTimeFactor float64 `json:"real_time_factor"`
}

// Recorder measures a single request. Use one per request.
type Recorder struct {
	now func() time.Time

	mu        sync.Mutex
	started   time.Time
	stopped   time.Time
	chars     int
	audioSecs float64
}

// NewRecorder creates a recorder. A nil clock uses time.Now.
func NewRecorder(now func() time.Time) *Recorder {
	if now == nil {
		now = time.Now
	}
	return &Recorder{now: now}
}

// Start marks the beginning of processing.
func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = r.now()
	r.stopped = time.Time{}
}

// Stop marks the end of processing and captures the transcript size and the
// input audio duration.
func (r *Recorder) Stop(text string, audioSeconds float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = r.now()
	if r.started.IsZero() {
		r.started = r.stopped
	}
	r.chars = utf8.RuneCountInString(text)
	if audioSeconds < 0 {
		audioSeconds = 0
	}
	r.audioSecs = audioSeconds
}

// Summarize returns the metrics captured by Start and Stop. Derived rates are
// computed from the reported (rounded) processing time, so they are zero
// whenever it reads 0.00.
func (r *Recorder) Summarize() RequestMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()

	var elapsed float64
	if !r.stopped.IsZero() {
		elapsed = r.stopped.Sub(r.started).Seconds()
	}
	m := RequestMetrics{
		ProcessingTime: util.Round2(elapsed),
		Characters:     r.chars,
		AudioDuration:  util.Round2(r.audioSecs),
	}
	if m.ProcessingTime > 0 {
		m.CharsPerSecond = util.Round2(float64(r.chars) / m.ProcessingTime)
		m.RealTimeFactor = util.Round2(m.AudioDuration / m.ProcessingTime)
	}
	return m
}
