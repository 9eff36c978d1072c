package process

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Result holds the output and status of a completed subprocess.
type Result struct {
	Stdout []byte
	Stderr []byte
	// ExitCode is -1 if the process was killed or never started.
	ExitCode int
	Duration time.Duration
}

// StderrTail returns at most the last n bytes of stderr, trimmed and cut on a
// rune boundary.
func (r *Result) StderrTail(n int) string {
	if r == nil {
		return ""
	}
	b := r.Stderr
	if len(b) > n {
		b = b[len(b)-n:]
		for len(b) > 0 && !utf8.RuneStart(b[0]) {
			b = b[1:]
		}
	}
	return strings.TrimSpace(string(b))
}
