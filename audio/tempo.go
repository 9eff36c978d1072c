package audio

import (
	"strconv"
	"strings"
)

// atempo accepts factors in [0.5, 2.0] per stage.
const (
	atempoMin = 0.5
	atempoMax = 2.0
)

// TempoFilter returns an ffmpeg audio filter that changes tempo by speed,
// chaining atempo stages so each stays in range. It returns "" for 1.0.
func TempoFilter(speed float64) string {
	if speed == 1.0 || speed <= 0 {
		return ""
	}
	var stages []string
	for speed > atempoMax {
		stages = append(stages, stage(atempoMax))
		speed /= atempoMax
	}
	for speed < atempoMin {
		stages = append(stages, stage(atempoMin))
		speed /= atempoMin
	}
	if speed != 1.0 {
		stages = append(stages, stage(speed))
	}
	return strings.Join(stages, ",")
}

func stage(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return "atempo=" + s
}
