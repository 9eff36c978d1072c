package util

import "testing"

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"", 7},
		{"200MB", 200 << 20},
		{"512kb", 512 << 10},
		{"2GB", 2 << 30},
		{"1024", 1024},
		{"10 MB", 10 << 20},
		{"64B", 64},
		{"lots", 7},
		{"-5MB", 7},
	}
	for _, tt := range tests {
		if got := ParseSize(tt.in, 7); got != tt.want {
			t.Errorf("ParseSize(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestMaskSecret(t *testing.T) {
	if got := MaskSecret("sk-abcdef", 3); got != "sk-***" {
		t.Errorf("got %q", got)
	}
	if got := MaskSecret("ab", 3); got != "***" {
		t.Errorf("short secret should be fully masked, got %q", got)
	}
}

func TestSanitizeEnvValue(t *testing.T) {
	tests := map[string]string{
		`  "quoted" `: "quoted",
		`'single'`:    "single",
		`plain`:       "plain",
		`"`:           `"`,
	}
	for in, want := range tests {
		if got := SanitizeEnvValue(in); got != want {
			t.Errorf("SanitizeEnvValue(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRound2(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{1.234, 1.23},
		{1.236, 1.24},
		{0, 0},
		{-2.346, -2.35},
		{10, 10},
	}
	for _, tt := range tests {
		if got := Round2(tt.in); got != tt.want {
			t.Errorf("Round2(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCoalesce(t *testing.T) {
	if got := Coalesce("", "", "c", "d"); got != "c" {
		t.Errorf("got %q", got)
	}
	if got := Coalesce(0, 0); got != 0 {
		t.Errorf("got %d", got)
	}
	if p := Ptr(3); *p != 3 {
		t.Errorf("got %d", *p)
	}
}
