package timeparse

import (
	"errors"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	cases := map[string]time.Duration{
		"1:30":    90 * time.Minute,
		"1:30:00": 90 * time.Minute,
		"0:05:30": 5*time.Minute + 30*time.Second,
		"90m":     90 * time.Minute,
		"1h30m":   90 * time.Minute,
		"3600s":   time.Hour,
		"15":      15 * time.Minute,
		"2h":      2 * time.Hour,
		"1h30m5s": time.Hour + 30*time.Minute + 5*time.Second,
		" 45m ":   45 * time.Minute,
	}
	for in, want := range cases {
		got, err := Parse(in)
		if err != nil {
			t.Errorf("Parse(%q) unexpected error: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("Parse(%q) = %v; want %v", in, got, want)
		}
	}
}

func TestParse_Errors(t *testing.T) {
	for _, in := range []string{"", "   ", "abc", "5x", "1:2:3:4", "h", "::", "-5m"} {
		if _, err := Parse(in); err == nil {
			t.Errorf("Parse(%q) expected error, got nil", in)
		} else if !errors.Is(err, ErrFormat) {
			t.Errorf("Parse(%q) error = %v; want ErrFormat", in, err)
		}
	}
}

func TestSeconds(t *testing.T) {
	cases := map[string]int{
		"1:30":  5400,
		"90m":   5400,
		"1h30m": 5400,
		"15":    900,
		"3600s": 3600,
	}
	for in, want := range cases {
		got, err := Seconds(in)
		if err != nil {
			t.Fatalf("Seconds(%q) unexpected error: %v", in, err)
		}
		if got != want {
			t.Errorf("Seconds(%q) = %d; want %d", in, got, want)
		}
	}
}
