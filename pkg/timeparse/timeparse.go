// Package timeparse converts staff-entered delay strings into durations.
//
// Accepted forms: "1:30" (hours:minutes), "1:30:00" (h:m:s), unit suffixes
// ("90m", "1h30m", "3600s") and bare numbers, which are read as minutes.
package timeparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var tokenPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)([hms]?)`)

// ErrFormat is wrapped by all parse failures.
var ErrFormat = fmt.Errorf("invalid time format")

// Parse returns the duration described by s.
func Parse(s string) (time.Duration, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrFormat)
	}

	if strings.Contains(s, ":") {
		return parseClock(s)
	}

	matches := tokenPattern.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 || !tokenPattern.MatchString(s) {
		return 0, fmt.Errorf("%w: %q", ErrFormat, s)
	}
	// Reject trailing garbage such as "5x" or "abc".
	if strings.Join(flatten(matches), "") != s {
		return 0, fmt.Errorf("%w: %q", ErrFormat, s)
	}

	var total time.Duration
	for _, m := range matches {
		value, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrFormat, s)
		}
		switch m[2] {
		case "h":
			total += time.Duration(value * float64(time.Hour))
		case "s":
			total += time.Duration(value * float64(time.Second))
		default: // bare numbers count as minutes
			total += time.Duration(value * float64(time.Minute))
		}
	}
	return total.Truncate(time.Second), nil
}

// Seconds is a convenience wrapper returning whole seconds.
func Seconds(s string) (int, error) {
	d, err := Parse(s)
	if err != nil {
		return 0, err
	}
	return int(d / time.Second), nil
}

func parseClock(s string) (time.Duration, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("%w: %q", ErrFormat, s)
	}
	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%w: %q", ErrFormat, s)
		}
		nums[i] = n
	}
	total := time.Duration(nums[0])*time.Hour + time.Duration(nums[1])*time.Minute
	if len(nums) == 3 {
		total += time.Duration(nums[2]) * time.Second
	}
	return total, nil
}

func flatten(matches [][]string) []string {
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[0])
	}
	return out
}
