package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var units = map[byte]time.Duration{
	's': time.Second,
	'm': time.Minute,
	'h': time.Hour,
	'd': 24 * time.Hour,
}

// ParseStringTime parses config durations such as "500ms", "10s", "20M", "48h" or "2d".
func ParseStringTime(timeString string) (time.Duration, error) {
	timeString = strings.ToLower(strings.TrimSpace(timeString))
	if timeString == "" {
		return 0, fmt.Errorf("empty time string")
	}
	if strings.HasSuffix(timeString, "ms") {
		return time.ParseDuration(timeString)
	}
	unit, ok := units[timeString[len(timeString)-1]]
	if !ok {
		return 0, fmt.Errorf("invalid time format: %s", timeString)
	}
	number, err := strconv.Atoi(timeString[:len(timeString)-1])
	if err != nil || number < 0 {
		return 0, fmt.Errorf("invalid time format: %s", timeString)
	}
	return time.Duration(number) * unit, nil
}

// DurationOr parses timeString and falls back to def when it is empty or invalid.
func DurationOr(timeString string, def time.Duration) time.Duration {
	d, err := ParseStringTime(timeString)
	if err != nil {
		return def
	}
	return d
}
