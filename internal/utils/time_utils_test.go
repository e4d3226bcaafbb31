package utils

import (
	"testing"
	"time"
)

func TestParseStringTime(t *testing.T) {
	tests := []struct {
		timeString string
		expected   time.Duration
	}{
		{"10s", 10 * time.Second},
		{"20M", 20 * time.Minute},
		{"48h", 48 * time.Hour},
		{"2d", 2 * time.Hour * 24},
		{"250ms", 250 * time.Millisecond},
	}

	for _, test := range tests {
		result, err := ParseStringTime(test.timeString)
		if err != nil {
			t.Errorf("ParseStringTime(%s): unexpected error %v", test.timeString, err)
			continue
		}
		if result != test.expected {
			t.Errorf("ParseStringTime(%s): expected %v, got %v", test.timeString, test.expected, result)
		}
	}
}

func TestParseStringTimeInvalid(t *testing.T) {
	for _, s := range []string{"", "s", "10x", "-3s", "abc"} {
		if _, err := ParseStringTime(s); err == nil {
			t.Errorf("ParseStringTime(%q): expected error", s)
		}
	}
	if got := DurationOr("bogus", 5*time.Second); got != 5*time.Second {
		t.Errorf("DurationOr fallback: got %v", got)
	}
}
