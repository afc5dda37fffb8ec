package domain

import (
	"errors"
	"testing"
	"time"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse time %q: %v", s, err)
	}
	return ts
}

func TestParseHours(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantErr error
	}{
		{"5", 5, nil},
		{" 12 ", 12, nil},
		{"1", 1, nil},
		{"168", 168, nil},
		{"0", 0, ErrTooSmall},
		{"-3", 0, ErrTooSmall},
		{"169", 0, ErrTooLarge},
		{"abc", 0, ErrNotANumber},
		{"1.5", 0, ErrNotANumber},
		{"", 0, ErrNotANumber},
	}

	for _, c := range cases {
		got, err := ParseHours(c.in, 1, 168)
		if !errors.Is(err, c.wantErr) {
			t.Fatalf("ParseHours(%q): err = %v, want %v", c.in, err, c.wantErr)
		}
		if got != c.want {
			t.Fatalf("ParseHours(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestRemainingClampsAtZero(t *testing.T) {
	tm := Timer{EndTime: mustTime(t, "2025-05-05T10:00:00Z")}

	if got := tm.Remaining(mustTime(t, "2025-05-05T09:00:00Z")); got.Hours() != 1 {
		t.Fatalf("remaining = %v, want 1h", got)
	}
	if got := tm.Remaining(mustTime(t, "2025-05-05T11:00:00Z")); got != 0 {
		t.Fatalf("remaining = %v, want 0", got)
	}
}
