package domain

import (
	"errors"
	"strconv"
	"strings"
)

var (
	ErrNotANumber = errors.New("duration is not a whole number")
	ErrTooSmall   = errors.New("duration too small")
	ErrTooLarge   = errors.New("duration too large")
)

// ParseHours parses a command argument as a whole number of hours and
// checks it against the configured [minH, maxH] range.
func ParseHours(s string, minH, maxH int) (int, error) {
	s = strings.TrimSpace(s)
	h, err := strconv.Atoi(s)
	if err != nil {
		return 0, ErrNotANumber
	}
	if h < minH {
		return 0, ErrTooSmall
	}
	if h > maxH {
		return 0, ErrTooLarge
	}
	return h, nil
}
