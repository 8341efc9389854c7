package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"bandonotifier/internal/entity"
)

// parseClock converts an "HH:MM" string to minutes since midnight.
func parseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("parse clock %q: %w", s, entity.ErrInvalidData)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", s, entity.ErrInvalidData)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", s, entity.ErrInvalidData)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("parse clock %q: out of range: %w", s, entity.ErrInvalidData)
	}

	return hour*60 + minute, nil
}

// inQuietWindow reports whether now falls inside the [start, end) quiet-hours
// window. The window is normalized to minutes since midnight; start > end
// means the window spans midnight (e.g. 22:00-08:00 covers 23:00 and 02:00).
// The original implementation compared the raw strings, which silently broke
// for windows crossing midnight; this version handles the wraparound.
func inQuietWindow(start, end string, now time.Time) (bool, error) {
	startMin, err := parseClock(start)
	if err != nil {
		return false, err
	}
	endMin, err := parseClock(end)
	if err != nil {
		return false, err
	}

	if startMin == endMin {
		return false, nil
	}

	nowMin := now.Hour()*60 + now.Minute()
	if startMin < endMin {
		return nowMin >= startMin && nowMin < endMin, nil
	}
	return nowMin >= startMin || nowMin < endMin, nil
}
