package policy

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/amie-labs/agentgate/internal/db"
)

// parseClock parses an "HH:MM" wall-clock time into minutes since midnight.
func parseClock(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}

// inWindow reports whether t falls inside a single quiet-hours window.
// A window whose end precedes its start spans midnight.
func inWindow(w db.QuietHours, t time.Time) bool {
	if !w.Enabled {
		return false
	}
	start, err := parseClock(w.Start)
	if err != nil {
		return false
	}
	end, err := parseClock(w.End)
	if err != nil {
		return false
	}
	now := t.Hour()*60 + t.Minute()
	if start == end {
		return false
	}
	if start < end {
		return now >= start && now < end
	}
	return now >= start || now < end
}

// InQuietHours reports whether t falls inside any of the effective windows.
func InQuietHours(windows []db.QuietHours, t time.Time) bool {
	for _, w := range windows {
		if inWindow(w, t) {
			return true
		}
	}
	return false
}

// ValidateQuietHours checks that an enabled window parses cleanly.
func ValidateQuietHours(w db.QuietHours) error {
	if !w.Enabled {
		return nil
	}
	if _, err := parseClock(w.Start); err != nil {
		return fmt.Errorf("quiet hours start: %w", err)
	}
	if _, err := parseClock(w.End); err != nil {
		return fmt.Errorf("quiet hours end: %w", err)
	}
	return nil
}
