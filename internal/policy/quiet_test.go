package policy

import (
	"testing"
	"time"

	"github.com/amie-labs/agentgate/internal/db"
)

func at(hour, minute int) time.Time {
	return time.Date(2026, 3, 10, hour, minute, 0, 0, time.UTC)
}

func TestInQuietHours_SimpleWindow(t *testing.T) {
	windows := []db.QuietHours{{Enabled: true, Start: "09:00", End: "17:00"}}

	if !InQuietHours(windows, at(12, 0)) {
		t.Error("12:00 should fall inside 09:00-17:00")
	}
	if InQuietHours(windows, at(8, 59)) {
		t.Error("08:59 should fall outside 09:00-17:00")
	}
	if InQuietHours(windows, at(17, 0)) {
		t.Error("the end bound is exclusive")
	}
	if !InQuietHours(windows, at(9, 0)) {
		t.Error("the start bound is inclusive")
	}
}

func TestInQuietHours_MidnightSpan(t *testing.T) {
	windows := []db.QuietHours{{Enabled: true, Start: "22:00", End: "07:00"}}

	if !InQuietHours(windows, at(23, 30)) {
		t.Error("23:30 should fall inside 22:00-07:00")
	}
	if !InQuietHours(windows, at(3, 0)) {
		t.Error("03:00 should fall inside 22:00-07:00")
	}
	if InQuietHours(windows, at(12, 0)) {
		t.Error("12:00 should fall outside 22:00-07:00")
	}
}

func TestInQuietHours_DisabledAndDegenerate(t *testing.T) {
	if InQuietHours([]db.QuietHours{{Enabled: false, Start: "00:00", End: "23:59"}}, at(12, 0)) {
		t.Error("disabled window must never match")
	}
	// start == end is an empty window, not a 24h one.
	if InQuietHours([]db.QuietHours{{Enabled: true, Start: "10:00", End: "10:00"}}, at(10, 0)) {
		t.Error("zero-length window must never match")
	}
	if InQuietHours(nil, at(12, 0)) {
		t.Error("no windows means never quiet")
	}
}

func TestInQuietHours_AnyWindowMatches(t *testing.T) {
	windows := []db.QuietHours{
		{Enabled: true, Start: "22:00", End: "07:00"},
		{Enabled: true, Start: "12:00", End: "13:00"},
	}
	if !InQuietHours(windows, at(12, 30)) {
		t.Error("second window should match")
	}
	if !InQuietHours(windows, at(23, 0)) {
		t.Error("first window should match")
	}
	if InQuietHours(windows, at(15, 0)) {
		t.Error("neither window should match 15:00")
	}
}

func TestValidateQuietHours(t *testing.T) {
	valid := db.QuietHours{Enabled: true, Start: "22:00", End: "07:00"}
	if err := ValidateQuietHours(valid); err != nil {
		t.Errorf("valid window rejected: %v", err)
	}

	for _, w := range []db.QuietHours{
		{Enabled: true, Start: "25:00", End: "07:00"},
		{Enabled: true, Start: "22:00", End: "07:60"},
		{Enabled: true, Start: "ten", End: "07:00"},
		{Enabled: true, Start: "", End: "07:00"},
	} {
		if err := ValidateQuietHours(w); err == nil {
			t.Errorf("expected error for window %+v", w)
		}
	}

	// Disabled windows are not validated.
	if err := ValidateQuietHours(db.QuietHours{Enabled: false, Start: "bad"}); err != nil {
		t.Errorf("disabled window should pass: %v", err)
	}
}
