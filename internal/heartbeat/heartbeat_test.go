package heartbeat

import (
	"testing"
	"time"
)

func TestParseAnchorValid(t *testing.T) {
	a, err := ParseAnchor("09:30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Hour != 9 || a.Minute != 30 {
		t.Fatalf("expected 09:30, got %02d:%02d", a.Hour, a.Minute)
	}
}

func TestParseAnchorInvalid(t *testing.T) {
	cases := []string{"24:00", "12:60", "notatime", "12", "-1:00"}
	for _, c := range cases {
		if _, err := ParseAnchor(c); err == nil {
			t.Fatalf("expected %q to be rejected", c)
		}
	}
}

func TestScheduleNextSameDay(t *testing.T) {
	sched, err := NewSchedule([]string{"09:00", "21:00"}, "UTC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	after := time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC)
	next := sched.Next(after)
	want := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("expected %v, got %v", want, next)
	}
}

func TestScheduleNextRollsToTomorrow(t *testing.T) {
	sched, err := NewSchedule([]string{"09:00"}, "UTC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	after := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	next := sched.Next(after)
	want := time.Date(2026, 1, 16, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("expected %v, got %v", want, next)
	}
}

func TestScheduleNextIsStrictlyAfter(t *testing.T) {
	sched, err := NewSchedule([]string{"09:00"}, "UTC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	exact := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	next := sched.Next(exact)
	if !next.After(exact) {
		t.Fatalf("Next must return a time strictly after `after`, got %v for input %v", next, exact)
	}
}
