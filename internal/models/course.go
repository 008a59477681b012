package models

import (
	"fmt"
	"time"
)

// DayOfWeek names a weekday as stored in course_schedules.day_of_week.
type DayOfWeek string

// Weekdays accepted for course meetings.
const (
	Monday    DayOfWeek = "MONDAY"
	Tuesday   DayOfWeek = "TUESDAY"
	Wednesday DayOfWeek = "WEDNESDAY"
	Thursday  DayOfWeek = "THURSDAY"
	Friday    DayOfWeek = "FRIDAY"
	Saturday  DayOfWeek = "SATURDAY"
	Sunday    DayOfWeek = "SUNDAY"
)

// Valid reports whether d is a known weekday.
func (d DayOfWeek) Valid() bool {
	switch d {
	case Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday:
		return true
	}
	return false
}

// Course is an elective with a fixed seat pool and a bounded waitlist.
type Course struct {
	ID               string           `db:"id" json:"id"`
	CourseCode       string           `db:"course_code" json:"course_code"`
	Title            string           `db:"title" json:"title"`
	Description      string           `db:"description" json:"description"`
	Department       string           `db:"department" json:"department"`
	Professor        string           `db:"professor" json:"professor"`
	Credits          int              `db:"credits" json:"credits"`
	TotalSeats       int              `db:"total_seats" json:"total_seats"`
	RemainingSeats   int              `db:"remaining_seats" json:"remaining_seats"`
	WaitlistCapacity int              `db:"waitlist_capacity" json:"waitlist_capacity"`
	WaitlistCurrent  int              `db:"waitlist_current" json:"waitlist_current"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updated_at"`
	Schedules        []CourseSchedule `db:"-" json:"schedules"`
}

// CheckCounters verifies the ledger bounds on the course counters.
func (c *Course) CheckCounters() error {
	if c.RemainingSeats < 0 || c.RemainingSeats > c.TotalSeats {
		return fmt.Errorf("course %s: remaining_seats %d outside [0,%d]", c.ID, c.RemainingSeats, c.TotalSeats)
	}
	if c.WaitlistCurrent < 0 || c.WaitlistCurrent > c.WaitlistCapacity {
		return fmt.Errorf("course %s: waitlist_current %d outside [0,%d]", c.ID, c.WaitlistCurrent, c.WaitlistCapacity)
	}
	return nil
}

// SeatState captures the live counters pushed to subscribers.
func (c *Course) SeatState() SeatStateChanged {
	return SeatStateChanged{
		CourseID:         c.ID,
		RemainingSeats:   c.RemainingSeats,
		WaitlistCurrent:  c.WaitlistCurrent,
		TotalSeats:       c.TotalSeats,
		WaitlistCapacity: c.WaitlistCapacity,
	}
}

// CourseSchedule is one weekly meeting, half-open over [StartTime, EndTime).
type CourseSchedule struct {
	ID        string    `db:"id" json:"id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	DayOfWeek DayOfWeek `db:"day_of_week" json:"day_of_week"`
	StartTime string    `db:"start_time" json:"start_time"`
	EndTime   string    `db:"end_time" json:"end_time"`
}

// Minutes returns the meeting bounds as minutes since midnight.
func (s CourseSchedule) Minutes() (start, end int, err error) {
	start, err = ParseClock(s.StartTime)
	if err != nil {
		return 0, 0, err
	}
	end, err = ParseClock(s.EndTime)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// Overlaps reports whether two meetings share a day and intersect as half-open intervals.
func (s CourseSchedule) Overlaps(other CourseSchedule) bool {
	if s.DayOfWeek != other.DayOfWeek {
		return false
	}
	aStart, aEnd, err := s.Minutes()
	if err != nil {
		return false
	}
	bStart, bEnd, err := other.Minutes()
	if err != nil {
		return false
	}
	return aStart < bEnd && aEnd > bStart
}

// ParseClock parses an HH:MM wall clock value into minutes since midnight.
func ParseClock(raw string) (int, error) {
	t, err := time.Parse("15:04", raw)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", raw, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock renders minutes since midnight as zero-padded HH:MM, the only
// form stored so that text comparison and ordering match clock order.
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// CourseFilter narrows catalogue listings.
type CourseFilter struct {
	Department string
	Search     string
}
