package models

import "time"

// EventType labels notifications leaving the admission core.
type EventType string

// Notification event types.
const (
	EventSeatStateChanged    EventType = "seat.state_changed"
	EventOfferPromoted       EventType = "waitlist.promoted"
	EventEnrollmentConfirmed EventType = "enrollment.confirmed"
)

// SeatStateChanged is pushed to real-time subscribers after any ledger commit.
type SeatStateChanged struct {
	CourseID         string `json:"course_id"`
	RemainingSeats   int    `json:"remaining_seats"`
	WaitlistCurrent  int    `json:"waitlist_current"`
	TotalSeats       int    `json:"total_seats"`
	WaitlistCapacity int    `json:"waitlist_capacity"`
}

// OfferPromoted tells a waitlisted student a seat is held for them until ExpiresAt.
type OfferPromoted struct {
	RegistrationID string    `json:"registration_id"`
	StudentID      string    `json:"student_id"`
	CourseID       string    `json:"course_id"`
	CourseCode     string    `json:"course_code"`
	CourseTitle    string    `json:"course_title"`
	ExpiresAt      time.Time `json:"expires_at"`
	AcceptURL      string    `json:"accept_url,omitempty"`
}

// EnrollmentConfirmed is emitted once a pending offer is accepted.
type EnrollmentConfirmed struct {
	RegistrationID string    `json:"registration_id"`
	StudentID      string    `json:"student_id"`
	CourseID       string    `json:"course_id"`
	CourseCode     string    `json:"course_code"`
	CourseTitle    string    `json:"course_title"`
	ConfirmedAt    time.Time `json:"confirmed_at"`
}

// Event is the envelope carried through the notification dispatcher.
type Event struct {
	Type       EventType   `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}
