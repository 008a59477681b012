package models

import "time"

// RegistrationStatus represents the lifecycle of a seat request. A dropped
// registration has no row at all.
type RegistrationStatus string

// Possible registration statuses.
const (
	RegistrationStatusRegistered          RegistrationStatus = "REGISTERED"
	RegistrationStatusWaitlisted          RegistrationStatus = "WAITLISTED"
	RegistrationStatusPendingConfirmation RegistrationStatus = "PENDING_CONFIRMATION"
)

// HoldsSeat reports whether the status occupies (or earmarks) a seat.
func (s RegistrationStatus) HoldsSeat() bool {
	return s == RegistrationStatusRegistered || s == RegistrationStatusPendingConfirmation
}

// Registration links one student to one course. (student_id, course_id) is unique.
type Registration struct {
	ID                    string             `db:"id" json:"id"`
	StudentID             string             `db:"student_id" json:"student_id"`
	CourseID              string             `db:"course_id" json:"course_id"`
	Status                RegistrationStatus `db:"status" json:"status"`
	RegisteredAt          time.Time          `db:"registered_at" json:"registered_at"`
	ConfirmationExpiresAt *time.Time         `db:"confirmation_expires_at" json:"confirmation_expires_at,omitempty"`
}

// OfferExpired reports whether a pending offer has passed its deadline at now.
func (r *Registration) OfferExpired(now time.Time) bool {
	return r.ConfirmationExpiresAt != nil && now.After(*r.ConfirmationExpiresAt)
}

// RegistrationDetail pairs a registration with its course and meeting times.
type RegistrationDetail struct {
	Registration
	Course Course `db:"course" json:"course"`
}

// StudentRegistrations partitions a student's registrations by status.
type StudentRegistrations struct {
	Registered   []RegistrationDetail `json:"registered"`
	Waitlisted   []RegistrationDetail `json:"waitlisted"`
	Pending      []RegistrationDetail `json:"pending"`
	TotalCredits int                  `json:"total_credits"`
}

// AdmissionOutcome describes how Register placed a student.
type AdmissionOutcome string

// Admission outcomes.
const (
	AdmissionAdmitted   AdmissionOutcome = "ADMITTED"
	AdmissionWaitlisted AdmissionOutcome = "WAITLISTED"
)

// AdmissionResult is returned by a successful registration attempt.
type AdmissionResult struct {
	Outcome      AdmissionOutcome `json:"outcome"`
	Registration Registration     `json:"registration"`
	SeatState    SeatStateChanged `json:"seat_state"`
}

// ReleaseResult reports what a drop, decline or expiry did to the ledger.
type ReleaseResult struct {
	Released     Registration     `json:"released"`
	Promoted     *Registration    `json:"promoted,omitempty"`
	SeatReturned bool             `json:"seat_returned"`
	SeatState    SeatStateChanged `json:"seat_state"`
}

// RejectionReason enumerates pre-mutation validation failures.
type RejectionReason string

// Rejection reasons.
const (
	RejectionDuplicate        RejectionReason = "DUPLICATE_REGISTRATION"
	RejectionCreditLimit      RejectionReason = "CREDIT_LIMIT_EXCEEDED"
	RejectionScheduleConflict RejectionReason = "SCHEDULE_CONFLICT"
)

// ValidationRejection explains why a registration was refused before any mutation.
type ValidationRejection struct {
	Reason             RejectionReason `json:"reason"`
	ConflictCourseID   string          `json:"conflict_course_id,omitempty"`
	ConflictCourseCode string          `json:"conflict_course_code,omitempty"`
	ConflictDay        DayOfWeek       `json:"conflict_day,omitempty"`
	CurrentCredits     int             `json:"current_credits,omitempty"`
	MaxCredits         int             `json:"max_credits,omitempty"`
}

// SweepOutcome classifies a single expired offer handled by the sweep.
type SweepOutcome string

// Sweep outcomes.
const (
	SweepExpiredPromoted     SweepOutcome = "EXPIRED_PROMOTED"
	SweepExpiredSeatReturned SweepOutcome = "EXPIRED_SEAT_RETURNED"
	SweepSkipped             SweepOutcome = "SKIPPED"
	SweepError               SweepOutcome = "ERROR"
)

// SweepResult records the outcome for one registration in an expiry batch.
type SweepResult struct {
	RegistrationID         string       `json:"registration_id"`
	CourseID               string       `json:"course_id"`
	StudentID              string       `json:"student_id"`
	Outcome                SweepOutcome `json:"outcome"`
	PromotedRegistrationID string       `json:"promoted_registration_id,omitempty"`
	Error                  string       `json:"error,omitempty"`
}
