package dto

import "github.com/noah-isme/elective-seat-api/internal/models"

// CourseScheduleRequest is one weekly meeting in a course payload.
type CourseScheduleRequest struct {
	DayOfWeek string `json:"day_of_week" validate:"required,weekday"`
	StartTime string `json:"start_time" validate:"required,clock"`
	EndTime   string `json:"end_time" validate:"required,clock"`
}

// CourseRequest creates or replaces a course. Seat counters are derived by the ledger.
type CourseRequest struct {
	CourseCode       string                  `json:"course_code" validate:"required,max=32"`
	Title            string                  `json:"title" validate:"required,max=255"`
	Description      string                  `json:"description"`
	Department       string                  `json:"department" validate:"max=128"`
	Professor        string                  `json:"professor" validate:"max=255"`
	Credits          int                     `json:"credits" validate:"required,min=1,max=20"`
	TotalSeats       int                     `json:"total_seats" validate:"min=0"`
	WaitlistCapacity int                     `json:"waitlist_capacity" validate:"min=0"`
	Schedules        []CourseScheduleRequest `json:"schedules" validate:"omitempty,dive"`
}

// CourseListQuery filters the catalogue.
type CourseListQuery struct {
	Department string `form:"department"`
	Search     string `form:"q"`
}

// CourseUpdateResponse reports the stored course and any offers created by a capacity increase.
type CourseUpdateResponse struct {
	Course   *models.Course        `json:"course"`
	Promoted []models.Registration `json:"promoted"`
}
