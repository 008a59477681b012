package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/elective-seat-api/internal/models"
	appErrors "github.com/noah-isme/elective-seat-api/pkg/errors"
	"github.com/noah-isme/elective-seat-api/pkg/export"
)

// Roster export formats.
const (
	RosterFormatCSV = "csv"
	RosterFormatPDF = "pdf"
)

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

// RosterFile is a rendered roster ready to stream to the client.
type RosterFile struct {
	Filename    string
	ContentType string
	Content     []byte
}

// RosterExporter renders course rosters through the configured exporters.
type RosterExporter struct {
	courses   *CourseService
	renderers map[string]datasetRenderer
	now       func() time.Time
}

// NewRosterExporter wires the CSV and PDF renderers.
func NewRosterExporter(courses *CourseService) *RosterExporter {
	return &RosterExporter{
		courses: courses,
		renderers: map[string]datasetRenderer{
			RosterFormatCSV: export.NewCSVExporter(),
			RosterFormatPDF: export.NewPDFExporter(),
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Export renders the roster of a course in arrival order.
func (e *RosterExporter) Export(ctx context.Context, courseID, format string) (*RosterFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = RosterFormatCSV
	}
	renderer, ok := e.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported roster format %q", format))
	}

	course, regs, err := e.courses.Roster(ctx, courseID)
	if err != nil {
		return nil, err
	}
	content, err := renderer.Render(rosterDataset(course, regs, e.now()))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
	}
	return &RosterFile{
		Filename:    fmt.Sprintf("%s-roster.%s", strings.ToLower(course.CourseCode), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Content:     content,
	}, nil
}

func rosterDataset(course *models.Course, regs []models.Registration, generatedAt time.Time) export.Dataset {
	data := export.Dataset{
		Title: fmt.Sprintf("%s %s", course.CourseCode, course.Title),
		Summary: []string{
			fmt.Sprintf("Professor: %s", course.Professor),
			fmt.Sprintf("Seats: %d of %d free, waitlist %d of %d",
				course.RemainingSeats, course.TotalSeats, course.WaitlistCurrent, course.WaitlistCapacity),
			fmt.Sprintf("Generated: %s", generatedAt.Format(time.RFC3339)),
		},
		Headers: []string{"#", "Registration", "Student", "Status", "Registered at", "Offer expires at"},
		Rows:    make([][]string, 0, len(regs)),
	}
	for i, reg := range regs {
		expires := ""
		if reg.ConfirmationExpiresAt != nil {
			expires = reg.ConfirmationExpiresAt.UTC().Format(time.RFC3339)
		}
		data.Rows = append(data.Rows, []string{
			fmt.Sprintf("%d", i+1),
			reg.ID,
			reg.StudentID,
			string(reg.Status),
			reg.RegisteredAt.UTC().Format(time.RFC3339),
			expires,
		})
	}
	return data
}
