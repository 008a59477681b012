package dto

import (
	"time"

	"github.com/noah-isme/elective-seat-api/internal/models"
)

// SweepResponse summarises one run of the offer expiry sweep.
type SweepResponse struct {
	RanAt         time.Time            `json:"ran_at"`
	Processed     int                  `json:"processed"`
	Promoted      int                  `json:"promoted"`
	SeatsReturned int                  `json:"seats_returned"`
	Skipped       int                  `json:"skipped"`
	Errors        int                  `json:"errors"`
	Results       []models.SweepResult `json:"results"`
}

// NewSweepResponse tallies results by outcome.
func NewSweepResponse(ranAt time.Time, results []models.SweepResult) SweepResponse {
	resp := SweepResponse{RanAt: ranAt, Processed: len(results), Results: results}
	for _, r := range results {
		switch r.Outcome {
		case models.SweepExpiredPromoted:
			resp.Promoted++
		case models.SweepExpiredSeatReturned:
			resp.SeatsReturned++
		case models.SweepSkipped:
			resp.Skipped++
		case models.SweepError:
			resp.Errors++
		}
	}
	return resp
}
