package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/elective-seat-api/internal/dto"
	"github.com/noah-isme/elective-seat-api/internal/models"
	"github.com/noah-isme/elective-seat-api/pkg/response"
)

type offerSweeper interface {
	Sweep(ctx context.Context, now time.Time) []models.SweepResult
}

// ExpiryHandler lets the external scheduler trigger the offer sweep.
type ExpiryHandler struct {
	sweeper offerSweeper
	now     func() time.Time
}

// NewExpiryHandler constructs ExpiryHandler.
func NewExpiryHandler(sweeper offerSweeper) *ExpiryHandler {
	return &ExpiryHandler{sweeper: sweeper, now: func() time.Time { return time.Now().UTC() }}
}

// Expire godoc
// @Summary Expire lapsed offers
// @Description Scheduler endpoint guarded by the cron secret. Safe to call repeatedly.
// @Tags Internal
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /internal/waitlist/expire [post]
func (h *ExpiryHandler) Expire(c *gin.Context) {
	ranAt := h.now()
	results := h.sweeper.Sweep(c.Request.Context(), ranAt)
	response.OK(c, dto.NewSweepResponse(ranAt, results))
}
