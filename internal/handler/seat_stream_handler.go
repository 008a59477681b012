package handler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/elective-seat-api/internal/models"
	appErrors "github.com/noah-isme/elective-seat-api/pkg/errors"
	"github.com/noah-isme/elective-seat-api/pkg/response"
)

type seatSubscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// SeatStreamHandler relays seat-state events to browsers as server-sent events.
type SeatStreamHandler struct {
	subscriber seatSubscriber
	channel    string
	heartbeat  time.Duration
	logger     *zap.Logger
}

// NewSeatStreamHandler constructs the stream handler.
func NewSeatStreamHandler(subscriber seatSubscriber, channel string, heartbeat time.Duration, logger *zap.Logger) *SeatStreamHandler {
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SeatStreamHandler{subscriber: subscriber, channel: channel, heartbeat: heartbeat, logger: logger}
}

// Stream godoc
// @Summary Stream live seat counters
// @Description Server-sent events named seat-update. Optional course_id narrows the stream to one course.
// @Tags Courses
// @Produce text/event-stream
// @Param course_id query string false "Only events for this course"
// @Router /courses/stream [get]
func (h *SeatStreamHandler) Stream(c *gin.Context) {
	if h.subscriber == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrServiceOffline, "live seat updates are unavailable"))
		return
	}
	ctx := c.Request.Context()
	messages, err := h.subscriber.Subscribe(ctx, h.channel)
	if err != nil {
		h.logger.Warn("seat stream subscribe failed", zap.Error(err))
		response.Error(c, appErrors.Wrap(err, appErrors.ErrServiceOffline.Code, appErrors.ErrServiceOffline.Status, "live seat updates are unavailable"))
		return
	}
	courseFilter := c.Query("course_id")

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.SSEvent("heartbeat", time.Now().UTC().Format(time.RFC3339))
			c.Writer.Flush()
		case payload, ok := <-messages:
			if !ok {
				return
			}
			state, ok := decodeSeatState(payload)
			if !ok || (courseFilter != "" && state.CourseID != courseFilter) {
				continue
			}
			c.SSEvent("seat-update", state)
			c.Writer.Flush()
		}
	}
}

func decodeSeatState(payload []byte) (models.SeatStateChanged, bool) {
	var envelope struct {
		Type    models.EventType        `json:"type"`
		Payload models.SeatStateChanged `json:"payload"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil || envelope.Type != models.EventSeatStateChanged {
		return models.SeatStateChanged{}, false
	}
	return envelope.Payload, true
}
