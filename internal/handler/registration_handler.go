package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/elective-seat-api/internal/dto"
	"github.com/noah-isme/elective-seat-api/internal/models"
	appErrors "github.com/noah-isme/elective-seat-api/pkg/errors"
	"github.com/noah-isme/elective-seat-api/pkg/response"
)

type registrationService interface {
	Register(ctx context.Context, studentID, courseID string) (*models.AdmissionResult, error)
	Drop(ctx context.Context, studentID, registrationID string) (*models.ReleaseResult, error)
	Confirm(ctx context.Context, studentID, registrationID string) (*models.Registration, error)
	ConfirmWithToken(ctx context.Context, token string) (*models.Registration, error)
	ListMine(ctx context.Context, studentID string) (*models.StudentRegistrations, error)
}

// RegistrationHandler exposes the student admission endpoints.
type RegistrationHandler struct {
	registrations registrationService
}

// NewRegistrationHandler constructs RegistrationHandler.
func NewRegistrationHandler(registrations registrationService) *RegistrationHandler {
	return &RegistrationHandler{registrations: registrations}
}

// Register godoc
// @Summary Request a seat in a course
// @Description Admits to a free seat, else joins the waitlist, else fails with RESOURCE_EXHAUSTED.
// @Tags Registrations
// @Produce json
// @Param id path string true "Course ID"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /courses/{id}/register [post]
func (h *RegistrationHandler) Register(c *gin.Context) {
	studentID, ok := requireStudent(c)
	if !ok {
		return
	}
	result, err := h.registrations.Register(c.Request.Context(), studentID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Drop godoc
// @Summary Drop a registration, waitlist entry or pending offer
// @Tags Registrations
// @Produce json
// @Param id path string true "Registration ID"
// @Success 200 {object} response.Envelope
// @Router /registrations/{id}/drop [post]
func (h *RegistrationHandler) Drop(c *gin.Context) {
	studentID, ok := requireStudent(c)
	if !ok {
		return
	}
	result, err := h.registrations.Drop(c.Request.Context(), studentID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// Accept godoc
// @Summary Confirm a pending offer
// @Tags Registrations
// @Produce json
// @Param id path string true "Registration ID"
// @Success 200 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Router /registrations/{id}/accept [post]
func (h *RegistrationHandler) Accept(c *gin.Context) {
	studentID, ok := requireStudent(c)
	if !ok {
		return
	}
	reg, err := h.registrations.Confirm(c.Request.Context(), studentID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, reg)
}

// AcceptWithToken godoc
// @Summary Confirm a pending offer from a signed link
// @Tags Registrations
// @Produce json
// @Param token query string true "Signed offer token"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Router /offers/accept [post]
func (h *RegistrationHandler) AcceptWithToken(c *gin.Context) {
	var query dto.AcceptOfferQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "token is required"))
		return
	}
	reg, err := h.registrations.ConfirmWithToken(c.Request.Context(), query.Token)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, reg)
}

// Mine godoc
// @Summary List my registrations by status
// @Tags Registrations
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /me/registrations [get]
func (h *RegistrationHandler) Mine(c *gin.Context) {
	studentID, ok := requireStudent(c)
	if !ok {
		return
	}
	mine, err := h.registrations.ListMine(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, mine)
}
