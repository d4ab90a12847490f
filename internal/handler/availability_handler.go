package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lessonloop/lessonloop-api/internal/models"
	appErrors "github.com/lessonloop/lessonloop-api/pkg/errors"
	"github.com/lessonloop/lessonloop-api/pkg/response"
)

const dateLayout = "2006-01-02"

type availabilityProvider interface {
	GenerateSlots(ctx context.Context, teacherID string, from, to time.Time, durationMinutes int) ([]models.CandidateSlot, error)
	CheckAvailability(ctx context.Context, teacherID string, start, end time.Time) (*models.AvailabilityCheck, error)
	PolicyFor(ctx context.Context, teacherID string) (*models.BookingPolicy, error)
}

type teacherLookup interface {
	GetByID(ctx context.Context, id string) (*models.Teacher, error)
}

// AvailabilityHandler exposes slot listings and availability checks.
type AvailabilityHandler struct {
	service  availabilityProvider
	teachers teacherLookup
}

// NewAvailabilityHandler creates a new handler.
func NewAvailabilityHandler(svc availabilityProvider, teachers teacherLookup) *AvailabilityHandler {
	return &AvailabilityHandler{service: svc, teachers: teachers}
}

// requireTeacher resolves the path teacher or writes a 404.
func (h *AvailabilityHandler) requireTeacher(c *gin.Context) (string, bool) {
	teacherID := c.Param("id")
	if _, err := h.teachers.GetByID(c.Request.Context(), teacherID); err != nil {
		response.Error(c, err)
		return "", false
	}
	return teacherID, true
}

// Slots godoc
// @Summary List bookable slots
// @Description Enumerates candidate lesson slots for a teacher and date range
// @Tags Availability
// @Produce json
// @Param id path string true "Teacher ID"
// @Param from query string true "Start date (YYYY-MM-DD)"
// @Param to query string true "End date (YYYY-MM-DD)"
// @Param duration query int true "Lesson duration in minutes"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /teachers/{id}/slots [get]
func (h *AvailabilityHandler) Slots(c *gin.Context) {
	teacherID, ok := h.requireTeacher(c)
	if !ok {
		return
	}

	from, err := time.Parse(dateLayout, c.Query("from"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrFormat, "from must be a YYYY-MM-DD date"))
		return
	}
	to, err := time.Parse(dateLayout, c.Query("to"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrFormat, "to must be a YYYY-MM-DD date"))
		return
	}
	duration, err := strconv.Atoi(c.DefaultQuery("duration", "60"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrFormat, "duration must be a number of minutes"))
		return
	}

	slots, err := h.service.GenerateSlots(c.Request.Context(), teacherID, from, to, duration)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, slots, nil)
}

// Check godoc
// @Summary Check one interval
// @Description Decides whether a specific interval is bookable
// @Tags Availability
// @Produce json
// @Param id path string true "Teacher ID"
// @Param start query string true "Interval start (RFC 3339)"
// @Param end query string true "Interval end (RFC 3339)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /teachers/{id}/availability [get]
func (h *AvailabilityHandler) Check(c *gin.Context) {
	teacherID, ok := h.requireTeacher(c)
	if !ok {
		return
	}

	start, err := time.Parse(time.RFC3339, c.Query("start"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrFormat, "start must be an RFC 3339 timestamp"))
		return
	}
	end, err := time.Parse(time.RFC3339, c.Query("end"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrFormat, "end must be an RFC 3339 timestamp"))
		return
	}

	check, err := h.service.CheckAvailability(c.Request.Context(), teacherID, start, end)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, check, nil)
}

// Policy godoc
// @Summary Get booking policy
// @Description Returns the teacher's effective booking policy
// @Tags Availability
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /teachers/{id}/policy [get]
func (h *AvailabilityHandler) Policy(c *gin.Context) {
	teacherID, ok := h.requireTeacher(c)
	if !ok {
		return
	}

	policy, err := h.service.PolicyFor(c.Request.Context(), teacherID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, policy, nil)
}
