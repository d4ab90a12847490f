package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lessonloop/lessonloop-api/internal/models"
	"github.com/lessonloop/lessonloop-api/internal/service"
	appErrors "github.com/lessonloop/lessonloop-api/pkg/errors"
	"github.com/lessonloop/lessonloop-api/pkg/response"
)

type bookingProvider interface {
	Create(ctx context.Context, studentID string, req service.CreateBookingRequest) (*models.Booking, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims, actorTeacherID string) (*models.Booking, error)
	List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, *models.Pagination, error)
	Cancel(ctx context.Context, id string, actor *models.JWTClaims, actorTeacherID string) (*models.Booking, error)
}

type teacherResolver interface {
	GetByUserID(ctx context.Context, userID string) (*models.Teacher, error)
}

type bookingExporter interface {
	BookingsCSV(ctx context.Context, filter models.BookingFilter) ([]byte, error)
}

// BookingHandler exposes the lesson booking lifecycle.
type BookingHandler struct {
	service  bookingProvider
	teachers teacherResolver
	exports  bookingExporter
}

// NewBookingHandler creates a new handler.
func NewBookingHandler(svc bookingProvider, teachers teacherResolver, exports bookingExporter) *BookingHandler {
	return &BookingHandler{service: svc, teachers: teachers, exports: exports}
}

// Create godoc
// @Summary Book a lesson
// @Description Validates and creates a lesson booking for the caller
// @Tags Bookings
// @Accept json
// @Produce json
// @Param payload body service.CreateBookingRequest true "Booking payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bookings [post]
func (h *BookingHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid booking payload"))
		return
	}

	booking, err := h.service.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, booking)
}

// Get godoc
// @Summary Get one booking
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /bookings/{id} [get]
func (h *BookingHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	booking, err := h.service.Get(c.Request.Context(), c.Param("id"), claims, h.actorTeacherID(c, claims))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, booking, nil)
}

// List godoc
// @Summary List bookings
// @Description Lists bookings visible to the caller, newest range first
// @Tags Bookings
// @Produce json
// @Param status query string false "Filter by status"
// @Param from query string false "Lessons starting at or after (RFC 3339)"
// @Param to query string false "Lessons starting before (RFC 3339)"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /bookings [get]
func (h *BookingHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter, err := h.buildFilter(c, claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	bookings, pagination, err := h.service.List(c.Request.Context(), *filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, bookings, pagination)
}

// Cancel godoc
// @Summary Cancel a booking
// @Description Cancels an active booking subject to the cancellation window
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bookings/{id}/cancel [post]
func (h *BookingHandler) Cancel(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	booking, err := h.service.Cancel(c.Request.Context(), c.Param("id"), claims, h.actorTeacherID(c, claims))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, booking, nil)
}

// ExportCSV godoc
// @Summary Export bookings as CSV
// @Tags Bookings
// @Produce text/csv
// @Success 200 {string} string "CSV document"
// @Router /bookings/export [get]
func (h *BookingHandler) ExportCSV(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter, err := h.buildFilter(c, claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	out, err := h.exports.BookingsCSV(c.Request.Context(), *filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="bookings.csv"`)
	c.Data(http.StatusOK, "text/csv", out)
}

// buildFilter scopes the query to the caller: students see their own lessons,
// teachers their calendar, admins everything.
func (h *BookingHandler) buildFilter(c *gin.Context, claims *models.JWTClaims) (*models.BookingFilter, error) {
	filter := models.BookingFilter{
		Status: c.Query("status"),
	}

	if raw := c.Query("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrFormat, "from must be an RFC 3339 timestamp")
		}
		filter.From = &from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrFormat, "to must be an RFC 3339 timestamp")
		}
		filter.To = &to
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	switch claims.Role {
	case models.RoleStudent:
		filter.StudentID = claims.UserID
	case models.RoleTeacher:
		teacher, err := h.teachers.GetByUserID(c.Request.Context(), claims.UserID)
		if err != nil {
			return nil, err
		}
		filter.TeacherID = teacher.ID
	case models.RoleAdmin:
		filter.TeacherID = c.Query("teacher_id")
		filter.StudentID = c.Query("student_id")
	}
	return &filter, nil
}

func (h *BookingHandler) actorTeacherID(c *gin.Context, claims *models.JWTClaims) string {
	if claims.Role != models.RoleTeacher {
		return ""
	}
	teacher, err := h.teachers.GetByUserID(c.Request.Context(), claims.UserID)
	if err != nil {
		return ""
	}
	return teacher.ID
}
