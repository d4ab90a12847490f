package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lessonloop/lessonloop-api/internal/models"
	"github.com/lessonloop/lessonloop-api/internal/service"
	appErrors "github.com/lessonloop/lessonloop-api/pkg/errors"
	"github.com/lessonloop/lessonloop-api/pkg/response"
)

type scheduleProvider interface {
	ListWeeklyRules(ctx context.Context, teacherID string) ([]models.WeeklyRule, error)
	CreateWeeklyRule(ctx context.Context, teacherID string, req service.WeeklyRuleRequest) (*models.WeeklyRule, error)
	UpdateWeeklyRule(ctx context.Context, teacherID, ruleID string, req service.WeeklyRuleRequest) (*models.WeeklyRule, error)
	DeleteWeeklyRule(ctx context.Context, teacherID, ruleID string) error
	ListBlockedRanges(ctx context.Context, teacherID string) ([]models.BlockedRange, error)
	CreateBlockedRange(ctx context.Context, teacherID string, req service.BlockedRangeRequest) (*models.BlockedRange, error)
	DeleteBlockedRange(ctx context.Context, teacherID, blockID string) error
	UpdateBookingPolicy(ctx context.Context, teacherID string, req service.BookingPolicyRequest) (*models.BookingPolicy, error)
}

type scheduleExporter interface {
	SchedulePDF(ctx context.Context, teacherID, teacherName string) ([]byte, error)
}

type policyReader interface {
	PolicyFor(ctx context.Context, teacherID string) (*models.BookingPolicy, error)
}

// ScheduleHandler manages the authenticated teacher's own schedule.
type ScheduleHandler struct {
	service  scheduleProvider
	teachers teacherResolver
	policies policyReader
	exports  scheduleExporter
}

// NewScheduleHandler creates a new handler.
func NewScheduleHandler(svc scheduleProvider, teachers teacherResolver, policies policyReader, exports scheduleExporter) *ScheduleHandler {
	return &ScheduleHandler{service: svc, teachers: teachers, policies: policies, exports: exports}
}

// resolveTeacher loads the tutor profile behind the authenticated user.
func (h *ScheduleHandler) resolveTeacher(c *gin.Context) (*models.Teacher, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}
	teacher, err := h.teachers.GetByUserID(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	return teacher, true
}

// ListRules godoc
// @Summary List my weekly rules
// @Tags Schedule
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /me/schedule/rules [get]
func (h *ScheduleHandler) ListRules(c *gin.Context) {
	teacher, ok := h.resolveTeacher(c)
	if !ok {
		return
	}
	rules, err := h.service.ListWeeklyRules(c.Request.Context(), teacher.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rules, nil)
}

// CreateRule godoc
// @Summary Create a weekly rule
// @Tags Schedule
// @Accept json
// @Produce json
// @Param payload body service.WeeklyRuleRequest true "Rule payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /me/schedule/rules [post]
func (h *ScheduleHandler) CreateRule(c *gin.Context) {
	teacher, ok := h.resolveTeacher(c)
	if !ok {
		return
	}
	var req service.WeeklyRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rule payload"))
		return
	}
	rule, err := h.service.CreateWeeklyRule(c.Request.Context(), teacher.ID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, rule)
}

// UpdateRule godoc
// @Summary Update a weekly rule
// @Tags Schedule
// @Accept json
// @Produce json
// @Param id path string true "Rule ID"
// @Param payload body service.WeeklyRuleRequest true "Rule payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /me/schedule/rules/{id} [put]
func (h *ScheduleHandler) UpdateRule(c *gin.Context) {
	teacher, ok := h.resolveTeacher(c)
	if !ok {
		return
	}
	var req service.WeeklyRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rule payload"))
		return
	}
	rule, err := h.service.UpdateWeeklyRule(c.Request.Context(), teacher.ID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rule, nil)
}

// DeleteRule godoc
// @Summary Delete a weekly rule
// @Tags Schedule
// @Param id path string true "Rule ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /me/schedule/rules/{id} [delete]
func (h *ScheduleHandler) DeleteRule(c *gin.Context) {
	teacher, ok := h.resolveTeacher(c)
	if !ok {
		return
	}
	if err := h.service.DeleteWeeklyRule(c.Request.Context(), teacher.ID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListBlocks godoc
// @Summary List my blocked ranges
// @Tags Schedule
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /me/schedule/blocks [get]
func (h *ScheduleHandler) ListBlocks(c *gin.Context) {
	teacher, ok := h.resolveTeacher(c)
	if !ok {
		return
	}
	blocks, err := h.service.ListBlockedRanges(c.Request.Context(), teacher.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, blocks, nil)
}

// CreateBlock godoc
// @Summary Create a blocked range
// @Tags Schedule
// @Accept json
// @Produce json
// @Param payload body service.BlockedRangeRequest true "Blocked range payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /me/schedule/blocks [post]
func (h *ScheduleHandler) CreateBlock(c *gin.Context) {
	teacher, ok := h.resolveTeacher(c)
	if !ok {
		return
	}
	var req service.BlockedRangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid blocked range payload"))
		return
	}
	block, err := h.service.CreateBlockedRange(c.Request.Context(), teacher.ID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, block)
}

// DeleteBlock godoc
// @Summary Delete a blocked range
// @Tags Schedule
// @Param id path string true "Blocked range ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /me/schedule/blocks/{id} [delete]
func (h *ScheduleHandler) DeleteBlock(c *gin.Context) {
	teacher, ok := h.resolveTeacher(c)
	if !ok {
		return
	}
	if err := h.service.DeleteBlockedRange(c.Request.Context(), teacher.ID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// GetPolicy godoc
// @Summary Get my booking policy
// @Tags Schedule
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /me/policy [get]
func (h *ScheduleHandler) GetPolicy(c *gin.Context) {
	teacher, ok := h.resolveTeacher(c)
	if !ok {
		return
	}
	policy, err := h.policies.PolicyFor(c.Request.Context(), teacher.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, policy, nil)
}

// UpdatePolicy godoc
// @Summary Update my booking policy
// @Tags Schedule
// @Accept json
// @Produce json
// @Param payload body service.BookingPolicyRequest true "Policy payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /me/policy [put]
func (h *ScheduleHandler) UpdatePolicy(c *gin.Context) {
	teacher, ok := h.resolveTeacher(c)
	if !ok {
		return
	}
	var req service.BookingPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid policy payload"))
		return
	}
	policy, err := h.service.UpdateBookingPolicy(c.Request.Context(), teacher.ID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, policy, nil)
}

// ExportPDF godoc
// @Summary Export my weekly schedule as PDF
// @Tags Schedule
// @Produce application/pdf
// @Success 200 {string} string "PDF document"
// @Router /me/schedule/export [get]
func (h *ScheduleHandler) ExportPDF(c *gin.Context) {
	teacher, ok := h.resolveTeacher(c)
	if !ok {
		return
	}
	out, err := h.exports.SchedulePDF(c.Request.Context(), teacher.ID, teacher.FullName)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="schedule.pdf"`)
	c.Data(http.StatusOK, "application/pdf", out)
}
