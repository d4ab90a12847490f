package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lessonloop/lessonloop-api/internal/models"
	appErrors "github.com/lessonloop/lessonloop-api/pkg/errors"
)

type availabilityServiceMock struct {
	slots        []models.CandidateSlot
	slotsErr     error
	check        *models.AvailabilityCheck
	policy       *models.BookingPolicy
	lastTeacher  string
	lastDuration int
	slotsCalled  bool
	checkCalled  bool
}

func (m *availabilityServiceMock) GenerateSlots(_ context.Context, teacherID string, _, _ time.Time, durationMinutes int) ([]models.CandidateSlot, error) {
	m.slotsCalled = true
	m.lastTeacher = teacherID
	m.lastDuration = durationMinutes
	return m.slots, m.slotsErr
}

func (m *availabilityServiceMock) CheckAvailability(_ context.Context, teacherID string, _, _ time.Time) (*models.AvailabilityCheck, error) {
	m.checkCalled = true
	m.lastTeacher = teacherID
	return m.check, nil
}

func (m *availabilityServiceMock) PolicyFor(_ context.Context, teacherID string) (*models.BookingPolicy, error) {
	m.lastTeacher = teacherID
	return m.policy, nil
}

type teacherLookupMock struct {
	err error
}

func (m *teacherLookupMock) GetByID(_ context.Context, id string) (*models.Teacher, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Teacher{ID: id}, nil
}

func availabilityTestContext(t *testing.T, target string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(http.MethodGet, target, nil)
	require.NoError(t, err)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "teacher-1"}}
	return c, w
}

func TestAvailabilityHandlerSlots(t *testing.T) {
	mockSvc := &availabilityServiceMock{slots: []models.CandidateSlot{{Available: true}}}
	handler := NewAvailabilityHandler(mockSvc, &teacherLookupMock{})

	c, w := availabilityTestContext(t, "/teachers/teacher-1/slots?from=2025-06-02&to=2025-06-08&duration=60")
	handler.Slots(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.slotsCalled)
	assert.Equal(t, "teacher-1", mockSvc.lastTeacher)
	assert.Equal(t, 60, mockSvc.lastDuration)
}

func TestAvailabilityHandlerSlotsBadDate(t *testing.T) {
	mockSvc := &availabilityServiceMock{}
	handler := NewAvailabilityHandler(mockSvc, &teacherLookupMock{})

	c, w := availabilityTestContext(t, "/teachers/teacher-1/slots?from=not-a-date&to=2025-06-08")
	handler.Slots(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, mockSvc.slotsCalled)
}

func TestAvailabilityHandlerSlotsServiceError(t *testing.T) {
	mockSvc := &availabilityServiceMock{slotsErr: appErrors.ErrFormat}
	handler := NewAvailabilityHandler(mockSvc, &teacherLookupMock{})

	c, w := availabilityTestContext(t, "/teachers/teacher-1/slots?from=2025-06-02&to=2025-06-08&duration=0")
	handler.Slots(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAvailabilityHandlerCheck(t *testing.T) {
	mockSvc := &availabilityServiceMock{check: &models.AvailabilityCheck{Available: false, Reason: "teacher is unavailable at this time"}}
	handler := NewAvailabilityHandler(mockSvc, &teacherLookupMock{})

	c, w := availabilityTestContext(t, "/teachers/teacher-1/availability?start=2025-06-02T10:00:00Z&end=2025-06-02T11:00:00Z")
	handler.Check(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.checkCalled)
	assert.Contains(t, w.Body.String(), "teacher is unavailable at this time")
}

func TestAvailabilityHandlerCheckBadTimestamps(t *testing.T) {
	mockSvc := &availabilityServiceMock{}
	handler := NewAvailabilityHandler(mockSvc, &teacherLookupMock{})

	c, w := availabilityTestContext(t, "/teachers/teacher-1/availability?start=today&end=tomorrow")
	handler.Check(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, mockSvc.checkCalled)
}

func TestAvailabilityHandlerSlotsUnknownTeacher(t *testing.T) {
	mockSvc := &availabilityServiceMock{}
	lookup := &teacherLookupMock{err: appErrors.Clone(appErrors.ErrNotFound, "teacher not found")}
	handler := NewAvailabilityHandler(mockSvc, lookup)

	c, w := availabilityTestContext(t, "/teachers/teacher-1/slots?from=2025-06-02&to=2025-06-08")
	handler.Slots(c)

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, mockSvc.slotsCalled)
}

func TestAvailabilityHandlerPolicy(t *testing.T) {
	mockSvc := &availabilityServiceMock{policy: models.DefaultBookingPolicy("teacher-1")}
	handler := NewAvailabilityHandler(mockSvc, &teacherLookupMock{})

	c, w := availabilityTestContext(t, "/teachers/teacher-1/policy")
	handler.Policy(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "buffer_minutes")
}
