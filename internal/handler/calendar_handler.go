package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	appErrors "github.com/lessonloop/lessonloop-api/pkg/errors"
	"github.com/lessonloop/lessonloop-api/pkg/response"
)

type calendarProvider interface {
	IssueFeedToken(userID string) (string, time.Time, error)
	RenderFeed(ctx context.Context, token string) ([]byte, error)
}

// CalendarHandler exposes the iCalendar feed and its token endpoint.
type CalendarHandler struct {
	service calendarProvider
}

// NewCalendarHandler creates a new handler.
func NewCalendarHandler(svc calendarProvider) *CalendarHandler {
	return &CalendarHandler{service: svc}
}

// FeedToken godoc
// @Summary Issue a calendar feed token
// @Description Mints a signed token calendar apps can use to poll the feed
// @Tags Calendar
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /me/calendar/token [post]
func (h *CalendarHandler) FeedToken(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	token, expiresAt, err := h.service.IssueFeedToken(claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{
		"token":      token,
		"expires_at": expiresAt,
		"feed_path":  "/api/v1/calendar/feed?token=" + token,
	}, nil)
}

// Feed godoc
// @Summary Serve the iCalendar feed
// @Description Returns the subscriber's lessons as an iCalendar document
// @Tags Calendar
// @Produce text/calendar
// @Param token query string true "Feed token"
// @Success 200 {string} string "iCalendar document"
// @Failure 401 {object} response.Envelope
// @Router /calendar/feed [get]
func (h *CalendarHandler) Feed(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "feed token required"))
		return
	}

	feed, err := h.service.RenderFeed(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="lessons.ics"`)
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", feed)
}
