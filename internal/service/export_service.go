package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/lessonloop/lessonloop-api/internal/models"
	appErrors "github.com/lessonloop/lessonloop-api/pkg/errors"
	"github.com/lessonloop/lessonloop-api/pkg/export"
)

var weekdayNames = [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

type exportBookingReader interface {
	List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error)
}

type exportScheduleReader interface {
	ListWeeklyRules(ctx context.Context, teacherID string) ([]models.WeeklyRule, error)
}

// ExportService renders bookings and schedules into downloadable documents.
type ExportService struct {
	bookings exportBookingReader
	schedule exportScheduleReader
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	logger   *zap.Logger
}

// NewExportService instantiates ExportService.
func NewExportService(bookings exportBookingReader, schedule exportScheduleReader, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		bookings: bookings,
		schedule: schedule,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		logger:   logger,
	}
}

// BookingsCSV exports the filtered bookings as CSV.
func (s *ExportService) BookingsCSV(ctx context.Context, filter models.BookingFilter) ([]byte, error) {
	filter.Page = 1
	filter.PageSize = 100
	var rows [][]string
	for {
		bookings, total, err := s.bookings.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookings for export")
		}
		for _, b := range bookings {
			rows = append(rows, []string{
				b.ID,
				b.Subject,
				b.StartAt.UTC().Format(time.RFC3339),
				b.EndAt.UTC().Format(time.RFC3339),
				strconv.Itoa(b.DurationMinutes),
				string(b.Status),
			})
		}
		if len(rows) >= total || len(bookings) == 0 {
			break
		}
		filter.Page++
	}

	data := export.Dataset{
		Headers: []string{"id", "subject", "start_at", "end_at", "duration_minutes", "status"},
		Rows:    rows,
	}
	out, err := s.csv.Render(data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render bookings csv")
	}
	return out, nil
}

// SchedulePDF exports the teacher's weekly schedule as a PDF table.
func (s *ExportService) SchedulePDF(ctx context.Context, teacherID, teacherName string) ([]byte, error) {
	rules, err := s.schedule.ListWeeklyRules(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list weekly rules for export")
	}

	rows := make([][]string, 0, len(rules))
	for _, rule := range rules {
		day := ""
		if rule.Weekday >= 0 && rule.Weekday < len(weekdayNames) {
			day = weekdayNames[rule.Weekday]
		}
		status := "active"
		if !rule.Active {
			status = "inactive"
		}
		rows = append(rows, []string{day, rule.StartTime, rule.EndTime, rule.Timezone, status})
	}

	data := export.Dataset{
		Title:   fmt.Sprintf("Weekly schedule - %s", teacherName),
		Headers: []string{"Day", "From", "Until", "Timezone", "Status"},
		Rows:    rows,
	}
	out, err := s.pdf.Render(data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render schedule pdf")
	}
	return out, nil
}
