package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/schedula/domain/entities"
	"github.com/satriahrh/schedula/domain/repositories"
)

const queryDateLayout = "2006-01-02"

// ScheduleService looks up the signed-in user's events for a day, week or month
type ScheduleService struct {
	backend repositories.ScheduleBackend
	creds   repositories.CredentialSource
	logger  *zap.Logger
}

// NewScheduleService creates a new schedule service
func NewScheduleService(backend repositories.ScheduleBackend, creds repositories.CredentialSource, logger *zap.Logger) *ScheduleService {
	return &ScheduleService{
		backend: backend,
		creds:   creds,
		logger:  logger,
	}
}

// Bounds returns the first and last instant of the range containing date.
// Weeks start on Monday.
func Bounds(r entities.TimeRange, date time.Time) (time.Time, time.Time, error) {
	y, m, d := date.Date()
	loc := date.Location()
	day := time.Date(y, m, d, 0, 0, 0, 0, loc)

	var start, next time.Time
	switch r {
	case entities.TimeRangeDay:
		start = day
		next = start.AddDate(0, 0, 1)
	case entities.TimeRangeWeek:
		offset := (int(day.Weekday()) + 6) % 7
		start = day.AddDate(0, 0, -offset)
		next = start.AddDate(0, 0, 7)
	case entities.TimeRangeMonth:
		start = time.Date(y, m, 1, 0, 0, 0, 0, loc)
		next = start.AddDate(0, 1, 0)
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("unknown time range %q", r)
	}
	return start, next.Add(-time.Nanosecond), nil
}

// Query builds the backend query text for the range containing date
func Query(r entities.TimeRange, date time.Time) (string, error) {
	start, end, err := Bounds(r, date)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s to %s", ScheduleQueryPrefix, start.Format(queryDateLayout), end.Format(queryDateLayout)), nil
}

// Events returns the events in the range containing date
func (s *ScheduleService) Events(ctx context.Context, r entities.TimeRange, date time.Time) ([]entities.ScheduleEvent, error) {
	query, err := Query(r, date)
	if err != nil {
		return nil, err
	}

	creds := s.creds.Credentials()
	if !creds.Authenticated() {
		return nil, ErrNotAuthenticated
	}

	events, err := s.backend.QueryEvents(ctx, creds, query)
	if err != nil {
		s.logger.Error("Failed to fetch schedule", zap.String("query", query), zap.Error(err))
		return nil, err
	}

	s.logger.Info("Schedule fetched",
		zap.String("range", string(r)),
		zap.Int("events", len(events)))
	return events, nil
}
