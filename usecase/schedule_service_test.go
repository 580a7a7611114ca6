package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/schedula/domain/entities"
)

type fakeScheduleBackend struct {
	queries []string
	events  []entities.ScheduleEvent
	err     error
}

func (f *fakeScheduleBackend) QueryEvents(ctx context.Context, creds entities.Credentials, query string) ([]entities.ScheduleEvent, error) {
	f.queries = append(f.queries, query)
	return f.events, f.err
}

func TestBounds(t *testing.T) {
	// Wednesday
	date := time.Date(2024, 3, 13, 15, 4, 5, 0, time.UTC)

	tests := []struct {
		r         entities.TimeRange
		wantStart time.Time
		wantEnd   time.Time
	}{
		{entities.TimeRangeDay, time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 13, 23, 59, 59, 999999999, time.UTC)},
		{entities.TimeRangeWeek, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 17, 23, 59, 59, 999999999, time.UTC)},
		{entities.TimeRangeMonth, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 31, 23, 59, 59, 999999999, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(string(tt.r), func(t *testing.T) {
			start, end, err := Bounds(tt.r, date)
			if err != nil {
				t.Fatalf("Bounds failed: %v", err)
			}
			if !start.Equal(tt.wantStart) || !end.Equal(tt.wantEnd) {
				t.Errorf("Expected %v..%v, got %v..%v", tt.wantStart, tt.wantEnd, start, end)
			}
		})
	}

	if _, _, err := Bounds("fortnight", date); err == nil {
		t.Error("Expected error for unknown range")
	}
}

func TestBoundsWeekStartsOnMonday(t *testing.T) {
	sunday := time.Date(2024, 3, 17, 10, 0, 0, 0, time.UTC)
	start, _, err := Bounds(entities.TimeRangeWeek, sunday)
	if err != nil {
		t.Fatalf("Bounds failed: %v", err)
	}
	if start.Weekday() != time.Monday || start.Day() != 11 {
		t.Errorf("Expected Monday March 11, got %v", start)
	}
}

func TestQuery(t *testing.T) {
	q, err := Query(entities.TimeRangeWeek, time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if q != "Get events for 2024-02-26 to 2024-03-03" {
		t.Errorf("Unexpected query %q", q)
	}
}

func TestScheduleServiceEvents(t *testing.T) {
	backend := &fakeScheduleBackend{events: []entities.ScheduleEvent{{ID: "1", Title: "Standup"}}}
	svc := NewScheduleService(backend, fakeCredentials{creds: testCreds}, zaptest.NewLogger(t))

	events, err := svc.Events(context.Background(), entities.TimeRangeDay, time.Date(2024, 3, 13, 8, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	if len(events) != 1 || events[0].Title != "Standup" {
		t.Errorf("Unexpected events %+v", events)
	}
	if len(backend.queries) != 1 || backend.queries[0] != "Get events for 2024-03-13 to 2024-03-13" {
		t.Errorf("Unexpected queries %v", backend.queries)
	}
}

func TestScheduleServiceRequiresSignIn(t *testing.T) {
	backend := &fakeScheduleBackend{}
	svc := NewScheduleService(backend, fakeCredentials{}, zaptest.NewLogger(t))

	if _, err := svc.Events(context.Background(), entities.TimeRangeDay, time.Now()); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("Expected ErrNotAuthenticated, got %v", err)
	}
	if len(backend.queries) != 0 {
		t.Error("Backend must not be called when signed out")
	}
}
