package commands

import (
	"errors"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/satriahrh/schedula/domain/entities"
	"github.com/satriahrh/schedula/usecase"
)

var (
	rangeFlag string
	dateFlag  string
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "List events for a day, week or month",
	RunE: func(cmd *cobra.Command, args []string) error {
		r := entities.TimeRange(rangeFlag)
		if !r.Valid() {
			return errors.New("range must be one of day, week, month")
		}
		date := time.Now()
		if dateFlag != "" {
			parsed, err := time.ParseInLocation("2006-01-02", dateFlag, time.Local)
			if err != nil {
				return errors.New("date must be formatted as yyyy-mm-dd")
			}
			date = parsed
		}

		a, err := newApp(nil)
		if err != nil {
			return err
		}
		defer a.close()

		events, err := a.scheduleService().Events(cmd.Context(), r, date)
		if errors.Is(err, usecase.ErrNotAuthenticated) {
			return errors.New("not signed in, run schedula login first")
		}
		if err != nil {
			return err
		}

		start, end, _ := usecase.Bounds(r, date)
		printEvents(cmd.OutOrStdout(), start, end, events)
		return nil
	},
}

func init() {
	scheduleCmd.Flags().StringVarP(&rangeFlag, "range", "r", string(entities.TimeRangeWeek), "Time range: day, week or month")
	scheduleCmd.Flags().StringVarP(&dateFlag, "date", "d", "", "Date inside the range, yyyy-mm-dd (default today)")
}

func printEvents(w io.Writer, start, end time.Time, events []entities.ScheduleEvent) {
	printf(w, "Events from %s to %s\n", start.Format("Mon Jan 2"), end.Format("Mon Jan 2"))
	if len(events) == 0 {
		printf(w, "  No events\n")
		return
	}
	for _, ev := range events {
		printf(w, "  %-12s %-18s %s\n", ev.Date, ev.Time, ev.Title)
		printf(w, "  %-12s %-18s %s, %s priority, %d attendees\n", "", ev.Type, ev.Location, ev.Priority, ev.Attendees)
	}
}
