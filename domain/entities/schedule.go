package entities

// TimeRange selects the window a schedule query covers
type TimeRange string

const (
	TimeRangeDay   TimeRange = "day"
	TimeRangeWeek  TimeRange = "week"
	TimeRangeMonth TimeRange = "month"
)

// Valid reports whether r is one of the known ranges
func (r TimeRange) Valid() bool {
	switch r {
	case TimeRangeDay, TimeRangeWeek, TimeRangeMonth:
		return true
	}
	return false
}

// ScheduleEvent is one calendar entry returned by the scheduling backend
type ScheduleEvent struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Location  string `json:"location"`
	Attendees int    `json:"attendees"`
	Priority  string `json:"priority"`
	Type      string `json:"type"`
}
