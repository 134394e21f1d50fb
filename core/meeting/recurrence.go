package meeting

import (
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/redinnovafp/backend/core"
)

type RecurrenceType string

// Recurrence types
const (
	RecurrenceDaily   RecurrenceType = "daily"
	RecurrenceWeekly  RecurrenceType = "weekly"
	RecurrenceMonthly RecurrenceType = "monthly"
)

const (
	// MaxOccurrences bounds the instances generated for a single series.
	MaxOccurrences = 366
	// DefaultRecurrenceSpan is used when no end date is given.
	DefaultRecurrenceSpan = 90 * 24 * time.Hour
)

var (
	ErrInvalidRecurrence  = errors.New("invalid recurrence")
	ErrTooManyOccurrences = fmt.Errorf("a recurrence cannot generate more than %d meetings", MaxOccurrences)
)

// Recurrence describes how a meeting repeats. It is consumed once when scheduling, never stored.
type Recurrence struct {
	Type       RecurrenceType `json:"type"`
	Interval   int            `json:"interval"`
	EndDate    *time.Time     `json:"end_date"`     // inclusive, defaults to start + DefaultRecurrenceSpan
	DaysOfWeek []int          `json:"days_of_week"` // weekly: 0 (Sunday) - 6 (Saturday), defaults to the start's weekday
	DayOfMonth int            `json:"day_of_month"` // monthly: 1 - 31, clipped to the month's length, defaults to the start's day
}

func (r Recurrence) Validate() error {
	invalid := func(field, msg string) error {
		return core.NewValidationError(ErrInvalidRecurrence, core.FieldError{Field: "recurrence." + field, Error: msg})
	}

	switch r.Type {
	case RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
	default:
		return invalid("type", "type must be one of daily, weekly or monthly")
	}
	if r.Interval < 1 {
		return invalid("interval", "interval must be at least 1")
	}
	for _, d := range r.DaysOfWeek {
		if d < 0 || d > 6 {
			return invalid("days_of_week", "days of week must be between 0 and 6")
		}
	}
	if r.DayOfMonth < 0 || r.DayOfMonth > 31 {
		return invalid("day_of_month", "day of month must be between 1 and 31")
	}
	return nil
}

// Occurrences returns the start times of the occurrences following start, in ascending order.
// start itself is never part of the result.
func Occurrences(start time.Time, r Recurrence) ([]time.Time, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	// the end date is a calendar date, taken as given & bounded in the start's location
	limit := endOfDay(start.Add(DefaultRecurrenceSpan), start.Location())
	if r.EndDate != nil {
		limit = endOfDay(*r.EndDate, start.Location())
	}
	if limit.Before(start) {
		return nil, nil
	}

	var next func(emit func(time.Time) bool)
	switch r.Type {
	case RecurrenceDaily:
		next = func(emit func(time.Time) bool) {
			for i := 1; emit(start.AddDate(0, 0, i*r.Interval)); i++ {
			}
		}
	case RecurrenceWeekly:
		days := weekOffsets(start, r.DaysOfWeek)
		weekStart := start.AddDate(0, 0, -mondayOffset(start.Weekday()))
		next = func(emit func(time.Time) bool) {
			for w := 0; ; w += r.Interval {
				for _, off := range days {
					t := weekStart.AddDate(0, 0, w*7+off)
					if !t.After(start) {
						continue
					}
					if !emit(t) {
						return
					}
				}
			}
		}
	case RecurrenceMonthly:
		dom := r.DayOfMonth
		if dom == 0 {
			dom = start.Day()
		}
		next = func(emit func(time.Time) bool) {
			for i := 0; ; i += r.Interval {
				first := time.Date(start.Year(), start.Month()+time.Month(i), 1, start.Hour(), start.Minute(), start.Second(), start.Nanosecond(), start.Location())
				day := dom
				if n := daysIn(first.Year(), first.Month()); day > n {
					day = n
				}
				t := first.AddDate(0, 0, day-1)
				if !t.After(start) {
					continue
				}
				if !emit(t) {
					return
				}
			}
		}
	}

	var (
		occurrences []time.Time
		err         error
	)
	next(func(t time.Time) bool {
		if t.After(limit) {
			return false
		}
		if len(occurrences) == MaxOccurrences {
			err = ErrTooManyOccurrences
			return false
		}
		occurrences = append(occurrences, t)
		return true
	})
	if err != nil {
		return nil, core.NewValidationError(err, core.FieldError{Field: "recurrence.end_date", Error: err.Error()})
	}
	return occurrences, nil
}

// Expand returns a draft per occurrence of the series started by nm, preserving its duration.
func Expand(nm NewMeeting, r Recurrence) ([]NewMeeting, error) {
	starts, err := Occurrences(nm.StartTime, r)
	if err != nil {
		return nil, err
	}
	duration := nm.EndTime.Sub(nm.StartTime)
	drafts := make([]NewMeeting, 0, len(starts))
	for _, start := range starts {
		draft := nm
		draft.StartTime = start
		draft.EndTime = start.Add(duration)
		draft.Participants = append([]string(nil), nm.Participants...)
		draft.Agenda = append([]string(nil), nm.Agenda...)
		drafts = append(drafts, draft)
	}
	return drafts, nil
}

// weekOffsets returns the sorted unique day offsets from monday of the weekly days.
func weekOffsets(start time.Time, daysOfWeek []int) []int {
	if len(daysOfWeek) == 0 {
		return []int{mondayOffset(start.Weekday())}
	}
	seen := make(map[int]bool, len(daysOfWeek))
	offsets := make([]int, 0, len(daysOfWeek))
	for _, d := range daysOfWeek {
		off := mondayOffset(time.Weekday(d))
		if !seen[off] {
			seen[off] = true
			offsets = append(offsets, off)
		}
	}
	sort.Ints(offsets)
	return offsets
}

// mondayOffset is the number of days between the monday of the week & d.
func mondayOffset(d time.Weekday) int {
	return (int(d) + 6) % 7
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func endOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), loc)
}
