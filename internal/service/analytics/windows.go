package analytics

import (
	"time"

	apperrors "github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/errors"
)

// DateLayout is the request and report date format.
const DateLayout = "2006-01-02"

// maxRangeDays bounds a growth request so one call cannot scan years.
const maxRangeDays = 366

// Range is the half-open interval [From, To).
type Range struct {
	From time.Time
	To   time.Time
}

// Days is the number of calendar days the range spans. Days are counted on
// the calendar, so a day shortened or lengthened by DST still counts once.
func (r Range) Days() int {
	fy, fm, fd := r.From.Date()
	ty, tm, td := r.To.Date()
	from := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	to := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from) / (24 * time.Hour))
}

// Windows are the fixed reporting windows relative to one instant.
type Windows struct {
	Today     Range
	Yesterday Range
	ThisWeek  Range
	ThisMonth Range
	LastMonth Range
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// ComputeWindows derives the windows containing now in loc. Weeks start on
// Monday; the current windows end at the next midnight, not at now.
func ComputeWindows(now time.Time, loc *time.Location) Windows {
	today := startOfDay(now, loc)
	tomorrow := today.AddDate(0, 0, 1)

	offset := (int(today.Weekday()) + 6) % 7
	weekStart := today.AddDate(0, 0, -offset)

	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, loc)
	lastMonthStart := monthStart.AddDate(0, -1, 0)

	return Windows{
		Today:     Range{today, tomorrow},
		Yesterday: Range{today.AddDate(0, 0, -1), today},
		ThisWeek:  Range{weekStart, tomorrow},
		ThisMonth: Range{monthStart, tomorrow},
		LastMonth: Range{lastMonthStart, monthStart},
	}
}

// Window returns the named window.
func (w Windows) Window(name Window) Range {
	switch name {
	case WindowYesterday:
		return w.Yesterday
	case WindowWeek:
		return w.ThisWeek
	case WindowMonth:
		return w.ThisMonth
	default:
		return w.Today
	}
}

// ParseDate reads a YYYY-MM-DD date as midnight in loc. An empty string is
// the zero time.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, apperrors.Validation(apperrors.CodeInvalidRange, "invalid date").
			WithDetails("expected YYYY-MM-DD, got " + s).
			WithCause(err).
			Build()
	}
	return t, nil
}

// GrowthRanges turns the inclusive day range [from, to] into the current
// window and the equal-length window immediately before it. Zero dates
// default to today.
func GrowthRanges(from, to, now time.Time, loc *time.Location) (current, previous Range, err error) {
	today := startOfDay(now, loc)
	if from.IsZero() && to.IsZero() {
		from, to = today, today
	} else if from.IsZero() {
		from = to
	} else if to.IsZero() {
		to = from
	}
	from, to = startOfDay(from, loc), startOfDay(to, loc)

	if to.Before(from) {
		return Range{}, Range{}, apperrors.Validation(apperrors.CodeInvalidRange, "invalid date range").
			WithDetails("from " + from.Format(DateLayout) + " is after to " + to.Format(DateLayout)).
			Build()
	}

	current = Range{From: from, To: to.AddDate(0, 0, 1)}
	days := current.Days()
	if days > maxRangeDays {
		return Range{}, Range{}, apperrors.Validation(apperrors.CodeInvalidRange, "date range too long").
			WithDetails("at most 366 days").
			Build()
	}
	previous = Range{From: from.AddDate(0, 0, -days), To: from}
	return current, previous, nil
}
