package market

import (
	"fmt"
	"time"
)

// Session is the regular trading window in exchange time
type Session struct {
	OpenHour  int
	OpenMin   int
	CloseHour int
	CloseMin  int
}

// DefaultSession is the NYSE/NASDAQ regular session, 09:30 to 16:00 ET
func DefaultSession() Session {
	return Session{OpenHour: 9, OpenMin: 30, CloseHour: 16, CloseMin: 0}
}

// Status describes the session at one instant
type Status struct {
	IsOpen      bool          `json:"is_open"`
	Now         time.Time     `json:"now"`
	NextOpen    time.Time     `json:"next_open"`
	TimeToOpen  time.Duration `json:"time_to_open"`
	TimeToClose time.Duration `json:"time_to_close"`
	Reason      string        `json:"reason"` // open, weekend, holiday, pre-market, after-hours
}

// Eastern returns the exchange time zone
func Eastern() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.FixedZone("EST", -5*60*60)
	}
	return loc
}

// StatusAt reports the session state at t
func (s Session) StatusAt(t time.Time) Status {
	now := t.In(Eastern())
	st := Status{Now: now}

	open := s.openOn(now)
	closeAt := time.Date(now.Year(), now.Month(), now.Day(), s.CloseHour, s.CloseMin, 0, 0, now.Location())

	switch {
	case !isTradingDay(now):
		st.Reason = "weekend"
		if IsHoliday(now) {
			st.Reason = "holiday"
		}
		st.NextOpen = s.nextOpenAfter(now)
	case now.Before(open):
		st.Reason = "pre-market"
		st.NextOpen = open
	case !now.Before(closeAt):
		st.Reason = "after-hours"
		st.NextOpen = s.nextOpenAfter(now)
	default:
		st.IsOpen = true
		st.Reason = "open"
		st.TimeToClose = closeAt.Sub(now)
		return st
	}
	st.TimeToOpen = st.NextOpen.Sub(now)
	return st
}

// IsOpen reports whether the regular session is running at t
func (s Session) IsOpen(t time.Time) bool {
	return s.StatusAt(t).IsOpen
}

func (s Session) openOn(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), s.OpenHour, s.OpenMin, 0, 0, day.Location())
}

// nextOpenAfter finds the open of the first trading day after day
func (s Session) nextOpenAfter(day time.Time) time.Time {
	next := day.AddDate(0, 0, 1)
	for !isTradingDay(next) {
		next = next.AddDate(0, 0, 1)
	}
	return s.openOn(next)
}

func isTradingDay(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday && !IsHoliday(t)
}

// FormatDuration renders d as "1h 5m" or "12m"
func FormatDuration(d time.Duration) string {
	if d < 0 {
		return "0s"
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

// full-day exchange closures
var holidays = map[string]bool{
	"2024-01-01": true, "2024-01-15": true, "2024-02-19": true, "2024-03-29": true,
	"2024-05-27": true, "2024-06-19": true, "2024-07-04": true, "2024-09-02": true,
	"2024-11-28": true, "2024-12-25": true,

	"2025-01-01": true, "2025-01-09": true, "2025-01-20": true, "2025-02-17": true,
	"2025-04-18": true, "2025-05-26": true, "2025-06-19": true, "2025-07-04": true,
	"2025-09-01": true, "2025-11-27": true, "2025-12-25": true,

	"2026-01-01": true, "2026-01-19": true, "2026-02-16": true, "2026-04-03": true,
	"2026-05-25": true, "2026-06-19": true, "2026-07-03": true, "2026-09-07": true,
	"2026-11-26": true, "2026-12-25": true,
}

// IsHoliday reports whether the exchange is closed all day on t's date (ET)
func IsHoliday(t time.Time) bool {
	return holidays[t.In(Eastern()).Format("2006-01-02")]
}
