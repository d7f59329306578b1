// Package markethours models the Shanghai/Shenzhen trading calendar:
// two intraday sessions (9:30–11:30, 13:00–15:00 CST) on weekdays that
// are not exchange holidays. The midday break and the overnight close are
// the only legal timestamp gaps in a minute-bar feed.
package markethours

import (
	"fmt"
	"time"
)

// CST is China Standard Time (UTC+8). Exchange timestamps are wall-clock
// CST; the zone has no DST.
var CST = time.FixedZone("CST", 8*3600)

// Session boundaries in minutes from midnight CST. Bars use the
// [start, end) convention: the last morning bar starts at 11:29 and the
// first afternoon bar at 13:00.
const (
	morningOpen    = 9*60 + 30
	morningClose   = 11*60 + 30
	afternoonOpen  = 13 * 60
	afternoonClose = 15 * 60
)

// IsMarketOpen returns true if t falls inside a trading session.
func IsMarketOpen(t time.Time) bool {
	cst := t.In(CST)
	if !IsTradingDay(cst) {
		return false
	}
	hm := cst.Hour()*60 + cst.Minute()
	return (hm >= morningOpen && hm < morningClose) ||
		(hm >= afternoonOpen && hm < afternoonClose)
}

// IsWeekday returns true if t is Mon–Fri in CST.
func IsWeekday(t time.Time) bool {
	wd := t.In(CST).Weekday()
	return wd >= time.Monday && wd <= time.Friday
}

// IsTradingDay returns true if t is a weekday and not an exchange holiday.
func IsTradingDay(t time.Time) bool {
	cst := t.In(CST)
	return IsWeekday(cst) && !IsHoliday(cst)
}

// NextOpen returns the next session open at or after t: 13:00 today when t
// falls in the midday break, 9:30 today when t is before the morning open,
// otherwise 9:30 on the next trading day. If t is already inside a session
// the result is the open of the following session.
func NextOpen(t time.Time) time.Time {
	cst := t.In(CST)

	if IsTradingDay(cst) {
		hm := cst.Hour()*60 + cst.Minute()
		y, m, d := cst.Date()
		switch {
		case hm < morningOpen:
			return time.Date(y, m, d, 9, 30, 0, 0, CST)
		case hm < afternoonOpen:
			return time.Date(y, m, d, 13, 0, 0, 0, CST)
		}
	}

	// Morning open of the next trading day. Spring Festival is the longest
	// closure, well under the scan bound.
	day := cst.AddDate(0, 0, 1)
	for i := 0; i < 30; i++ {
		if IsTradingDay(day) {
			y, m, d := day.Date()
			return time.Date(y, m, d, 9, 30, 0, 0, CST)
		}
		day = day.AddDate(0, 0, 1)
	}
	y, m, d := cst.AddDate(0, 0, 1).Date()
	return time.Date(y, m, d, 9, 30, 0, 0, CST)
}

// TodayClose returns the afternoon close (15:00 CST) of t's date.
func TodayClose(t time.Time) time.Time {
	cst := t.In(CST)
	y, m, d := cst.Date()
	return time.Date(y, m, d, 15, 0, 0, 0, CST)
}

// IsLastSessionBar reports whether a bar starting at t with the given
// interval is the final bar of the trading day.
func IsLastSessionBar(t time.Time, interval time.Duration) bool {
	if !IsMarketOpen(t) {
		return false
	}
	next := t.Add(interval).In(CST)
	hm := next.Hour()*60 + next.Minute()
	return hm >= afternoonClose
}

// NextBarTime returns the timestamp the bar after prev must carry in a
// gap-free feed: prev+interval when that instant is still inside a
// session, otherwise the next session open. This is the sole definition of
// a legal timestamp gap.
func NextBarTime(prev time.Time, interval time.Duration) time.Time {
	next := prev.Add(interval)
	if IsMarketOpen(next) {
		return next
	}
	return NextOpen(next)
}

// TimeUntilOpen returns the duration from t until the next session open,
// zero when the market is currently open.
func TimeUntilOpen(t time.Time) time.Duration {
	if IsMarketOpen(t) {
		return 0
	}
	return NextOpen(t).Sub(t)
}

// StatusString renders a human-readable market status for logs.
func StatusString(t time.Time) string {
	if IsMarketOpen(t) {
		return "market open"
	}
	next := NextOpen(t).In(CST)
	return fmt.Sprintf("market closed, next open %s %s CST",
		next.Weekday().String()[:3], next.Format("01-02 15:04"))
}
