package markethours

import "time"

// Exchange closures for 2025 and 2026 (SSE/SZSE share the calendar).
// Source: official exchange holiday notices. Weekend make-up working days
// are regular trading days and need no special handling here.
var cnHolidays = []struct {
	year  int
	month time.Month
	day   int
}{
	// 2025
	{2025, time.January, 1},   // New Year's Day
	{2025, time.January, 28},  // Spring Festival eve
	{2025, time.January, 29},  // Spring Festival
	{2025, time.January, 30},  // Spring Festival
	{2025, time.January, 31},  // Spring Festival
	{2025, time.February, 3},  // Spring Festival
	{2025, time.February, 4},  // Spring Festival
	{2025, time.April, 4},     // Qingming Festival
	{2025, time.May, 1},       // Labour Day
	{2025, time.May, 2},       // Labour Day
	{2025, time.May, 5},       // Labour Day
	{2025, time.June, 2},      // Dragon Boat Festival
	{2025, time.October, 1},   // National Day
	{2025, time.October, 2},   // National Day
	{2025, time.October, 3},   // National Day
	{2025, time.October, 6},   // Mid-Autumn Festival
	{2025, time.October, 7},   // National Day
	{2025, time.October, 8},   // National Day

	// 2026 (tentative where the State Council notice is pending)
	{2026, time.January, 1},   // New Year's Day
	{2026, time.January, 2},   // New Year's Day
	{2026, time.February, 16}, // Spring Festival
	{2026, time.February, 17}, // Spring Festival
	{2026, time.February, 18}, // Spring Festival
	{2026, time.February, 19}, // Spring Festival
	{2026, time.February, 20}, // Spring Festival
	{2026, time.April, 6},     // Qingming Festival (tentative)
	{2026, time.May, 1},       // Labour Day
	{2026, time.May, 4},       // Labour Day (tentative)
	{2026, time.May, 5},       // Labour Day (tentative)
	{2026, time.June, 19},     // Dragon Boat Festival (tentative)
	{2026, time.September, 25}, // Mid-Autumn Festival (tentative)
	{2026, time.October, 1},   // National Day
	{2026, time.October, 2},   // National Day
	{2026, time.October, 5},   // National Day
	{2026, time.October, 6},   // National Day
	{2026, time.October, 7},   // National Day
}

// pre-compute for fast lookup
var holidaySet map[string]bool

func init() {
	holidaySet = make(map[string]bool, len(cnHolidays))
	for _, h := range cnHolidays {
		holidaySet[dateKey(h.year, h.month, h.day)] = true
	}
}

// IsHoliday returns true if the date (in CST) is an exchange holiday.
func IsHoliday(t time.Time) bool {
	cst := t.In(CST)
	return holidaySet[dateKey(cst.Year(), cst.Month(), cst.Day())]
}

func dateKey(year int, month time.Month, day int) string {
	return time.Date(year, month, day, 0, 0, 0, 0, CST).Format("2006-01-02")
}
