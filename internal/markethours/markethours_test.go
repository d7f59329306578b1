package markethours

import (
	"testing"
	"time"
)

// 2025-06-03 is a regular trading Tuesday; 2025-06-02 is the Dragon Boat
// Festival closure.
func cst(day, hour, min int) time.Time {
	return time.Date(2025, 6, day, hour, min, 0, 0, CST)
}

func TestIsMarketOpen(t *testing.T) {
	tests := []struct {
		name string
		t    time.Time
		want bool
	}{
		{"before open", cst(3, 9, 29), false},
		{"morning open", cst(3, 9, 30), true},
		{"last morning bar", cst(3, 11, 29), true},
		{"morning close", cst(3, 11, 30), false},
		{"lunch break", cst(3, 12, 15), false},
		{"afternoon open", cst(3, 13, 0), true},
		{"last afternoon bar", cst(3, 14, 59), true},
		{"afternoon close", cst(3, 15, 0), false},
		{"saturday", cst(7, 10, 0), false},
		{"dragon boat holiday", cst(2, 10, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsMarketOpen(tt.t); got != tt.want {
				t.Errorf("IsMarketOpen(%v) = %v, want %v", tt.t, got, tt.want)
			}
		})
	}
}

func TestIsMarketOpen_ConvertsZone(t *testing.T) {
	// 01:45 UTC == 09:45 CST.
	utc := time.Date(2025, 6, 3, 1, 45, 0, 0, time.UTC)
	if !IsMarketOpen(utc) {
		t.Error("expected open for 09:45 CST expressed in UTC")
	}
}

func TestNextOpen(t *testing.T) {
	tests := []struct {
		name string
		t    time.Time
		want time.Time
	}{
		{"pre-open same day", cst(3, 8, 0), cst(3, 9, 30)},
		{"lunch break", cst(3, 11, 45), cst(3, 13, 0)},
		{"in morning session", cst(3, 10, 0), cst(3, 13, 0)},
		{"after close", cst(3, 16, 0), cst(4, 9, 30)},
		{"friday evening", cst(6, 18, 0), cst(9, 9, 30)},
		{"holiday", cst(2, 10, 0), cst(3, 9, 30)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextOpen(tt.t); !got.Equal(tt.want) {
				t.Errorf("NextOpen(%v) = %v, want %v", tt.t, got, tt.want)
			}
		})
	}
}

func TestNextBarTime(t *testing.T) {
	min := time.Minute
	tests := []struct {
		name string
		prev time.Time
		want time.Time
	}{
		{"mid session", cst(3, 10, 0), cst(3, 10, 1)},
		{"across lunch", cst(3, 11, 29), cst(3, 13, 0)},
		{"overnight", cst(3, 14, 59), cst(4, 9, 30)},
		{"over weekend", cst(6, 14, 59), cst(9, 9, 30)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextBarTime(tt.prev, min); !got.Equal(tt.want) {
				t.Errorf("NextBarTime(%v) = %v, want %v", tt.prev, got, tt.want)
			}
		})
	}
}

func TestIsLastSessionBar(t *testing.T) {
	if IsLastSessionBar(cst(3, 11, 29), time.Minute) {
		t.Error("last morning bar is not the last bar of the day")
	}
	if !IsLastSessionBar(cst(3, 14, 59), time.Minute) {
		t.Error("14:59 bar should be the last bar of the day")
	}
}

func TestIsHoliday(t *testing.T) {
	if !IsHoliday(cst(2, 12, 0)) {
		t.Error("2025-06-02 Dragon Boat Festival should be a holiday")
	}
	if IsHoliday(cst(3, 12, 0)) {
		t.Error("2025-06-03 should not be a holiday")
	}
	// National Day week.
	if !IsHoliday(time.Date(2025, 10, 1, 10, 0, 0, 0, CST)) {
		t.Error("2025-10-01 should be a holiday")
	}
}

func TestTimeUntilOpen(t *testing.T) {
	if d := TimeUntilOpen(cst(3, 10, 0)); d != 0 {
		t.Errorf("expected 0 while open, got %v", d)
	}
	if d := TimeUntilOpen(cst(3, 9, 0)); d != 30*time.Minute {
		t.Errorf("expected 30m before open, got %v", d)
	}
}
