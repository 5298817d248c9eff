package util

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	got, ok := ParseDate("2024-10-10")
	if !ok {
		t.Fatalf("expected ok")
	}
	if FormatDate(got) != "2024-10-10" {
		t.Fatalf("unexpected date %v", got)
	}
}

func TestParseDateInvalid(t *testing.T) {
	if _, ok := ParseDate("10/10/2024"); ok {
		t.Fatalf("expected parse failure")
	}
	if _, ok := ParseDate(""); ok {
		t.Fatalf("expected parse failure for empty")
	}
}

func TestPreviousTradingDayMonday(t *testing.T) {
	// 2024-10-14 is a Monday; previous trading day is Friday the 11th.
	mon := time.Date(2024, 10, 14, 9, 30, 0, 0, time.UTC)
	got := PreviousTradingDay(mon)
	if FormatDate(got) != "2024-10-11" {
		t.Fatalf("unexpected day %s", FormatDate(got))
	}
}

func TestPreviousTradingDayWeekend(t *testing.T) {
	sat := time.Date(2024, 10, 12, 0, 0, 0, 0, time.UTC)
	if FormatDate(PreviousTradingDay(sat)) != "2024-10-11" {
		t.Fatalf("saturday should resolve to friday")
	}
	sun := time.Date(2024, 10, 13, 0, 0, 0, 0, time.UTC)
	if FormatDate(PreviousTradingDay(sun)) != "2024-10-11" {
		t.Fatalf("sunday should resolve to friday")
	}
}

func TestPreviousTradingDayMidweek(t *testing.T) {
	wed := time.Date(2024, 10, 16, 0, 0, 0, 0, time.UTC)
	if FormatDate(PreviousTradingDay(wed)) != "2024-10-15" {
		t.Fatalf("wednesday should resolve to tuesday")
	}
}

func TestWeekdayIndex(t *testing.T) {
	mon := time.Date(2024, 10, 14, 0, 0, 0, 0, time.UTC)
	if WeekdayIndex(mon) != 0 {
		t.Fatalf("monday should be 0, got %d", WeekdayIndex(mon))
	}
	sun := time.Date(2024, 10, 13, 0, 0, 0, 0, time.UTC)
	if WeekdayIndex(sun) != 6 {
		t.Fatalf("sunday should be 6, got %d", WeekdayIndex(sun))
	}
}
