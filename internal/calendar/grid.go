package calendar

import (
	"time"
)

// Day is one cell of a month grid.
type Day struct {
	Date           Date `json:"date"`
	IsCurrentMonth bool `json:"isCurrentMonth"`
}

// WeekdayLabels are the grid column headers; weeks start on Sunday.
var WeekdayLabels = []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// MonthGrid lays out the month containing month as whole weeks, padding
// with the trailing days of the previous month and leading days of the next.
func MonthGrid(month Date) []Day {
	first := month.MonthStart()
	daysInMonth := first.AddMonths(1).AddDays(-1).Day
	lead := int(first.Weekday() - time.Sunday)
	total := (lead + daysInMonth + 6) / 7 * 7

	days := make([]Day, 0, total)
	start := first.AddDays(-lead)
	for i := 0; i < total; i++ {
		d := start.AddDays(i)
		days = append(days, Day{
			Date:           d,
			IsCurrentMonth: d.Year == first.Year && d.Month == first.Month,
		})
	}
	return days
}
