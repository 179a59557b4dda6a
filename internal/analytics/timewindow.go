package analytics

import (
	"fmt"
	"time"

	"github.com/dvloznov/txn-insights/internal/domain"
)

var dayparts = map[string]domain.HourRange{
	"morning":   {From: 5, To: 12},
	"afternoon": {From: 12, To: 17},
	"evening":   {From: 17, To: 21},
	"night":     {From: 21, To: 5},
}

// ResolveWindow turns a time reference into absolute bounds relative to now.
// Calendar windows yield [from, to); dayparts yield an hour range.
func ResolveWindow(name string, now time.Time) (from, to time.Time, hours *domain.HourRange, err error) {
	if h, ok := dayparts[name]; ok {
		return time.Time{}, time.Time{}, &h, nil
	}

	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	// weeks start on Monday
	weekday := (int(day.Weekday()) + 6) % 7
	week := day.AddDate(0, 0, -weekday)
	month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	switch name {
	case "today":
		return day, day.AddDate(0, 0, 1), nil, nil
	case "yesterday":
		return day.AddDate(0, 0, -1), day, nil, nil
	case "this_week":
		return week, week.AddDate(0, 0, 7), nil, nil
	case "last_week":
		return week.AddDate(0, 0, -7), week, nil, nil
	case "this_month":
		return month, month.AddDate(0, 1, 0), nil, nil
	case "last_month":
		return month.AddDate(0, -1, 0), month, nil, nil
	case "this_year":
		year := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
		return year, year.AddDate(1, 0, 0), nil, nil
	}
	return time.Time{}, time.Time{}, nil, fmt.Errorf("ResolveWindow: unknown time window %q", name)
}
