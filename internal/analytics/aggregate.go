package analytics

import (
	"time"

	"github.com/BhargavRaval15/url-shortner/internal/model"
)

// DayLayout keys clicksByDay. Days are UTC calendar dates.
const DayLayout = "2006-01-02"

// Aggregate groups events by device, browser, OS and UTC day. It is a
// pure reduction; an empty input yields empty, non-nil maps.
func Aggregate(events []model.ClickEvent) model.Stats {
	stats := model.Stats{
		DeviceStats:  make(map[string]int64),
		BrowserStats: make(map[string]int64),
		OSStats:      make(map[string]int64),
		ClicksByDay:  make(map[string]int64),
	}

	for _, e := range events {
		stats.DeviceStats[orUnknown(e.Device)]++
		stats.BrowserStats[orUnknown(e.Browser)]++
		stats.OSStats[orUnknown(e.OS)]++
		stats.ClicksByDay[Day(e.Timestamp)]++
	}
	return stats
}

// Day returns the UTC calendar date of t
func Day(t time.Time) string {
	return t.UTC().Format(DayLayout)
}
