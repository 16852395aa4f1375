package model

import (
	"time"

	"github.com/google/uuid"
)

// Unknown is stored when a user agent yields no classification.
const Unknown = "unknown"

// ClickEvent is one recorded redirect. Events are append-only.
type ClickEvent struct {
	ID        int64     `json:"id,omitempty"`
	LinkID    uuid.UUID `json:"linkId"`
	Timestamp time.Time `json:"timestamp"`
	IPAddress string    `json:"ipAddress"`
	UserAgent string    `json:"userAgent"`
	Device    string    `json:"device"`
	Browser   string    `json:"browser"`
	OS        string    `json:"os"`
}

// Visit carries the request data captured at redirect time.
type Visit struct {
	IPAddress string
	UserAgent string
}

// Stats groups click counts for one link
type Stats struct {
	DeviceStats  map[string]int64 `json:"deviceStats"`
	BrowserStats map[string]int64 `json:"browserStats"`
	OSStats      map[string]int64 `json:"osStats"`
	ClicksByDay  map[string]int64 `json:"clicksByDay"`
}

// AnalyticsResponse is returned to the link owner
type AnalyticsResponse struct {
	URL         LinkResponse `json:"url"`
	TotalClicks int64        `json:"totalClicks"`
	Stats
}
