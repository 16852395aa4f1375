package analytics

import (
	"strings"

	"github.com/BhargavRaval15/url-shortner/internal/model"
	"github.com/mssola/user_agent"
)

// Device classes reported in analytics.
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceBot     = "bot"
)

// Classify derives device, browser and OS names from a raw User-Agent
// header. Anything it cannot classify is model.Unknown.
func Classify(raw string) (device, browser, os string) {
	if strings.TrimSpace(raw) == "" {
		return model.Unknown, model.Unknown, model.Unknown
	}

	ua := user_agent.New(raw)
	browser, _ = ua.Browser()
	os = ua.OSInfo().Name
	if os == "" {
		os = ua.OS()
	}

	lower := strings.ToLower(raw)
	switch {
	case ua.Bot():
		device = DeviceBot
	// iPad agents also claim to be mobile
	case strings.Contains(lower, "ipad") || strings.Contains(lower, "tablet"):
		device = DeviceTablet
	case ua.Mobile():
		device = DeviceMobile
	case os != "":
		device = DeviceDesktop
	default:
		device = model.Unknown
	}

	return orUnknown(device), orUnknown(browser), orUnknown(os)
}

// Enrich fills the derived fields of event that are still empty
func Enrich(event *model.ClickEvent) {
	if event.Device != "" && event.Browser != "" && event.OS != "" {
		return
	}
	device, browser, os := Classify(event.UserAgent)
	if event.Device == "" {
		event.Device = device
	}
	if event.Browser == "" {
		event.Browser = browser
	}
	if event.OS == "" {
		event.OS = os
	}
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return model.Unknown
	}
	return s
}
