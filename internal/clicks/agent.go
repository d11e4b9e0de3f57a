package clicks

import (
	"github.com/mileusna/useragent"
)

// Device categories for the fixed analytics histogram.
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceUnknown = "unknown"
)

// agentInfo is the parsed slice of a User-Agent header that analytics cares about.
type agentInfo struct {
	Browser        string
	BrowserVersion string
	OS             string
	Device         string
}

// parseAgent extracts browser, OS, and device category from a raw User-Agent
// string. Unparseable strings default to the desktop category; recognizable
// non-browser agents (bots) land in the unknown bucket.
func parseAgent(raw string) agentInfo {
	ua := useragent.Parse(raw)

	info := agentInfo{
		Browser:        ua.Name,
		BrowserVersion: ua.Version,
		OS:             ua.OS,
	}

	switch {
	case ua.Mobile:
		info.Device = DeviceMobile
	case ua.Tablet:
		info.Device = DeviceTablet
	case ua.Desktop:
		info.Device = DeviceDesktop
	case ua.Bot:
		info.Device = DeviceUnknown
	default:
		info.Device = DeviceDesktop
	}

	return info
}
