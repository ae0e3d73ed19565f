package geo

import (
	"strings"

	"github.com/mssola/useragent"
)

const (
	UnknownDevice  = "Unknown Device"
	UnknownBrowser = "Unknown Browser"
)

// ParseUserAgent summarises a User-Agent header as a device label and a
// "name version" browser label. Unparseable parts fall back to
// UnknownDevice and UnknownBrowser.
func ParseUserAgent(raw string) (device, browser string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return UnknownDevice, UnknownBrowser
	}
	ua := useragent.New(raw)

	device = ua.OS()
	if platform := ua.Platform(); platform != "" && !strings.Contains(device, platform) {
		device = strings.TrimSpace(platform + " " + device)
	}
	switch {
	case ua.Bot():
		device = "Bot"
	case device == "":
		device = UnknownDevice
	case ua.Mobile():
		device += " (mobile)"
	}

	name, version := ua.Browser()
	browser = strings.TrimSpace(name + " " + version)
	if browser == "" {
		browser = UnknownBrowser
	}
	return device, browser
}
