package apiclient

import (
	"net/url"
	"regexp"
	"strings"
)

// TunnelBypassHeader suppresses the ngrok browser interstitial, which would
// otherwise replace JSON responses with an HTML warning page.
const TunnelBypassHeader = "ngrok-skip-browser-warning"

var tunnelHostPattern = regexp.MustCompile(`(^|\.)ngrok(-free)?\.(app|io|dev)$`)

func needsTunnelBypass(u *url.URL) bool {
	if u == nil {
		return false
	}
	return tunnelHostPattern.MatchString(strings.ToLower(u.Hostname()))
}
