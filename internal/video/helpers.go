package video

import (
	"crypto/sha256"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mssola/useragent"
)

func viewerHash(ip, userAgent string) string {
	h := sha256.Sum256([]byte(ip + "|" + userAgent))
	return fmt.Sprintf("%x", h[:8])
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if first, _, ok := strings.Cut(forwarded, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(forwarded)
	}
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 {
		host = host[:i]
	}
	return host
}

func parseBrowser(uaString string) string {
	if uaString == "" {
		return "Unknown"
	}
	ua := useragent.New(uaString)
	name, _ := ua.Browser()
	if name == "" {
		return "Unknown"
	}
	return name
}

func parseDevice(uaString string) string {
	if uaString == "" {
		return "Unknown"
	}
	ua := useragent.New(uaString)
	switch {
	case ua.Bot():
		return "Bot"
	case ua.Mobile():
		return "Mobile"
	default:
		return "Desktop"
	}
}

func categorizeReferrer(referrer string) string {
	if referrer == "" {
		return "direct"
	}
	u, err := url.Parse(referrer)
	if err != nil || u.Host == "" {
		return "direct"
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	switch {
	case strings.Contains(host, "google."):
		return "search"
	case strings.Contains(host, "bing.com"), strings.Contains(host, "duckduckgo.com"):
		return "search"
	case strings.Contains(host, "twitter.com"), strings.Contains(host, "x.com"),
		strings.Contains(host, "facebook.com"), strings.Contains(host, "linkedin.com"),
		strings.Contains(host, "reddit.com"), strings.Contains(host, "t.co"):
		return "social"
	default:
		return host
	}
}

// formatRelativeTime renders a display timestamp the feed shows under
// each video.
func formatRelativeTime(t time.Time, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "Just now"
	case d < time.Hour:
		return plural(int(d.Minutes()), "minute")
	case d < 24*time.Hour:
		return plural(int(d.Hours()), "hour")
	case d < 30*24*time.Hour:
		return plural(int(d.Hours()/24), "day")
	case d < 365*24*time.Hour:
		return plural(int(d.Hours()/(24*30)), "month")
	default:
		return plural(int(d.Hours()/(24*365)), "year")
	}
}

func plural(n int, unit string) string {
	if n <= 1 {
		n = 1
	}
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}
