package validate

import (
	"fmt"
	"net/url"
)

// Text field length limits, the single source of truth for the API surface.
const (
	MaxTitleLength             = 500
	MaxDescriptionLength       = 2000
	MaxSourceDisplayNameLength = 100
	MaxSourceDescriptionLength = 500
	MaxSourceURLLength         = 2048
	MaxSlideHeadingLength      = 200
	MaxSlideBodyLength         = 5000
)

func checkLen(value string, max int, field string) string {
	if len(value) > max {
		return fmt.Sprintf("%s must be %d characters or fewer", field, max)
	}
	return ""
}

func Title(s string) string       { return checkLen(s, MaxTitleLength, "title") }
func Description(s string) string { return checkLen(s, MaxDescriptionLength, "description") }
func SourceDisplayName(s string) string {
	return checkLen(s, MaxSourceDisplayNameLength, "display name")
}
func SourceDescription(s string) string {
	return checkLen(s, MaxSourceDescriptionLength, "source description")
}

// SourceURL requires an absolute http(s) URL.
func SourceURL(s string) string {
	if s == "" {
		return "source URL is required"
	}
	if msg := checkLen(s, MaxSourceURLLength, "source URL"); msg != "" {
		return msg
	}
	u, err := url.Parse(s)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "source URL must be an absolute http or https URL"
	}
	return ""
}

// FieldLimits returns field names to max lengths for the /api/limits endpoint.
func FieldLimits() map[string]int {
	return map[string]int{
		"title":             MaxTitleLength,
		"description":       MaxDescriptionLength,
		"sourceDisplayName": MaxSourceDisplayNameLength,
		"sourceDescription": MaxSourceDescriptionLength,
		"sourceUrl":         MaxSourceURLLength,
		"slideHeading":      MaxSlideHeadingLength,
		"slideBody":         MaxSlideBodyLength,
	}
}
