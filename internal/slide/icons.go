package slide

// List-slide items reference icons by name. The accepted set is closed;
// anything else renders the fallback glyph.
var iconGlyphs = map[string]string{
	"check-circle":   "✓",
	"x-circle":       "✗",
	"alert-triangle": "⚠",
	"info":           "ℹ",
	"star":           "★",
	"heart":          "♥",
	"zap":            "⚡",
	"trending-up":    "↗",
	"trending-down":  "↘",
	"arrow-right":    "→",
	"clock":          "⏱",
	"calendar":       "▤",
	"target":         "◎",
	"flag":           "⚑",
	"lightbulb":      "✦",
	"rocket":         "➤",
	"book":           "▣",
	"link":           "⛓",
	"globe":          "⊕",
	"users":          "◉",
	"dollar-sign":    "$",
	"percent":        "%",
}

const fallbackGlyph = "•"

func iconGlyph(name string) string {
	if g, ok := iconGlyphs[name]; ok {
		return g
	}
	return fallbackGlyph
}

// Preset icon colors; a raw hex value passes through untouched.
var iconColors = map[string]string{
	"blue":    "#3b82f6",
	"green":   "#22c55e",
	"red":     "#ef4444",
	"purple":  "#a855f7",
	"yellow":  "#eab308",
	"pink":    "#ec4899",
	"emerald": "#10b981",
	"amber":   "#f59e0b",
}

const defaultIconColor = "#94a3b8"

func iconColor(name string) string {
	if c, ok := iconColors[name]; ok {
		return c
	}
	if len(name) == 7 && name[0] == '#' {
		for _, r := range name[1:] {
			switch {
			case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
			default:
				return defaultIconColor
			}
		}
		return name
	}
	return defaultIconColor
}
