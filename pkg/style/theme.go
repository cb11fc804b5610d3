package style

import "strings"

// Theme selects the neutral colors used when nothing else applies.
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// ParseTheme normalises a theme name; unknown values become system.
func ParseTheme(s string) Theme {
	switch Theme(strings.ToLower(strings.TrimSpace(s))) {
	case ThemeLight:
		return ThemeLight
	case ThemeDark:
		return ThemeDark
	default:
		return ThemeSystem
	}
}

// palette holds theme defaults.
type palette struct {
	Neutral string
	Border  string
	Stroke  string
}

// A headless process has no system preference, so system renders as light.
func (t Theme) palette() palette {
	if t == ThemeDark {
		return palette{Neutral: "#5c5c66", Border: "#e2e2e2", Stroke: "#9a9aa5"}
	}
	return palette{Neutral: "#b1b1b7", Border: "#1a192b", Stroke: "#6f6f7a"}
}

// DefaultColor is the theme's neutral node color.
func (t Theme) DefaultColor() string {
	return t.palette().Neutral
}
