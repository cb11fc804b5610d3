package style

import (
	"strings"

	"github.com/commongraph/graphview/pkg/graph"
	"github.com/commongraph/graphview/pkg/platform"
)

// ColorBy selects what drives element color.
type ColorBy string

const (
	ColorByType   ColorBy = "type"
	ColorByRating ColorBy = "rating"
	ColorByNone   ColorBy = ""
)

// ParseColorBy normalises a color mode; unknown values disable coloring.
func ParseColorBy(s string) ColorBy {
	switch ColorBy(strings.ToLower(strings.TrimSpace(s))) {
	case ColorByType:
		return ColorByType
	case ColorByRating:
		return ColorByRating
	default:
		return ColorByNone
	}
}

// Kind distinguishes node and edge inputs.
type Kind string

const (
	KindNode Kind = "node"
	KindEdge Kind = "edge"
)

// ColorInput is everything a color rule may look at.
type ColorInput struct {
	Kind    Kind
	Type    string
	Def     platform.TypeDef
	Known   bool // Def came from config
	Rating  graph.Rating
	ColorBy ColorBy
}

// ColorRule yields a color or reports that it has none.
type ColorRule func(in ColorInput) (string, bool)

// TypeColor uses the type's configured color when coloring by type.
func TypeColor(in ColorInput) (string, bool) {
	if in.ColorBy != ColorByType || !in.Known || in.Def.Style.Color == "" {
		return "", false
	}
	return in.Def.Style.Color, true
}

// RatingColor uses the rating scale when coloring by rating.
func RatingColor(in ColorInput) (string, bool) {
	if in.ColorBy != ColorByRating {
		return "", false
	}
	g, ok := GradeOf(in.Rating)
	if !ok {
		return "", false
	}
	return g.Color(), true
}

// ThemeDefault always yields the theme's neutral color.
func ThemeDefault(theme Theme) ColorRule {
	p := theme.palette()
	return func(in ColorInput) (string, bool) {
		if in.Kind == KindEdge {
			return p.Stroke, true
		}
		return p.Neutral, true
	}
}

// DefaultCascade is type color, then rating color, then theme default.
func DefaultCascade(theme Theme) []ColorRule {
	return []ColorRule{TypeColor, RatingColor, ThemeDefault(theme)}
}

// resolveColor returns the first color produced by rules.
func resolveColor(rules []ColorRule, in ColorInput) string {
	for _, rule := range rules {
		if c, ok := rule(in); ok && c != "" {
			return c
		}
	}
	return ""
}
