package style

import (
	"fmt"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/commongraph/graphview/pkg/graph"
)

// Grade is a letter rating from A (best) to E (worst).
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeE Grade = "E"
)

// Grades lists every grade, best first.
var Grades = []Grade{GradeA, GradeB, GradeC, GradeD, GradeE}

// Endpoints of the diverging rating scale.
const (
	scaleBest   = "#2e7d32"
	scaleMiddle = "#f9a825"
	scaleWorst  = "#c62828"
)

// RatingScale holds one color per grade, A first.
var RatingScale = mustGradient(scaleBest, scaleMiddle, scaleWorst, len(Grades))

// GradeOf converts a rating to a grade. Numeric ratings on the 1-5 scale are
// bucketed; letters are accepted case-insensitively. Absent and unrecognized
// ratings report false.
func GradeOf(r graph.Rating) (Grade, bool) {
	if score, ok := r.Score(); ok {
		return BucketScore(score), true
	}
	if letter, ok := r.Letter(); ok {
		g := Grade(strings.ToUpper(strings.TrimSpace(letter)))
		for _, known := range Grades {
			if g == known {
				return g, true
			}
		}
	}
	return "", false
}

// BucketScore maps a 1-5 score onto a grade.
func BucketScore(score float64) Grade {
	switch {
	case score >= 4.5:
		return GradeA
	case score >= 3.5:
		return GradeB
	case score >= 2.5:
		return GradeC
	case score >= 1.5:
		return GradeD
	default:
		return GradeE
	}
}

// Color returns the scale color of the grade.
func (g Grade) Color() string {
	for i, known := range Grades {
		if g == known {
			return RatingScale[i]
		}
	}
	return ""
}

// TriColorGradient returns n colors running from c1 through c2 to c3, with
// c2 at the middle index.
func TriColorGradient(c1, c2, c3 string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	var cs [3]colorful.Color
	for i, hex := range []string{c1, c2, c3} {
		c, err := colorful.Hex(hex)
		if err != nil {
			return nil, fmt.Errorf("invalid color %q: %w", hex, err)
		}
		cs[i] = c
	}

	out := make([]string, 0, n)
	mid := (n - 1) / 2
	for i := 0; i < n; i++ {
		var c colorful.Color
		if i <= mid {
			t := 0.0
			if mid > 0 {
				t = float64(i) / float64(mid)
			}
			c = cs[0].BlendRgb(cs[1], t)
		} else {
			t := float64(i-mid) / float64(n-1-mid)
			c = cs[1].BlendRgb(cs[2], t)
		}
		out = append(out, c.Hex())
	}
	return out, nil
}

func mustGradient(c1, c2, c3 string, n int) []string {
	out, err := TriColorGradient(c1, c2, c3, n)
	if err != nil {
		panic(err)
	}
	return out
}
