package layout

import (
	"strings"

	"github.com/commongraph/graphview/pkg/graph"
)

// Direction is the flow of ranks across the canvas.
type Direction string

const (
	TopBottom Direction = "TB"
	BottomTop Direction = "BT"
	LeftRight Direction = "LR"
	RightLeft Direction = "RL"

	DefaultDirection = LeftRight
)

// Directions lists every supported direction.
var Directions = []Direction{TopBottom, BottomTop, LeftRight, RightLeft}

// ParseDirection accepts TB, BT, LR or RL in any case.
func ParseDirection(s string) (Direction, bool) {
	d := Direction(strings.ToUpper(strings.TrimSpace(s)))
	return d, d.Valid()
}

func (d Direction) Valid() bool {
	switch d {
	case TopBottom, BottomTop, LeftRight, RightLeft:
		return true
	}
	return false
}

// Horizontal reports whether ranks advance along the x axis.
func (d Direction) Horizontal() bool {
	return d == LeftRight || d == RightLeft
}

// Anchors returns the sides where edges leave (source) and enter (target)
// every node for this direction.
func (d Direction) Anchors() (source, target graph.Anchor) {
	switch d {
	case TopBottom:
		return graph.AnchorBottom, graph.AnchorTop
	case BottomTop:
		return graph.AnchorTop, graph.AnchorBottom
	case RightLeft:
		return graph.AnchorLeft, graph.AnchorRight
	default:
		return graph.AnchorRight, graph.AnchorLeft
	}
}

// Next cycles TB -> BT -> LR -> RL -> TB.
func (d Direction) Next() Direction {
	for i, known := range Directions {
		if d == known {
			return Directions[(i+1)%len(Directions)]
		}
	}
	return DefaultDirection
}
