package layout

import (
	"math"
	"sort"

	"github.com/commongraph/graphview/pkg/graph"
)

// Spacing configures gaps between nodes, ranks and the canvas edge.
type Spacing struct {
	NodeSep float64
	RankSep float64
	MarginX float64
	MarginY float64
}

// DefaultSpacing leaves enough room that default-sized nodes never touch.
var DefaultSpacing = Spacing{NodeSep: 50, RankSep: 100, MarginX: 20, MarginY: 20}

const (
	// edgeSep is the gap kept around the virtual vertices of long edges.
	edgeSep = 10
	// maxSweeps bounds crossing reduction; it also stops after
	// staleSweeps passes without improvement.
	maxSweeps   = 24
	staleSweeps = 4
	alignPasses = 4
)

// Box is a node to place, with its rendered size.
type Box struct {
	ID     string
	Width  float64
	Height float64
}

// Link is a directed connection between two boxes.
type Link struct {
	Source string
	Target string
}

// Placement is the computed location of one node.
type Placement struct {
	Center         graph.Position
	Size           graph.Dimensions
	SourcePosition graph.Anchor
	TargetPosition graph.Anchor
}

// TopLeft converts the center to the node's top-left corner.
func (p Placement) TopLeft() graph.Position {
	return graph.Position{
		X: p.Center.X - p.Size.Width/2,
		Y: p.Center.Y - p.Size.Height/2,
	}
}

// Result maps node id to placement.
type Result map[string]Placement

type edge struct{ from, to int }

// vertex is a node of the layered graph. Sizes and coordinates are in
// top-to-bottom space; horizontal directions are rotated at the end.
type vertex struct {
	id    string
	w, h  float64
	dummy bool
	rank  int
	order int
	x, y  float64
	in    []int
	out   []int
}

type layered struct {
	vs      []*vertex
	layers  [][]int
	spacing Spacing
}

// Compute places boxes in ranks that follow link direction. Links whose
// endpoints are missing, self loops and duplicates are ignored. Cycles are
// broken by reversing back edges for ranking only. Duplicate box ids keep
// the first occurrence.
func Compute(boxes []Box, links []Link, dir Direction, sp Spacing) Result {
	if !dir.Valid() {
		dir = DefaultDirection
	}

	g := &layered{spacing: sp}
	index := make(map[string]int, len(boxes))
	sizes := make(map[string]graph.Dimensions, len(boxes))
	for _, b := range boxes {
		if _, dup := index[b.ID]; dup {
			continue
		}
		w, h := b.Width, b.Height
		if dir.Horizontal() {
			w, h = h, w
		}
		index[b.ID] = len(g.vs)
		sizes[b.ID] = graph.Dimensions{Width: b.Width, Height: b.Height}
		g.vs = append(g.vs, &vertex{id: b.ID, w: w, h: h})
	}
	if len(g.vs) == 0 {
		return Result{}
	}

	edges := collectEdges(index, links)
	edges = breakCycles(len(g.vs), edges)
	g.assignRanks(edges)
	g.split(edges)
	g.initOrder()
	g.reduceCrossings()
	g.assignCoordinates()

	return g.result(dir, sizes)
}

func collectEdges(index map[string]int, links []Link) []edge {
	seen := make(map[edge]bool, len(links))
	out := make([]edge, 0, len(links))
	for _, l := range links {
		u, okU := index[l.Source]
		v, okV := index[l.Target]
		if !okU || !okV || u == v {
			continue
		}
		e := edge{u, v}
		if seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}

// breakCycles reverses every edge that closes a cycle during a depth-first
// walk, visiting vertices and edges in input order.
func breakCycles(n int, edges []edge) []edge {
	adj := make([][]int, n)
	for i, e := range edges {
		adj[e.from] = append(adj[e.from], i)
	}

	const (
		unvisited = iota
		active
		done
	)
	state := make([]int, n)
	reversed := make([]bool, len(edges))

	var visit func(u int)
	visit = func(u int) {
		state[u] = active
		for _, i := range adj[u] {
			v := edges[i].to
			switch state[v] {
			case active:
				reversed[i] = true
			case unvisited:
				visit(v)
			}
		}
		state[u] = done
	}
	for u := 0; u < n; u++ {
		if state[u] == unvisited {
			visit(u)
		}
	}

	seen := make(map[edge]bool, len(edges))
	out := make([]edge, 0, len(edges))
	for i, e := range edges {
		if reversed[i] {
			e = edge{e.to, e.from}
		}
		if seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}

// assignRanks uses longest path from the sources, then pulls each source
// down to just above its nearest successor so short chains hang close to
// where they join.
func (g *layered) assignRanks(edges []edge) {
	n := len(g.vs)
	succ := make([][]int, n)
	indeg := make([]int, n)
	for _, e := range edges {
		succ[e.from] = append(succ[e.from], e.to)
		indeg[e.to]++
	}

	topo := make([]int, 0, n)
	queue := make([]int, 0, n)
	for v := 0; v < n; v++ {
		if indeg[v] == 0 {
			queue = append(queue, v)
		}
	}
	remaining := append([]int(nil), indeg...)
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		topo = append(topo, u)
		for _, v := range succ[u] {
			if r := g.vs[u].rank + 1; r > g.vs[v].rank {
				g.vs[v].rank = r
			}
			remaining[v]--
			if remaining[v] == 0 {
				queue = append(queue, v)
			}
		}
	}

	for i := len(topo) - 1; i >= 0; i-- {
		u := topo[i]
		if indeg[u] != 0 || len(succ[u]) == 0 {
			continue
		}
		lowest := math.MaxInt
		for _, v := range succ[u] {
			lowest = min(lowest, g.vs[v].rank)
		}
		g.vs[u].rank = lowest - 1
	}
}

// split links adjacent ranks directly and threads longer edges through
// virtual vertices, one per skipped rank.
func (g *layered) split(edges []edge) {
	for _, e := range edges {
		from := e.from
		for r := g.vs[e.from].rank + 1; r < g.vs[e.to].rank; r++ {
			d := len(g.vs)
			g.vs = append(g.vs, &vertex{dummy: true, rank: r})
			g.connect(from, d)
			from = d
		}
		g.connect(from, e.to)
	}

	maxRank := 0
	for _, v := range g.vs {
		maxRank = max(maxRank, v.rank)
	}
	g.layers = make([][]int, maxRank+1)
}

func (g *layered) connect(u, v int) {
	g.vs[u].out = append(g.vs[u].out, v)
	g.vs[v].in = append(g.vs[v].in, u)
}

// initOrder fills each rank in depth-first discovery order, which keeps
// connected vertices near each other before any sweep runs.
func (g *layered) initOrder() {
	visited := make([]bool, len(g.vs))
	var visit func(u int)
	visit = func(u int) {
		if visited[u] {
			return
		}
		visited[u] = true
		r := g.vs[u].rank
		g.vs[u].order = len(g.layers[r])
		g.layers[r] = append(g.layers[r], u)
		for _, v := range g.vs[u].out {
			visit(v)
		}
	}
	for u := range g.vs {
		if len(g.vs[u].in) == 0 {
			visit(u)
		}
	}
	for u := range g.vs {
		visit(u)
	}
}

// reduceCrossings alternates downward and upward barycenter sweeps and keeps
// the ordering with the fewest crossings seen.
func (g *layered) reduceCrossings() {
	best := g.snapshot()
	bestCount := g.crossings()

	for i, stale := 0, 0; i < maxSweeps && stale < staleSweeps && bestCount > 0; i++ {
		if i%2 == 0 {
			for r := 1; r < len(g.layers); r++ {
				g.sortLayer(r, true)
			}
		} else {
			for r := len(g.layers) - 2; r >= 0; r-- {
				g.sortLayer(r, false)
			}
		}

		if c := g.crossings(); c < bestCount {
			best, bestCount, stale = g.snapshot(), c, 0
		} else {
			stale++
		}
	}

	g.layers = best
	for _, layer := range g.layers {
		for i, v := range layer {
			g.vs[v].order = i
		}
	}
}

func (g *layered) sortLayer(r int, down bool) {
	layer := g.layers[r]
	bary := make(map[int]float64, len(layer))
	for _, v := range layer {
		nbrs := g.vs[v].out
		if down {
			nbrs = g.vs[v].in
		}
		if len(nbrs) == 0 {
			bary[v] = float64(g.vs[v].order)
			continue
		}
		sum := 0.0
		for _, u := range nbrs {
			sum += float64(g.vs[u].order)
		}
		bary[v] = sum / float64(len(nbrs))
	}
	sort.SliceStable(layer, func(i, j int) bool { return bary[layer[i]] < bary[layer[j]] })
	for i, v := range layer {
		g.vs[v].order = i
	}
}

func (g *layered) crossings() int {
	total := 0
	for r := 0; r+1 < len(g.layers); r++ {
		type seg struct{ a, b int }
		var segs []seg
		for _, u := range g.layers[r] {
			for _, v := range g.vs[u].out {
				segs = append(segs, seg{g.vs[u].order, g.vs[v].order})
			}
		}
		for i := range segs {
			for j := i + 1; j < len(segs); j++ {
				if (segs[i].a-segs[j].a)*(segs[i].b-segs[j].b) < 0 {
					total++
				}
			}
		}
	}
	return total
}

func (g *layered) snapshot() [][]int {
	out := make([][]int, len(g.layers))
	for i, layer := range g.layers {
		out[i] = append([]int(nil), layer...)
	}
	return out
}

// assignCoordinates stacks ranks along y and packs each rank along x, then
// nudges vertices toward the mean of their neighbours without breaking the
// rank order or the minimum separation.
func (g *layered) assignCoordinates() {
	sp := g.spacing

	y := 0.0
	for _, layer := range g.layers {
		if len(layer) == 0 {
			continue
		}
		height := 0.0
		for _, v := range layer {
			height = max(height, g.vs[v].h)
		}
		for _, v := range layer {
			g.vs[v].y = y + height/2
		}
		y += height + sp.RankSep
	}

	for _, layer := range g.layers {
		cursor := 0.0
		for i, v := range layer {
			if i > 0 {
				cursor += g.gap(layer[i-1], v)
			}
			g.vs[v].x = cursor
		}
		shift := cursor / 2
		for _, v := range layer {
			g.vs[v].x -= shift
		}
	}

	for pass := 0; pass < alignPasses; pass++ {
		down := pass%2 == 0
		if down {
			for r := 1; r < len(g.layers); r++ {
				g.align(r, true)
			}
		} else {
			for r := len(g.layers) - 2; r >= 0; r-- {
				g.align(r, false)
			}
		}
	}
}

// gap is the minimum center distance between two neighbours in a rank.
func (g *layered) gap(a, b int) float64 {
	va, vb := g.vs[a], g.vs[b]
	sep := g.spacing.NodeSep
	if va.dummy || vb.dummy {
		sep = edgeSep
	}
	return (va.w+vb.w)/2 + sep
}

func (g *layered) align(r int, down bool) {
	layer := g.layers[r]
	if len(layer) == 0 {
		return
	}
	want := make([]float64, len(layer))
	for i, v := range layer {
		nbrs := g.vs[v].out
		if down {
			nbrs = g.vs[v].in
		}
		if len(nbrs) == 0 {
			want[i] = g.vs[v].x
			continue
		}
		sum := 0.0
		for _, u := range nbrs {
			sum += g.vs[u].x
		}
		want[i] = sum / float64(len(nbrs))
	}

	// Pushing right from the left and left from the right both satisfy the
	// separation constraints, and so does their mean.
	right := make([]float64, len(layer))
	left := make([]float64, len(layer))
	for i := range layer {
		right[i] = want[i]
		if i > 0 {
			right[i] = max(want[i], right[i-1]+g.gap(layer[i-1], layer[i]))
		}
	}
	for i := len(layer) - 1; i >= 0; i-- {
		left[i] = want[i]
		if i < len(layer)-1 {
			left[i] = min(want[i], left[i+1]-g.gap(layer[i], layer[i+1]))
		}
	}
	for i, v := range layer {
		g.vs[v].x = (right[i] + left[i]) / 2
	}
}

// result translates the drawing to the margins and rotates it into the
// requested direction.
func (g *layered) result(dir Direction, sizes map[string]graph.Dimensions) Result {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, v := range g.vs {
		if v.dummy {
			continue
		}
		minX = min(minX, v.x-v.w/2)
		maxX = max(maxX, v.x+v.w/2)
		minY = min(minY, v.y-v.h/2)
		maxY = max(maxY, v.y+v.h/2)
	}

	dx := g.spacing.MarginX - minX
	dy := g.spacing.MarginY - minY
	if dir.Horizontal() {
		dx = g.spacing.MarginY - minX
		dy = g.spacing.MarginX - minY
	}
	minX, maxX = minX+dx, maxX+dx
	minY, maxY = minY+dy, maxY+dy

	source, target := dir.Anchors()
	out := make(Result)
	for _, v := range g.vs {
		if v.dummy {
			continue
		}
		x, y := v.x+dx, v.y+dy
		switch dir {
		case BottomTop:
			y = minY + maxY - y
		case LeftRight:
			x, y = y, x
		case RightLeft:
			x, y = minY+maxY-y, x
		}
		out[v.id] = Placement{
			Center:         graph.Position{X: x, Y: y},
			Size:           sizes[v.id],
			SourcePosition: source,
			TargetPosition: target,
		}
	}
	return out
}
