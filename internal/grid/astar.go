package grid

import "container/heap"

// Integer step costs: 10 per cardinal step, 14 (≈10·√2) per diagonal step.
const (
	costCardinal = 10
	costDiagonal = 14
)

var neighbours = [8]struct{ dx, dy int }{
	{0, -1}, {0, 1}, {-1, 0}, {1, 0},
	{-1, -1}, {1, -1}, {-1, 1}, {1, 1},
}

type pathNode struct {
	p      Point
	f, g   int
	seq    int // insertion order, breaks f ties FIFO
	parent *pathNode
}

type nodeHeap []*pathNode

func (h nodeHeap) Len() int { return len(h) }
func (h nodeHeap) Less(i, j int) bool {
	if h[i].f != h[j].f {
		return h[i].f < h[j].f
	}
	return h[i].seq < h[j].seq
}
func (h nodeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *nodeHeap) Push(x interface{}) { *h = append(*h, x.(*pathNode)) }
func (h *nodeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	node := old[n-1]
	*h = old[:n-1]
	return node
}

func manhattan(a, b Point) int {
	dx := a.X - b.X
	if dx < 0 {
		dx = -dx
	}
	dy := a.Y - b.Y
	if dy < 0 {
		dy = -dy
	}
	return (dx + dy) * costCardinal
}

// FindPath runs A* over the 8-connected grid and returns the steps strictly
// after from, ending at to. It returns nil when from == to or when no path
// exists; callers distinguish the two by comparing endpoints. Diagonal steps
// are taken only when both orthogonal neighbours sharing the corner are
// walkable, so paths never cut through wall corners.
func (g *Grid) FindPath(from, to Point) []Point {
	if from == to {
		return nil
	}
	if !g.Walkable(from.X, from.Y) || !g.Walkable(to.X, to.Y) {
		return nil
	}

	open := &nodeHeap{}
	heap.Init(open)
	seq := 0
	start := &pathNode{p: from, g: 0, f: manhattan(from, to)}
	heap.Push(open, start)

	best := map[Point]int{from: 0}
	closed := map[Point]bool{}

	for open.Len() > 0 {
		cur := heap.Pop(open).(*pathNode)
		if cur.p == to {
			return reconstruct(cur)
		}
		if closed[cur.p] {
			continue
		}
		closed[cur.p] = true

		for _, n := range neighbours {
			nx, ny := cur.p.X+n.dx, cur.p.Y+n.dy
			if !g.Walkable(nx, ny) {
				continue
			}
			cost := costCardinal
			if n.dx != 0 && n.dy != 0 {
				// No squeezing between wall corners.
				if !g.Walkable(cur.p.X+n.dx, cur.p.Y) || !g.Walkable(cur.p.X, cur.p.Y+n.dy) {
					continue
				}
				cost = costDiagonal
			}
			np := Point{nx, ny}
			ng := cur.g + cost
			if prev, seen := best[np]; seen && prev <= ng {
				continue
			}
			best[np] = ng
			seq++
			heap.Push(open, &pathNode{
				p:      np,
				g:      ng,
				f:      ng + manhattan(np, to),
				seq:    seq,
				parent: cur,
			})
		}
	}
	return nil
}

func reconstruct(end *pathNode) []Point {
	var rev []Point
	for n := end; n.parent != nil; n = n.parent {
		rev = append(rev, n.p)
	}
	path := make([]Point, len(rev))
	for i, p := range rev {
		path[len(rev)-1-i] = p
	}
	return path
}
