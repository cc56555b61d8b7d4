package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requireContiguous checks that path is a legal walk: it starts adjacent to
// from, every step moves one tile (diagonals allowed), and every tile is
// walkable.
func requireContiguous(t *testing.T, g *Grid, from Point, path []Point) {
	t.Helper()
	prev := from
	for i, p := range path {
		dx, dy := p.X-prev.X, p.Y-prev.Y
		if dx < 0 {
			dx = -dx
		}
		if dy < 0 {
			dy = -dy
		}
		require.LessOrEqual(t, dx, 1, "step %d jumps horizontally", i)
		require.LessOrEqual(t, dy, 1, "step %d jumps vertically", i)
		require.False(t, dx == 0 && dy == 0, "step %d does not move", i)
		require.True(t, g.Walkable(p.X, p.Y), "step %d lands on blocked tile (%d,%d)", i, p.X, p.Y)
		prev = p
	}
}

func TestFindPathSameTile(t *testing.T) {
	g := NewOpen(5, 5)
	assert.Nil(t, g.FindPath(Point{2, 2}, Point{2, 2}))
}

func TestFindPathStraightLine(t *testing.T) {
	g := NewOpen(5, 5)
	path := g.FindPath(Point{0, 0}, Point{3, 0})
	require.Len(t, path, 3)
	assert.Equal(t, Point{3, 0}, path[2])
	requireContiguous(t, g, Point{0, 0}, path)
}

func TestFindPathUsesDiagonals(t *testing.T) {
	g := NewOpen(5, 5)

	// (0,0) -> (2,2) is two diagonal steps on an open map.
	path := g.FindPath(Point{0, 0}, Point{2, 2})
	require.Len(t, path, 2)
	assert.Equal(t, Point{2, 2}, path[1])

	// (0,0) -> (3,2): two diagonals plus one cardinal.
	path = g.FindPath(Point{0, 0}, Point{3, 2})
	require.Len(t, path, 3)
	assert.Equal(t, Point{3, 2}, path[2])
	requireContiguous(t, g, Point{0, 0}, path)
}

func TestFindPathAroundObstacle(t *testing.T) {
	// A vertical wall through the middle with a gap at the top row.
	g := &Grid{Width: 5, Height: 5, Tiles: [][]int{
		{0, 0, 0, 0, 0},
		{0, 0, 1, 0, 0},
		{0, 0, 1, 0, 0},
		{0, 0, 1, 0, 0},
		{0, 0, 1, 0, 0},
	}}
	from, to := Point{0, 4}, Point{4, 4}
	path := g.FindPath(from, to)
	require.NotEmpty(t, path)
	assert.Equal(t, to, path[len(path)-1])
	requireContiguous(t, g, from, path)
	for _, p := range path {
		// The only opening in the wall column is the gap at (2,0).
		if p.X == 2 {
			assert.Equal(t, 0, p.Y)
		}
	}
}

func TestFindPathNoCornerCutting(t *testing.T) {
	// Diagonal through a wall corner is forbidden: with (1,0) and (0,1)
	// blocked, (0,0) is sealed off from (1,1).
	g := &Grid{Width: 3, Height: 3, Tiles: [][]int{
		{0, 1, 0},
		{1, 0, 0},
		{0, 0, 0},
	}}
	assert.Nil(t, g.FindPath(Point{0, 0}, Point{1, 1}))
}

func TestFindPathCornerRoutesAround(t *testing.T) {
	// One blocked orthogonal neighbour allows no diagonal squeeze; the path
	// must step around the corner.
	g := &Grid{Width: 3, Height: 3, Tiles: [][]int{
		{0, 1, 0},
		{0, 0, 0},
		{0, 0, 0},
	}}
	path := g.FindPath(Point{0, 0}, Point{1, 1})
	require.NotEmpty(t, path)
	assert.Equal(t, Point{1, 1}, path[len(path)-1])
	requireContiguous(t, g, Point{0, 0}, path)
	// First step cannot be the diagonal because (1,0) is blocked.
	assert.Equal(t, Point{0, 1}, path[0])
}

func TestFindPathUnreachable(t *testing.T) {
	g := &Grid{Width: 5, Height: 5, Tiles: [][]int{
		{0, 0, 1, 0, 0},
		{0, 0, 1, 0, 0},
		{1, 1, 1, 0, 0},
		{0, 0, 0, 0, 0},
		{0, 0, 0, 0, 0},
	}}
	assert.Nil(t, g.FindPath(Point{0, 0}, Point{4, 4}))
}

func TestFindPathBlockedEndpoints(t *testing.T) {
	g := &Grid{Width: 3, Height: 3, Tiles: [][]int{
		{0, 0, 0},
		{0, 1, 0},
		{0, 0, 0},
	}}
	assert.Nil(t, g.FindPath(Point{0, 0}, Point{1, 1}))
	assert.Nil(t, g.FindPath(Point{1, 1}, Point{0, 0}))
}

func TestFindPathExcludesStart(t *testing.T) {
	g := NewOpen(4, 4)
	path := g.FindPath(Point{1, 1}, Point{3, 1})
	require.Len(t, path, 2)
	assert.NotContains(t, path, Point{1, 1})
}

func TestFindPathCostOptimal(t *testing.T) {
	// Straight-line cardinal distance 4 must not be replaced by a longer
	// zig-zag: 4 cardinal steps cost 40, any path with diagonals in both
	// directions costs more.
	g := NewOpen(9, 9)
	path := g.FindPath(Point{2, 4}, Point{6, 4})
	require.Len(t, path, 4)
	for _, p := range path {
		assert.Equal(t, 4, p.Y)
	}
}
