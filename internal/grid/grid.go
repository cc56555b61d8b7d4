// Package grid holds the tile map and the pathfinding used by room engines.
package grid

const (
	// TileWalkable and TileBlocked are the two legal tile values.
	TileWalkable = 0
	TileBlocked  = 1
)

// Point is a tile coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Grid is a rectangular tile map. Tiles is row-major: Tiles[y][x].
type Grid struct {
	Width  int
	Height int
	Tiles  [][]int
}

// New builds a grid from persisted tile data and normalizes the border:
// legacy rooms may carry blocked edge tiles, and the contract is that every
// border tile is walkable after load. The input slice is copied, never
// mutated, so persisted data stays untouched.
func New(width, height int, tiles [][]int) *Grid {
	g := &Grid{Width: width, Height: height, Tiles: make([][]int, height)}
	for y := 0; y < height; y++ {
		row := make([]int, width)
		if y < len(tiles) {
			copy(row, tiles[y])
		}
		g.Tiles[y] = row
	}
	for x := 0; x < width; x++ {
		g.Tiles[0][x] = TileWalkable
		g.Tiles[height-1][x] = TileWalkable
	}
	for y := 0; y < height; y++ {
		g.Tiles[y][0] = TileWalkable
		g.Tiles[y][width-1] = TileWalkable
	}
	return g
}

// NewOpen builds an all-walkable grid, used for the default canonical room.
func NewOpen(width, height int) *Grid {
	tiles := make([][]int, height)
	for y := range tiles {
		tiles[y] = make([]int, width)
	}
	return &Grid{Width: width, Height: height, Tiles: tiles}
}

// InBounds reports whether (x,y) lies on the map.
func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && x < g.Width && y >= 0 && y < g.Height
}

// Walkable reports whether (x,y) is on the map and not blocked.
func (g *Grid) Walkable(x, y int) bool {
	return g.InBounds(x, y) && g.Tiles[y][x] == TileWalkable
}

// SpawnPoint picks where a joining participant is placed: (0,0) when
// walkable, otherwise the first walkable tile in row-major order. Border
// normalization makes the first case succeed for any well-formed room; the
// (0,0) fallback only fires for degenerate maps.
func (g *Grid) SpawnPoint() Point {
	if g.Walkable(0, 0) {
		return Point{0, 0}
	}
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			if g.Tiles[y][x] == TileWalkable {
				return Point{x, y}
			}
		}
	}
	return Point{0, 0}
}
