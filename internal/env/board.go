package env

import (
	"math"
	"strings"
)

// EdgeWrap names the convention used when a step crosses the board edge
type EdgeWrap int

const (
	// WrapModular reduces each axis modulo its size: -1 re-enters at size-1
	// and size re-enters at 0.
	WrapModular EdgeWrap = iota
)

// Wrap is the boundary convention used by every movement and lookahead
const Wrap = WrapModular

// Cell is the label stored in one board cell
type Cell int

const (
	CellEmpty Cell = iota
	CellSnake
	CellFood
)

// Board is a toroidal width×height grid of cell labels. It is derived from
// the snake and food every tick and never drives movement.
type Board struct {
	Width  int
	Height int
	cells  []Cell
}

// NewBoard creates an empty board
func NewBoard(width, height int) *Board {
	return &Board{
		Width:  width,
		Height: height,
		cells:  make([]Cell, width*height),
	}
}

// Wrap maps p back onto the board using the Wrap convention
func (b *Board) Wrap(p Point) Point {
	return Point{X: wrapAxis(p.X, b.Width), Y: wrapAxis(p.Y, b.Height)}
}

func wrapAxis(v, size int) int {
	switch Wrap {
	case WrapModular:
		v %= size
		if v < 0 {
			v += size
		}
	}
	return v
}

// Clear marks every cell empty
func (b *Board) Clear() {
	for i := range b.cells {
		b.cells[i] = CellEmpty
	}
}

// Rebuild clears the board and paints body and food onto it
func (b *Board) Rebuild(body []Point, food Point) {
	b.Clear()
	b.Set(food, CellFood)
	for _, p := range body {
		b.Set(p, CellSnake)
	}
}

// At returns the label at p, wrapping p first
func (b *Board) At(p Point) Cell {
	p = b.Wrap(p)
	return b.cells[p.Y*b.Width+p.X]
}

// Set stores c at p, wrapping p first
func (b *Board) Set(p Point, c Cell) {
	p = b.Wrap(p)
	b.cells[p.Y*b.Width+p.X] = c
}

// Flatten writes the board row-major into dst as numeric labels
func (b *Board) Flatten(dst []float64) {
	for i, c := range b.cells {
		dst[i] = float64(c)
	}
}

// Free returns every cell not covered by body, row-major
func (b *Board) Free(body []Point) []Point {
	occupied := make(map[Point]bool, len(body))
	for _, p := range body {
		occupied[p] = true
	}
	free := make([]Point, 0, b.Width*b.Height-len(occupied))
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			p := Point{X: x, Y: y}
			if !occupied[p] {
				free = append(free, p)
			}
		}
	}
	return free
}

// Images returns target and its four toroidal translates
func (b *Board) Images(target Point) [5]Point {
	return [5]Point{
		target,
		{X: target.X + b.Width, Y: target.Y},
		{X: target.X - b.Width, Y: target.Y},
		{X: target.X, Y: target.Y + b.Height},
		{X: target.X, Y: target.Y - b.Height},
	}
}

// Closest returns the image of target nearest to from and its Euclidean distance
func (b *Board) Closest(from, target Point) (Point, float64) {
	best := target
	bestDist := math.Inf(1)
	for _, img := range b.Images(target) {
		d := math.Hypot(float64(from.X-img.X), float64(from.Y-img.Y))
		if d < bestDist {
			best, bestDist = img, d
		}
	}
	return best, bestDist
}

// String renders the board, one row per line
func (b *Board) String() string {
	var sb strings.Builder
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			switch b.cells[y*b.Width+x] {
			case CellSnake:
				sb.WriteByte('#')
			case CellFood:
				sb.WriteByte('*')
			default:
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
