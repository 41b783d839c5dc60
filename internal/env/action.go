package env

import "fmt"

// Heading is the snake's absolute direction of travel
type Heading int

const (
	HeadingUp Heading = iota
	HeadingRight
	HeadingDown
	HeadingLeft
)

// Action represents a relative action
type Action int

const (
	ActionLeft Action = iota
	ActionForward
	ActionRight
)

// NumActions is the size of the relative action space
const NumActions = 3

// Actions lists every relative action in index order
var Actions = [NumActions]Action{ActionLeft, ActionForward, ActionRight}

// Point represents a coordinate on the grid
type Point struct {
	X, Y int
}

// Add returns p translated by q, without wrapping
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// vectors maps a heading to its unit movement. Y grows downwards.
var vectors = [4]Point{
	HeadingUp:    {X: 0, Y: -1},
	HeadingRight: {X: 1, Y: 0},
	HeadingDown:  {X: 0, Y: 1},
	HeadingLeft:  {X: -1, Y: 0},
}

// turns[h][a] is the heading after taking relative action a while facing h.
// Left is 90° counter-clockwise, right is 90° clockwise.
var turns = [4][NumActions]Heading{
	HeadingUp:    {ActionLeft: HeadingLeft, ActionForward: HeadingUp, ActionRight: HeadingRight},
	HeadingRight: {ActionLeft: HeadingUp, ActionForward: HeadingRight, ActionRight: HeadingDown},
	HeadingDown:  {ActionLeft: HeadingRight, ActionForward: HeadingDown, ActionRight: HeadingLeft},
	HeadingLeft:  {ActionLeft: HeadingDown, ActionForward: HeadingLeft, ActionRight: HeadingUp},
}

// Valid reports whether a is one of the three relative actions
func (a Action) Valid() bool {
	return a >= ActionLeft && a <= ActionRight
}

func (a Action) String() string {
	switch a {
	case ActionLeft:
		return "left"
	case ActionForward:
		return "forward"
	case ActionRight:
		return "right"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Vector returns the unit movement for h
func (h Heading) Vector() Point {
	return vectors[h]
}

func (h Heading) String() string {
	switch h {
	case HeadingUp:
		return "up"
	case HeadingRight:
		return "right"
	case HeadingDown:
		return "down"
	case HeadingLeft:
		return "left"
	default:
		return fmt.Sprintf("heading(%d)", int(h))
	}
}

// Convert returns the heading reached by applying a relative action to h.
// It returns ErrInvalidAction for anything outside the relative action set.
func Convert(h Heading, a Action) (Heading, error) {
	if !a.Valid() {
		return h, fmt.Errorf("%w: %d", ErrInvalidAction, int(a))
	}
	return turns[h][a], nil
}
