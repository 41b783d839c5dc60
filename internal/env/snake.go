package env

// Snake is the ordered body (head at index 0), its heading and the length
// the body grows to.
type Snake struct {
	Body         []Point
	Heading      Heading
	TargetLength int
}

// NewSnake places a head-only snake at start. The body reaches length over
// the first ticks.
func NewSnake(start Point, heading Heading, length int) *Snake {
	body := make([]Point, 1, length+1)
	body[0] = start
	return &Snake{
		Body:         body,
		Heading:      heading,
		TargetLength: length,
	}
}

// Head returns the snake's head position
func (s *Snake) Head() Point {
	return s.Body[0]
}

// Tail returns the snake's tail position
func (s *Snake) Tail() Point {
	return s.Body[len(s.Body)-1]
}

// Len returns the current number of body segments
func (s *Snake) Len() int {
	return len(s.Body)
}

// Grow raises the target length by one
func (s *Snake) Grow() {
	s.TargetLength++
}

// Advance pushes head to the front and trims the tail down to TargetLength
func (s *Snake) Advance(head Point) {
	s.Body = append(s.Body, Point{})
	copy(s.Body[1:], s.Body)
	s.Body[0] = head
	if len(s.Body) > s.TargetLength {
		s.Body = s.Body[:s.TargetLength]
	}
}

// HitsSelf reports whether the head overlaps any other segment
func (s *Snake) HitsSelf() bool {
	head := s.Body[0]
	for _, p := range s.Body[1:] {
		if p == head {
			return true
		}
	}
	return false
}

// Occupies reports whether any segment is at p
func (s *Snake) Occupies(p Point) bool {
	for _, q := range s.Body {
		if q == p {
			return true
		}
	}
	return false
}
