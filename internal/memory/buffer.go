// Package memory implements the experience replay buffer used by the
// trainer.
package memory

import (
	"errors"
	"fmt"

	"golang.org/x/exp/rand"

	"snakeai/internal/env"
)

// ErrInsufficientData is returned when a sample larger than the buffer is
// requested
var ErrInsufficientData = errors.New("memory: insufficient data")

// Transition is a single (s, a, r, s', terminal) step. The state slices are
// shared with the producer and must be treated as read-only.
type Transition struct {
	State     []float64
	Action    env.Action
	Reward    float64
	NextState []float64
	Terminal  bool
}

// Buffer is a fixed-capacity FIFO of transitions with uniform sampling
type Buffer struct {
	items []Transition
	head  int // index of the oldest transition once full
	size  int
	rng   *rand.Rand
}

// NewBuffer creates a buffer holding at most capacity transitions. rng drives
// sampling.
func NewBuffer(capacity int, rng *rand.Rand) (*Buffer, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("memory: capacity must be >= 1, got %d", capacity)
	}
	return &Buffer{
		items: make([]Transition, capacity),
		rng:   rng,
	}, nil
}

// Push stores t, evicting the oldest transition when full
func (b *Buffer) Push(t Transition) {
	capacity := len(b.items)
	if b.size < capacity {
		b.items[(b.head+b.size)%capacity] = t
		b.size++
		return
	}
	b.items[b.head] = t
	b.head = (b.head + 1) % capacity
}

// Len returns the number of stored transitions
func (b *Buffer) Len() int {
	return b.size
}

// Cap returns the buffer capacity
func (b *Buffer) Cap() int {
	return len(b.items)
}

// at returns the i-th oldest transition
func (b *Buffer) at(i int) Transition {
	return b.items[(b.head+i)%len(b.items)]
}

// Items returns the stored transitions from oldest to newest
func (b *Buffer) Items() []Transition {
	out := make([]Transition, b.size)
	for i := range out {
		out[i] = b.at(i)
	}
	return out
}

// Sample draws n distinct transitions uniformly at random
func (b *Buffer) Sample(n int) ([]Transition, error) {
	if n > b.size {
		return nil, fmt.Errorf("%w: want %d, have %d", ErrInsufficientData, n, b.size)
	}
	batch := make([]Transition, 0, n)
	for _, idx := range b.choose(n) {
		batch = append(batch, b.at(idx))
	}
	return batch, nil
}

// choose picks n distinct indices in [0, size) with Floyd's algorithm
func (b *Buffer) choose(n int) []int {
	picked := make(map[int]bool, n)
	order := make([]int, 0, n)
	for j := b.size - n; j < b.size; j++ {
		k := b.rng.Intn(j + 1)
		if picked[k] {
			k = j
		}
		picked[k] = true
		order = append(order, k)
	}
	return order
}
