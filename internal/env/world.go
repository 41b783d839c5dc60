package env

import (
	"fmt"

	"golang.org/x/exp/rand"
)

// WorldConfig holds the fixed layout of a world
type WorldConfig struct {
	Width       int
	Height      int
	StartLength int
	Start       Point
	Heading     Heading
	Obs         string
}

// World is the toroidal snake game. It owns the snake, the food and the
// derived board, and is the only thing that mutates them.
type World struct {
	cfg      WorldConfig
	features *FeatureExtractor
	board    *Board
	snake    *Snake
	food     Point

	// state is the encoding of the current board, reused as the next state
	// of a terminal tick
	state []float64

	active bool
	death  DeathReason
	tick   int
	fruits int
	reward float64

	rng *rand.Rand
}

// NewWorld creates a world and resets it. rng drives food placement.
func NewWorld(cfg WorldConfig, rng *rand.Rand) (*World, error) {
	if cfg.Width < 1 || cfg.Height < 1 || cfg.Width*cfg.Height < 2 {
		return nil, fmt.Errorf("env: board %dx%d too small", cfg.Width, cfg.Height)
	}
	if cfg.StartLength < 1 {
		return nil, fmt.Errorf("env: start length %d must be positive", cfg.StartLength)
	}
	if cfg.Start.X < 0 || cfg.Start.X >= cfg.Width || cfg.Start.Y < 0 || cfg.Start.Y >= cfg.Height {
		return nil, fmt.Errorf("env: start %v outside %dx%d board", cfg.Start, cfg.Width, cfg.Height)
	}
	features, err := NewFeatureExtractor(cfg.Obs, cfg.Width, cfg.Height)
	if err != nil {
		return nil, err
	}
	w := &World{
		cfg:      cfg,
		features: features,
		board:    NewBoard(cfg.Width, cfg.Height),
		rng:      rng,
	}
	w.Reset()
	return w, nil
}

// Reset starts a new episode and returns the initial observation
func (w *World) Reset() []float64 {
	w.tick = 0
	w.fruits = 0
	w.reward = 0
	w.death = DeathNone
	w.active = true

	w.snake = NewSnake(w.cfg.Start, w.cfg.Heading, w.cfg.StartLength)
	w.spawnFood()
	w.board.Rebuild(w.snake.Body, w.food)
	w.state = w.features.Extract(w)
	return w.state
}

// Step advances the world by one tick with the given relative action and
// returns the next observation, the reward and whether the episode ended.
// On a terminal tick the observation from before the move is returned.
func (w *World) Step(action Action) ([]float64, float64, bool, error) {
	if !w.active {
		return nil, 0, true, ErrTerminated
	}
	heading, err := Convert(w.snake.Heading, action)
	if err != nil {
		return nil, 0, false, err
	}

	prevHead := w.snake.Head()
	head := w.board.Wrap(prevHead.Add(heading.Vector()))
	w.snake.Heading = heading

	captured := head == w.food
	if captured {
		w.snake.Grow()
	}
	w.snake.Advance(head)

	done := w.snake.HitsSelf()
	reward := Reward(w.board, prevHead, head, w.food, captured, done)
	if done {
		w.death = DeathSelf
	}

	if captured {
		w.fruits++
		if !w.spawnFood() {
			done = true
			w.death = DeathBoardFull
		}
	}

	w.tick++
	w.reward += reward
	w.board.Rebuild(w.snake.Body, w.food)

	if done {
		w.active = false
		return w.state, reward, true, nil
	}
	w.state = w.features.Extract(w)
	return w.state, reward, false, nil
}

// spawnFood places food uniformly on a cell free of the snake. It returns
// false when no free cell is left.
func (w *World) spawnFood() bool {
	free := w.board.Free(w.snake.Body)
	if len(free) == 0 {
		return false
	}
	w.food = free[w.rng.Intn(len(free))]
	return true
}

// IsBlocked reports whether moving one step in the relative direction would
// land on the snake's body
func (w *World) IsBlocked(a Action) bool {
	heading, err := Convert(w.snake.Heading, a)
	if err != nil {
		return true
	}
	next := w.board.Wrap(w.snake.Head().Add(heading.Vector()))
	return w.board.At(next) == CellSnake
}

// Kill ends the episode from outside, e.g. on reaching the tick cap
func (w *World) Kill(reason DeathReason) {
	if !w.active {
		return
	}
	w.active = false
	w.death = reason
}

// Config returns the world layout
func (w *World) Config() WorldConfig { return w.cfg }

// StateSize returns the observation length
func (w *World) StateSize() int { return w.features.Size() }

// State returns the current observation
func (w *World) State() []float64 { return w.state }

// Snake returns the snake; callers must not mutate it
func (w *World) Snake() *Snake { return w.snake }

// Board returns the derived board; callers must not mutate it
func (w *World) Board() *Board { return w.board }

// Food returns the food position
func (w *World) Food() Point { return w.food }

// Active reports whether the episode is still running
func (w *World) Active() bool { return w.active }

// Tick returns the number of completed ticks in this episode
func (w *World) Tick() int { return w.tick }

// Fruits returns the number of captures in this episode
func (w *World) Fruits() int { return w.fruits }

// Stats returns the episode statistics
func (w *World) Stats(seed uint64) EpisodeStats {
	return EpisodeStats{
		Reward: w.reward,
		Fruits: w.fruits,
		Ticks:  w.tick,
		Length: w.snake.Len(),
		Death:  w.death,
		Seed:   seed,
	}
}
