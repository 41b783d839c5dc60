package env

import (
	"fmt"
	"math"
)

// Observation modes
const (
	ObsEgo  = "ego"
	ObsFlat = "flat"
)

// egoDim is the length of the ego observation: angle plus three blocked flags
const egoDim = 4

// headingOffset rotates the raw food bearing into the snake's frame
var headingOffset = [4]float64{
	HeadingUp:    90,
	HeadingLeft:  -180,
	HeadingDown:  -90,
	HeadingRight: 0,
}

// FeatureExtractor builds observation vectors from a world
type FeatureExtractor struct {
	obsType string
	width   int
	height  int
}

// NewFeatureExtractor creates a feature extractor for the given observation
// type and board size
func NewFeatureExtractor(obsType string, width, height int) (*FeatureExtractor, error) {
	switch obsType {
	case ObsEgo, ObsFlat:
	default:
		return nil, fmt.Errorf("env: unknown observation type %q", obsType)
	}
	return &FeatureExtractor{obsType: obsType, width: width, height: height}, nil
}

// ObsDim returns the observation dimension for the given type
func ObsDim(obsType string, width, height int) int {
	if obsType == ObsFlat {
		return width * height
	}
	return egoDim
}

// Size returns the fixed observation length
func (f *FeatureExtractor) Size() int {
	return ObsDim(f.obsType, f.width, f.height)
}

// Extract builds a new observation vector for the current world state.
// The returned slice is owned by the caller.
func (f *FeatureExtractor) Extract(w *World) []float64 {
	obs := make([]float64, f.Size())
	switch f.obsType {
	case ObsFlat:
		w.board.Flatten(obs)
	default:
		f.extractEgo(w, obs)
	}
	return obs
}

// extractEgo: [angle to closest food image, left/forward/right blocked]
func (f *FeatureExtractor) extractEgo(w *World, obs []float64) {
	head := w.snake.Head()
	food, _ := w.board.Closest(head, w.food)
	obs[0] = FoodAngle(head, food, w.snake.Heading)
	for i, a := range Actions {
		obs[1+i] = boolToFloat(w.IsBlocked(a))
	}
}

// FoodAngle returns the bearing from head to food relative to heading,
// scaled into [-1, 1]. Zero means food straight ahead; magnitudes near one
// mean it is behind, with the sign giving the side. Food directly behind
// gives exactly 1, never -1.
func FoodAngle(head, food Point, heading Heading) float64 {
	rad := math.Atan2(float64(head.Y-food.Y), float64(head.X-food.X))
	angle := normDegrees(rad * 180 / math.Pi)
	angle = normDegrees(angle + headingOffset[heading])
	angle = normDegrees(angle + 180)
	if angle > 180 {
		return -1 - (-(angle - 180) / 180)
	}
	return angle / 180
}

func normDegrees(a float64) float64 {
	a = math.Mod(a, 360)
	if a < 0 {
		a += 360
	}
	return a
}

func boolToFloat(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}
