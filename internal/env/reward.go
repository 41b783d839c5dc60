package env

// Reward values
const (
	RewardFood    = 1.0
	RewardDeath   = -1.0
	RewardCloser  = 0.1
	RewardFarther = -0.2
)

// Reward scores one tick. A capture wins over a collision; otherwise the
// shaping term compares the closest wrapped distance to food before and
// after the move.
func Reward(b *Board, prevHead, head, food Point, captured, done bool) float64 {
	if captured {
		return RewardFood
	}
	if done {
		return RewardDeath
	}
	_, oldDist := b.Closest(prevHead, food)
	_, newDist := b.Closest(head, food)
	if newDist < oldDist {
		return RewardCloser
	}
	return RewardFarther
}
