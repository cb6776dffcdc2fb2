package video

import (
	"math"

	"github.com/chenBenjamin97/soccer-hud/pkg/utils"
)

//OwnershipResolver names the player closest to the ball as its owner
type OwnershipResolver struct {
	maxDistance float64
}

//NewOwnershipResolver builds a resolver that ignores players farther than maxDistance pixels
func NewOwnershipResolver(maxDistance float64) *OwnershipResolver {
	return &OwnershipResolver{maxDistance: maxDistance}
}

//Resolve returns nil when there is no ball, no player, or the closest player is farther
//than the max distance. A player exactly at the max distance still owns the ball with
//confidence 0.5; confidence grows linearly to 1.0 at distance 0.
func (r *OwnershipResolver) Resolve(ball *BallObservation, players []PlayerObservation) *PossessionClaim {
	if ball == nil || len(players) == 0 {
		return nil
	}

	minDistance := math.Inf(1)
	closest := -1
	for i, p := range players {
		if d := utils.Distance(ball.X, ball.Y, p.X, p.Y); d < minDistance {
			minDistance = d
			closest = i
		}
	}

	if closest < 0 || minDistance > r.maxDistance {
		return nil
	}

	return &PossessionClaim{
		PlayerID:   players[closest].ID,
		Distance:   minDistance,
		Confidence: utils.Clamp(1-minDistance/r.maxDistance, utils.MinPossessionConfidence, 1),
	}
}
