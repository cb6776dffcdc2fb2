package video

import (
	"math"
	"math/rand"

	"github.com/chenBenjamin97/soccer-hud/pkg/utils"
)

//TeamClassifier splits the uniform colors of one frame into team clusters.
//Each frame is clustered on its own with a fixed seed. Unless label stabilization is
//on, cluster indices are not reconciled with the previous frame, so home and away can
//swap between frames (after a camera cut for instance) while the jerseys stay the same.
type TeamClassifier struct {
	teams     int
	seed      int64
	restarts  int
	stabilize bool

	centers []rgb //centers of the last clustered frame
}

type TeamOption func(*TeamClassifier)

func WithTeamCount(n int) TeamOption {
	return func(c *TeamClassifier) {
		if n > 0 {
			c.teams = n
		}
	}
}

func WithClusterSeed(seed int64) TeamOption {
	return func(c *TeamClassifier) { c.seed = seed }
}

func WithClusterRestarts(n int) TeamOption {
	return func(c *TeamClassifier) {
		if n > 0 {
			c.restarts = n
		}
	}
}

//WithLabelStabilization permutes each frame's labels to follow the previous frame's centers
func WithLabelStabilization(on bool) TeamOption {
	return func(c *TeamClassifier) { c.stabilize = on }
}

func NewTeamClassifier(opts ...TeamOption) *TeamClassifier {
	c := &TeamClassifier{
		teams:    utils.TeamCount,
		seed:     42,
		restarts: 10,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

//Classify returns a cluster label per color and the cluster centers (RGB).
//With fewer colors than teams every color gets label 0 and no centers are returned.
func (c *TeamClassifier) Classify(colors [][3]int) ([]int, [][3]float64) {
	labels := make([]int, len(colors))
	if len(colors) < c.teams {
		return labels, nil
	}

	points := make([]rgb, len(colors))
	for i, col := range colors {
		points[i] = rgb{float64(col[0]), float64(col[1]), float64(col[2])}
	}

	labels, centers := kmeans(points, c.teams, c.restarts, rand.New(rand.NewSource(c.seed)))

	if c.stabilize && len(c.centers) == len(centers) {
		perm := matchCenters(centers, c.centers)
		for i := range labels {
			labels[i] = perm[labels[i]]
		}
		reordered := make([]rgb, len(centers))
		for i, center := range centers {
			reordered[perm[i]] = center
		}
		centers = reordered
	}
	c.centers = centers

	out := make([][3]float64, len(centers))
	for i, center := range centers {
		out[i] = center
	}
	return labels, out
}

//Centers returns the centers of the last clustered frame, nil before the first one
func (c *TeamClassifier) Centers() [][3]float64 {
	if c.centers == nil {
		return nil
	}
	out := make([][3]float64, len(c.centers))
	for i, center := range c.centers {
		out[i] = center
	}
	return out
}

//Reset forgets the previous frame's centers
func (c *TeamClassifier) Reset() {
	c.centers = nil
}

//matchCenters returns perm where perm[i] is the previous label closest to current center i,
//minimizing the summed distance over all assignments. Team counts are tiny, so every
//permutation is tried.
func matchCenters(current, previous []rgb) []int {
	n := len(current)
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}

	best := append([]int(nil), perm...)
	bestCost := math.Inf(1)

	var walk func(int)
	walk = func(pos int) {
		if pos == n {
			cost := 0.0
			for i, j := range perm {
				cost += math.Sqrt(sqDist(current[i], previous[j]))
			}
			if cost < bestCost {
				bestCost = cost
				copy(best, perm)
			}
			return
		}
		for i := pos; i < n; i++ {
			perm[pos], perm[i] = perm[i], perm[pos]
			walk(pos + 1)
			perm[pos], perm[i] = perm[i], perm[pos]
		}
	}
	walk(0)
	return best
}
