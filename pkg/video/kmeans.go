package video

import (
	"math"
	"math/rand"
)

const kmeansMaxIter = 300

type rgb = [3]float64

func sqDist(a, b rgb) float64 {
	d0, d1, d2 := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return d0*d0 + d1*d1 + d2*d2
}

//nearest returns the index of the closest center; the first one wins ties
func nearest(p rgb, centers []rgb) (int, float64) {
	best, bestDist := 0, math.Inf(1)
	for i, c := range centers {
		if d := sqDist(p, c); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, bestDist
}

//kmeans runs Lloyd's algorithm from k-means++ seeds `restarts` times and keeps the
//run with the lowest inertia. Every random choice comes from rng.
func kmeans(points []rgb, k int, restarts int, rng *rand.Rand) ([]int, []rgb) {
	if restarts < 1 {
		restarts = 1
	}

	var bestLabels []int
	var bestCenters []rgb
	bestInertia := math.Inf(1)

	for run := 0; run < restarts; run++ {
		labels, centers, inertia := lloyd(points, seedCenters(points, k, rng))
		if inertia < bestInertia {
			bestLabels, bestCenters, bestInertia = labels, centers, inertia
		}
	}
	return bestLabels, bestCenters
}

func seedCenters(points []rgb, k int, rng *rand.Rand) []rgb {
	centers := make([]rgb, 0, k)
	centers = append(centers, points[rng.Intn(len(points))])

	dists := make([]float64, len(points))
	for len(centers) < k {
		total := 0.0
		for i, p := range points {
			_, d := nearest(p, centers)
			dists[i] = d
			total += d
		}

		if total == 0 { //every point sits on a center already
			centers = append(centers, points[rng.Intn(len(points))])
			continue
		}

		target := rng.Float64() * total
		next := len(points) - 1
		for i, d := range dists {
			target -= d
			if target < 0 {
				next = i
				break
			}
		}
		centers = append(centers, points[next])
	}
	return centers
}

func lloyd(points []rgb, centers []rgb) ([]int, []rgb, float64) {
	labels := make([]int, len(points))
	for i := range labels {
		labels[i] = -1
	}

	for iter := 0; iter < kmeansMaxIter; iter++ {
		changed := false
		for i, p := range points {
			if l, _ := nearest(p, centers); l != labels[i] {
				labels[i] = l
				changed = true
			}
		}
		if !changed {
			break
		}

		sums := make([]rgb, len(centers))
		counts := make([]int, len(centers))
		for i, p := range points {
			l := labels[i]
			sums[l][0] += p[0]
			sums[l][1] += p[1]
			sums[l][2] += p[2]
			counts[l]++
		}
		for c := range centers {
			if counts[c] == 0 { //empty cluster keeps its previous center
				continue
			}
			n := float64(counts[c])
			centers[c] = rgb{sums[c][0] / n, sums[c][1] / n, sums[c][2] / n}
		}
	}

	inertia := 0.0
	for i, p := range points {
		inertia += sqDist(p, centers[labels[i]])
	}
	return labels, centers, inertia
}
