package utils

import "math"

//InSlice returns true if given string appears in given slice
func InSlice(lookingFor string, slice []string) bool {
	for _, s := range slice {
		if s == lookingFor {
			return true
		}
	}

	return false
}

//Clamp limits v to [lo, hi]
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

//Distance is the euclidean distance between (x1,y1) and (x2,y2)
func Distance(x1, y1, x2, y2 float64) float64 {
	return math.Hypot(x1-x2, y1-y2)
}

//ClipToFrame fixes box values in case they are out of frame's range
func ClipToFrame(x1, y1, x2, y2, frameWidth, frameHeight int) (int, int, int, int) {
	return clipInt(x1, frameWidth), clipInt(y1, frameHeight), clipInt(x2, frameWidth), clipInt(y2, frameHeight)
}

func clipInt(v, max int) int {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}
