package video

import "gocv.io/x/gocv"

//DetectOptions tunes one detector invocation. An empty Classes keeps every class.
type DetectOptions struct {
	Confidence float64
	IoU        float64
	InputSize  int
	Classes    []int
}

//Detector finds objects in a frame. Implementations must be safe to share across sessions.
type Detector interface {
	Detect(frame gocv.Mat, opts DetectOptions) ([]RawDetection, error)
}

//AllowsClass reports whether a class passes the options' class filter
func (o DetectOptions) AllowsClass(class int) bool {
	if len(o.Classes) == 0 {
		return true
	}
	for _, c := range o.Classes {
		if c == class {
			return true
		}
	}
	return false
}
