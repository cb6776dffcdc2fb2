package video_test

import (
	"errors"

	"github.com/chenBenjamin97/soccer-hud/pkg/video"
	"gocv.io/x/gocv"
)

//scriptedAssociator replays one track list per Update call
type scriptedAssociator struct {
	script    [][]video.Track
	calls     int
	deletes   int
	err       error
	deleteErr error
	received  [][]video.AssociatorDetection
}

func (s *scriptedAssociator) Update(detections []video.AssociatorDetection, _ gocv.Mat) ([]video.Track, error) {
	s.received = append(s.received, detections)
	if s.err != nil {
		return nil, s.err
	}
	defer func() { s.calls++ }()
	if s.calls < len(s.script) {
		return s.script[s.calls], nil
	}
	return nil, nil
}

func (s *scriptedAssociator) DeleteAll() error {
	s.deletes++
	return s.deleteErr
}

//scriptedDetector returns fixed detections per pass, told apart by the class filter
type scriptedDetector struct {
	general []video.RawDetection
	ball    []video.RawDetection
	err     error
	calls   []video.DetectOptions
}

func (d *scriptedDetector) Detect(_ gocv.Mat, opts video.DetectOptions) ([]video.RawDetection, error) {
	d.calls = append(d.calls, opts)
	if d.err != nil {
		return nil, d.err
	}
	if len(opts.Classes) > 0 {
		return d.ball, nil
	}
	return d.general, nil
}

var errBoom = errors.New("boom")

func persons(n int) []video.PlayerObservation {
	out := make([]video.PlayerObservation, n)
	for i := range out {
		out[i] = video.PlayerObservation{ID: i, X: float64(i * 100), Y: 50, Width: 20, Height: 60, Team: video.Home}
	}
	return out
}
