package detection

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/chenBenjamin97/soccer-hud/pkg/video"
	. "github.com/smartystreets/goconvey/convey"
	"gocv.io/x/gocv"
)

//row builds one YOLOv8 candidate with three classes
func row(cx, cy, w, h float32, scores ...float32) []float32 {
	return append([]float32{cx, cy, w, h}, scores...)
}

func TestDecodeOutput(t *testing.T) {
	Convey("Given raw YOLOv8 rows", t, func() {
		var data []float32
		data = append(data, row(100, 100, 20, 40, 0.9, 0.05, 0.01)...)
		data = append(data, row(300, 200, 10, 10, 0.1, 0.02, 0.35)...)
		data = append(data, row(50, 50, 10, 10, 0.2, 0.1, 0.1)...)

		Convey("When decoding with a 0.3 floor and no class filter at scale 2", func() {
			out := decodeOutput(data, 3, 7, 2, 2, video.DetectOptions{Confidence: 0.3})

			Convey("Then weak rows are dropped and boxes are scaled to the frame", func() {
				So(len(out), ShouldEqual, 2)
				So(out[0].Class, ShouldEqual, 0)
				So(out[0].Box, ShouldResemble, video.Box{X1: 180, Y1: 160, X2: 220, Y2: 240})
				So(out[0].Confidence, ShouldAlmostEqual, 0.9, 1e-6)
				So(out[1].Class, ShouldEqual, 2)
			})
		})

		Convey("When decoding with a class filter", func() {
			out := decodeOutput(data, 3, 7, 1, 1, video.DetectOptions{Confidence: 0.1, Classes: []int{2}})

			Convey("Then only that class survives", func() {
				So(len(out), ShouldEqual, 1)
				So(out[0].Class, ShouldEqual, 2)
			})
		})
	})
}

func TestSuppress(t *testing.T) {
	Convey("Given overlapping boxes of two classes", t, func() {
		dets := []video.RawDetection{
			{Class: 0, Box: video.Box{X1: 0, Y1: 0, X2: 100, Y2: 100}, Confidence: 0.9},
			{Class: 0, Box: video.Box{X1: 5, Y1: 5, X2: 100, Y2: 100}, Confidence: 0.8},
			{Class: 32, Box: video.Box{X1: 5, Y1: 5, X2: 100, Y2: 100}, Confidence: 0.7},
		}

		Convey("When suppressing at IoU 0.4", func() {
			out := suppress(dets, video.DetectOptions{Confidence: 0.1, IoU: 0.4})

			Convey("Then the weaker duplicate of a class is removed but other classes stay", func() {
				So(len(out), ShouldEqual, 2)
				So(out[0].Confidence, ShouldEqual, 0.9)
				So(out[1].Class, ShouldEqual, 32)
			})
		})
	})
}

func TestNewYOLO(t *testing.T) {
	Convey("Given a missing model file", t, func() {
		_, err := NewYOLO(filepath.Join(t.TempDir(), "missing.onnx"), "cpu")

		Convey("Then loading fails with ErrModel", func() {
			So(errors.Is(err, ErrModel), ShouldBeTrue)
		})
	})

	path := os.Getenv("SOCCERHUD_TEST_MODEL")
	if path == "" {
		t.Skip("SOCCERHUD_TEST_MODEL not set")
	}

	Convey("Given a real model", t, func() {
		y, err := NewYOLO(path, "cpu")
		So(err, ShouldBeNil)
		Reset(func() { _ = y.Close() })

		Convey("When detecting on a blank frame", func() {
			frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 480, 640, gocv.MatTypeCV8UC3)
			defer frame.Close()
			_, err := y.Detect(frame, video.DetectOptions{Confidence: 0.5, IoU: 0.4, InputSize: 640})

			Convey("Then inference succeeds", func() {
				So(err, ShouldBeNil)
				So(y.Info().Backend, ShouldEqual, "cpu")
			})
		})
	})
}
