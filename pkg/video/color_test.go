package video_test

import (
	"image"
	"testing"

	"github.com/chenBenjamin97/soccer-hud/pkg/utils"
	"github.com/chenBenjamin97/soccer-hud/pkg/video"
	. "github.com/smartystreets/goconvey/convey"
	"gocv.io/x/gocv"
)

func solidFrame(r, g, b float64) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(b, g, r, 0), 200, 200, gocv.MatTypeCV8UC3)
}

func TestSampleUniformColor(t *testing.T) {
	Convey("Given a solid green frame", t, func() {
		frame := solidFrame(10, 200, 30)
		Reset(func() { frame.Close() })

		Convey("When sampling a regular box", func() {
			color := video.SampleUniformColor(frame, video.Box{X1: 20, Y1: 20, X2: 80, Y2: 120})

			Convey("Then the frame color comes back as RGB", func() {
				So(color, ShouldResemble, [3]int{10, 200, 30})
			})
		})

		Convey("When sampling a zero-height box", func() {
			color := video.SampleUniformColor(frame, video.Box{X1: 20, Y1: 50, X2: 80, Y2: 50})

			Convey("Then the neutral gray is returned", func() {
				So(color, ShouldResemble, utils.NeutralGray)
			})
		})

		Convey("When sampling a box entirely outside the frame", func() {
			color := video.SampleUniformColor(frame, video.Box{X1: 300, Y1: 300, X2: 400, Y2: 400})

			Convey("Then the neutral gray is returned", func() {
				So(color, ShouldResemble, utils.NeutralGray)
			})
		})

		Convey("When the box hangs over the frame edge", func() {
			color := video.SampleUniformColor(frame, video.Box{X1: -40, Y1: 100, X2: 60, Y2: 300})

			Convey("Then the clipped band is sampled", func() {
				So(color, ShouldResemble, [3]int{10, 200, 30})
			})
		})
	})

	Convey("Given a frame whose torso band differs from the rest", t, func() {
		frame := solidFrame(0, 0, 255)
		Reset(func() { frame.Close() })

		band := frame.Region(image.Rect(0, 30, 100, 60))
		band.SetTo(gocv.NewScalar(0, 0, 255, 0))
		band.Close()

		Convey("When sampling a box covering rows 0 to 100", func() {
			color := video.SampleUniformColor(frame, video.Box{X1: 0, Y1: 0, X2: 100, Y2: 100})

			Convey("Then only the 30%-60% band counts", func() {
				So(color, ShouldResemble, [3]int{255, 0, 0})
			})
		})
	})

	Convey("Given an empty frame", t, func() {
		frame := gocv.NewMat()
		Reset(func() { frame.Close() })

		So(video.SampleUniformColor(frame, video.Box{X2: 10, Y2: 10}), ShouldResemble, utils.NeutralGray)
	})
}
