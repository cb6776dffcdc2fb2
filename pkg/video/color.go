package video

import (
	"image"

	"github.com/chenBenjamin97/soccer-hud/pkg/utils"
	"gocv.io/x/gocv"
)

//SampleUniformColor returns the mean RGB color of the torso band (30%-60% of the box height).
//Boxes are clipped to the frame first; an empty band yields utils.NeutralGray.
//It assumes an upright player facing toward or away from the camera, so it drifts for
//occluded or foreshortened boxes.
func SampleUniformColor(frame gocv.Mat, box Box) [3]int {
	if frame.Empty() {
		return utils.NeutralGray
	}

	x1, y1, x2, y2 := int(box.X1), int(box.Y1), int(box.X2), int(box.Y2)
	h := y2 - y1
	yStart := int(float64(y1) + float64(h)*utils.TorsoTop)
	yEnd := int(float64(y1) + float64(h)*utils.TorsoBottom)

	x1, yStart, x2, yEnd = utils.ClipToFrame(x1, yStart, x2, yEnd, frame.Cols(), frame.Rows())
	if x2 <= x1 || yEnd <= yStart {
		return utils.NeutralGray
	}

	roi := frame.Region(image.Rect(x1, yStart, x2, yEnd))
	defer roi.Close()

	mean := roi.Mean() //BGR order
	return [3]int{int(mean.Val3), int(mean.Val2), int(mean.Val1)}
}
