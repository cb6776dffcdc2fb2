package video

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

var homeTeamColor = color.RGBA{0, 255, 0, 0}
var awayTeamColor = color.RGBA{255, 0, 0, 0}
var ballColor = color.RGBA{255, 128, 0, 0}
var whiteRGB = color.RGBA{255, 255, 255, 0}

//PlotResult draws every player in its team color, the ball, and marks the ball owner
func PlotResult(frame *gocv.Mat, result *FrameResult) {
	ownerID, hasOwner := 0, false
	if result.BallOwner != nil {
		ownerID, hasOwner = result.BallOwner.PlayerID, true
	}

	for _, p := range result.Players {
		plotColor := homeTeamColor
		if p.Team == Away {
			plotColor = awayTeamColor
		}
		plotPlayerOnFrame(frame, p, plotColor, hasOwner && p.ID == ownerID)
	}

	if result.Ball != nil {
		b := result.Ball
		gocv.Rectangle(frame, toRect(BoxFromCenter(b.X, b.Y, b.Width, b.Height)), ballColor, 3)
	}
}

//plotPlayerOnFrame draws the player's box with its id and, when bound, number and name above it
func plotPlayerOnFrame(frame *gocv.Mat, p PlayerObservation, plotColor color.RGBA, owner bool) {
	boundingBoxRect := toRect(p.Box())
	if boundingBoxRect.Empty() {
		return
	}

	thickness := 2
	if owner {
		thickness = 5
	}
	gocv.Rectangle(frame, boundingBoxRect, plotColor, thickness)

	textToPutFirstLine := fmt.Sprintf("ID: %d", p.ID)
	if p.Number != nil {
		textToPutFirstLine = fmt.Sprintf("ID: %d #%d", p.ID, *p.Number)
	}
	textToPutSecondLine := ""
	if p.Name != nil {
		textToPutSecondLine = *p.Name
	}
	if owner {
		textToPutSecondLine += " (Ball)"
	}

	startPointFirstLine := image.Pt(boundingBoxRect.Min.X, boundingBoxRect.Min.Y-20)
	startPointSecondLine := image.Pt(boundingBoxRect.Min.X, boundingBoxRect.Min.Y-5)

	textWidth := 10 * len(textToPutFirstLine)
	if w := 10 * len(textToPutSecondLine); w > textWidth {
		textWidth = w
	}
	textBackgroundRect := image.Rect(startPointFirstLine.X, startPointFirstLine.Y-15, startPointFirstLine.X+textWidth, startPointFirstLine.Y+20)

	gocv.Rectangle(frame, textBackgroundRect, plotColor, -1) //thickness -1 == filled rectangle
	gocv.PutText(frame, textToPutFirstLine, startPointFirstLine, gocv.FontHersheyPlain, 1, whiteRGB, 2)
	if textToPutSecondLine != "" {
		gocv.PutText(frame, textToPutSecondLine, startPointSecondLine, gocv.FontHersheyPlain, 1, whiteRGB, 2)
	}
}

func toRect(b Box) image.Rectangle {
	return image.Rect(int(b.X1), int(b.Y1), int(b.X2), int(b.Y2))
}
