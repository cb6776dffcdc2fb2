package video

import "github.com/chenBenjamin97/soccer-hud/pkg/utils"

//Team is the side a player was clustered into
type Team string

const (
	Home Team = utils.HomeTeam
	Away Team = utils.AwayTeam
)

//TeamFromLabel maps a cluster label to a team: 0 is home, anything else away
func TeamFromLabel(label int) Team {
	if label == 0 {
		return Home
	}
	return Away
}

//Box is an axis-aligned box in frame pixels
type Box struct {
	X1 float64
	Y1 float64
	X2 float64
	Y2 float64
}

func (b Box) Width() float64  { return b.X2 - b.X1 }
func (b Box) Height() float64 { return b.Y2 - b.Y1 }

func (b Box) Center() (float64, float64) {
	return (b.X1 + b.X2) / 2, (b.Y1 + b.Y2) / 2
}

//BoxFromCenter builds a box from its center and size
func BoxFromCenter(x, y, width, height float64) Box {
	return Box{X1: x - width/2, Y1: y - height/2, X2: x + width/2, Y2: y + height/2}
}

//RawDetection is one detector output; it lives for a single frame
type RawDetection struct {
	Class      int
	Box        Box
	Confidence float64
}

type BallObservation struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Confidence float64 `json:"confidence"`
}

//PlayerObservation is a detected person. ID is the detector index until tracking
//replaces it with a track id. Name, Number and Position stay nil until bound to a roster entry.
type PlayerObservation struct {
	ID         int     `json:"id"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Team       Team    `json:"team"`
	Color      [3]int  `json:"color"`
	Confidence float64 `json:"confidence"`
	Number     *int    `json:"number"`
	Name       *string `json:"name"`
	Position   *string `json:"position"`
}

//Box returns the player's box rebuilt from center and size
func (p PlayerObservation) Box() Box {
	return BoxFromCenter(p.X, p.Y, p.Width, p.Height)
}

type PossessionClaim struct {
	PlayerID   int     `json:"player_id"`
	Distance   float64 `json:"distance"`
	Confidence float64 `json:"confidence"`
}

//FrameResult is the per-frame record sent to the renderer
type FrameResult struct {
	Timestamp float64             `json:"timestamp"`
	FPS       float64             `json:"fps"`
	Ball      *BallObservation    `json:"ball"`
	Players   []PlayerObservation `json:"players"`
	BallOwner *PossessionClaim    `json:"ball_owner"`
}

//FrameError is sent instead of a FrameResult when a frame fails
type FrameError struct {
	Error  string `json:"error"`
	Status string `json:"status"`
}

func NewFrameError(err error) FrameError {
	return FrameError{Error: err.Error(), Status: utils.ProcessingFailedStatus}
}
