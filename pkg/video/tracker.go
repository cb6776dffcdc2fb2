package video

import (
	"context"
	"fmt"
	"math"

	"github.com/chenBenjamin97/soccer-hud/pkg/logger"
	"github.com/chenBenjamin97/soccer-hud/pkg/metrics"
	"github.com/chenBenjamin97/soccer-hud/pkg/utils"
	"gocv.io/x/gocv"
)

type TrackState int

const (
	Tentative TrackState = iota
	Confirmed
	Deleted
)

func (s TrackState) String() string {
	switch s {
	case Tentative:
		return "tentative"
	case Confirmed:
		return "confirmed"
	case Deleted:
		return "deleted"
	default:
		return fmt.Sprintf("TrackState(%d)", int(s))
	}
}

//Track is one associator output: a persistent id, its lifecycle state and the corrected box
type Track struct {
	ID    int
	State TrackState
	LTWH  [4]float64 //left, top, width, height
}

func (t Track) IsTentative() bool { return t.State == Tentative }
func (t Track) IsConfirmed() bool { return t.State == Confirmed }

//Center of the corrected box
func (t Track) Center() (float64, float64) {
	return t.LTWH[0] + t.LTWH[2]/2, t.LTWH[1] + t.LTWH[3]/2
}

//AssociatorDetection is the detection shape associators consume
type AssociatorDetection struct {
	Left       float64
	Top        float64
	Width      float64
	Height     float64
	Confidence float64
	Class      int
}

//Associator assigns persistent identities to detections across frames.
//It is stateful: every session owns its own instance.
type Associator interface {
	Update(detections []AssociatorDetection, frame gocv.Mat) ([]Track, error)
	DeleteAll() error
}

//TrackAdapter bridges per-frame player detections to the associator's identity stream
//and resets it when the person count jumps, which usually means the broadcast camera switched.
type TrackAdapter struct {
	associator   Associator
	cutThreshold float64
	prevCount    int //0 means no signal yet
	logger       logger.Logger
}

type TrackerOption func(*TrackAdapter)

//WithCameraCutThreshold sets the relative person count change above which a cut is declared
func WithCameraCutThreshold(threshold float64) TrackerOption {
	return func(a *TrackAdapter) { a.cutThreshold = threshold }
}

func WithTrackerLogger(l logger.Logger) TrackerOption {
	return func(a *TrackAdapter) { a.logger = l }
}

//NewTrackAdapter wraps an associator. A nil associator disables tracking: Update then
//returns its input untouched.
func NewTrackAdapter(associator Associator, opts ...TrackerOption) *TrackAdapter {
	a := &TrackAdapter{
		associator:   associator,
		cutThreshold: 0.5,
		logger:       logger.Named("video.tracker"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *TrackAdapter) Enabled() bool { return a.associator != nil }

//IsCameraCut reports whether currentCount differs from the previous frame's count by
//strictly more than the threshold ratio. It never fires before a previous count exists.
func (a *TrackAdapter) IsCameraCut(currentCount int) bool {
	if a.prevCount == 0 {
		return false
	}
	changeRatio := math.Abs(float64(currentCount-a.prevCount)) / float64(a.prevCount)
	return changeRatio > a.cutThreshold
}

//Update replaces detector indices with track ids and associator-corrected boxes.
//Tracks are matched back to the nearest original detection by center distance to recover
//team, color and detector confidence; tracks without any detection are dropped.
func (a *TrackAdapter) Update(ctx context.Context, persons []PlayerObservation, frame gocv.Mat) ([]PlayerObservation, error) {
	if !a.Enabled() {
		return persons, nil
	}

	if a.IsCameraCut(len(persons)) {
		a.logger.Info(ctx, "camera cut detected, resetting tracks",
			logger.Int("previous", a.prevCount),
			logger.Int("current", len(persons)),
		)
		metrics.RecordCameraCut()
		if err := a.Reset(ctx); err != nil {
			return nil, err
		}
	}

	detections := make([]AssociatorDetection, len(persons))
	for i, p := range persons {
		detections[i] = AssociatorDetection{
			Left:       p.X - p.Width/2,
			Top:        p.Y - p.Height/2,
			Width:      p.Width,
			Height:     p.Height,
			Confidence: p.Confidence,
			Class:      utils.PersonClass,
		}
	}

	tracks, err := a.associator.Update(detections, frame)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAssociation, err)
	}

	tracked := make([]PlayerObservation, 0, len(tracks))
	for _, track := range tracks {
		if !track.IsConfirmed() && !track.IsTentative() {
			continue
		}

		tx, ty := track.Center()
		matched := nearestPlayer(tx, ty, persons)
		if matched < 0 {
			continue
		}

		p := persons[matched]
		p.ID = track.ID
		p.X, p.Y = tx, ty
		p.Width, p.Height = track.LTWH[2], track.LTWH[3]
		tracked = append(tracked, p)
	}

	a.prevCount = len(persons)
	return tracked, nil
}

//Reset drops every track and forgets the previous person count
func (a *TrackAdapter) Reset(ctx context.Context) error {
	a.prevCount = 0
	if !a.Enabled() {
		return nil
	}
	if err := a.associator.DeleteAll(); err != nil {
		return fmt.Errorf("%w: delete tracks: %v", ErrAssociation, err)
	}
	a.logger.Debug(ctx, "tracks reset")
	return nil
}

//nearestPlayer returns the index of the player whose center is closest to (x, y), -1 when
//there are none. The first player wins exact ties.
func nearestPlayer(x, y float64, players []PlayerObservation) int {
	best, bestDist := -1, math.Inf(1)
	for i, p := range players {
		if d := utils.Distance(x, y, p.X, p.Y); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}
