package video

import (
	"context"
	"fmt"
	"time"

	"github.com/chenBenjamin97/soccer-hud/pkg/logger"
	"github.com/chenBenjamin97/soccer-hud/pkg/metrics"
	"github.com/chenBenjamin97/soccer-hud/pkg/utils"
	"gocv.io/x/gocv"
)

//Enricher fills roster attributes into tracked players. It must return copies.
type Enricher interface {
	Enrich(players []PlayerObservation) []PlayerObservation
}

//Pipeline turns one frame into a FrameResult. It is not safe for concurrent use:
//each session owns one and feeds it frames in order.
type Pipeline struct {
	detector   Detector
	classifier *TeamClassifier
	tracker    *TrackAdapter
	enricher   Enricher
	owner      *OwnershipResolver

	personOpts  DetectOptions
	ballOpts    DetectOptions
	personClass int
	ballClass   int

	now        func() time.Time
	frameCount int
	totalTime  time.Duration

	snapshots       bool
	snapshotQuality int
	lastSnapshot    []byte

	logger logger.Logger
}

type PipelineOption func(*Pipeline)

func WithTeamClassifier(c *TeamClassifier) PipelineOption {
	return func(p *Pipeline) { p.classifier = c }
}

func WithTrackAdapter(t *TrackAdapter) PipelineOption {
	return func(p *Pipeline) { p.tracker = t }
}

func WithEnricher(e Enricher) PipelineOption {
	return func(p *Pipeline) { p.enricher = e }
}

func WithOwnershipResolver(r *OwnershipResolver) PipelineOption {
	return func(p *Pipeline) { p.owner = r }
}

//WithPersonDetection tunes the general detector pass; persons are taken from its output
func WithPersonDetection(opts DetectOptions, personClass int) PipelineOption {
	return func(p *Pipeline) {
		p.personOpts = opts
		p.personClass = personClass
	}
}

//WithBallDetection tunes the ball-only pass. Its confidence is also the minimum a ball
//candidate needs to be reported.
func WithBallDetection(opts DetectOptions, ballClass int) PipelineOption {
	return func(p *Pipeline) {
		p.ballOpts = opts
		p.ballClass = ballClass
	}
}

func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) { p.now = now }
}

//WithSnapshots keeps an annotated JPEG of the latest frame
func WithSnapshots(enabled bool, quality int) PipelineOption {
	return func(p *Pipeline) {
		p.snapshots = enabled
		p.snapshotQuality = quality
	}
}

func WithPipelineLogger(l logger.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

func NewPipeline(detector Detector, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		detector:        detector,
		classifier:      NewTeamClassifier(),
		tracker:         NewTrackAdapter(nil),
		owner:           NewOwnershipResolver(50),
		personOpts:      DetectOptions{Confidence: 0.5, IoU: 0.4, InputSize: 640},
		ballOpts:        DetectOptions{Confidence: 0.1, IoU: 0.4, InputSize: 640, Classes: []int{utils.BallClass}},
		personClass:     utils.PersonClass,
		ballClass:       utils.BallClass,
		now:             time.Now,
		snapshotQuality: 70,
		logger:          logger.Named("video.pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

//Tracker exposes the pipeline's track adapter, e.g. for an explicit reset
func (p *Pipeline) Tracker() *TrackAdapter { return p.tracker }

//Snapshot returns the annotated JPEG of the last processed frame, nil when snapshots are off
func (p *Pipeline) Snapshot() []byte { return p.lastSnapshot }

//FPS is the cumulative average frame rate since the pipeline was created
func (p *Pipeline) FPS() float64 {
	if p.totalTime <= 0 {
		return 0
	}
	return float64(p.frameCount) / p.totalTime.Seconds()
}

//Process decodes a JPEG payload and runs it through the pipeline
func (p *Pipeline) Process(ctx context.Context, payload []byte) (*FrameResult, error) {
	start := p.now()

	result, err := p.process(ctx, payload)
	if err != nil {
		metrics.RecordFrameFailure(FailureKind(err))
		return nil, err
	}

	elapsed := p.now().Sub(start)
	p.frameCount++
	p.totalTime += elapsed
	result.FPS = p.FPS()
	result.Timestamp = float64(p.now().UnixNano()) / 1e9

	metrics.RecordFrameProcessed(elapsed)
	if result.BallOwner != nil {
		metrics.RecordPossessionClaim()
	}
	return result, nil
}

func (p *Pipeline) process(ctx context.Context, payload []byte) (*FrameResult, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrDecodeFrame)
	}
	frame, err := gocv.IMDecode(payload, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFrame, err)
	}
	defer frame.Close()
	if frame.Empty() {
		return nil, fmt.Errorf("%w: payload is not an image", ErrDecodeFrame)
	}

	result, err := p.ProcessFrame(ctx, frame)
	if err != nil {
		return nil, err
	}

	if p.snapshots {
		p.takeSnapshot(ctx, frame, result)
	}
	return result, nil
}

//ProcessFrame runs detection, team clustering, tracking, roster enrichment and possession
//on a decoded frame. Timestamp and FPS are left for Process to fill.
func (p *Pipeline) ProcessFrame(ctx context.Context, frame gocv.Mat) (*FrameResult, error) {
	if p.detector == nil {
		return nil, fmt.Errorf("%w: no detector loaded", ErrDetection)
	}
	detections, err := p.detector.Detect(frame, p.personOpts)
	if err != nil {
		return nil, fmt.Errorf("%w: general pass: %v", ErrDetection, err)
	}
	ballDetections, err := p.detector.Detect(frame, p.ballOpts)
	if err != nil {
		return nil, fmt.Errorf("%w: ball pass: %v", ErrDetection, err)
	}

	candidates := make([]RawDetection, 0, len(detections)+len(ballDetections))
	candidates = append(candidates, detections...)
	ball := p.extractBall(append(candidates, ballDetections...))
	players := p.extractPlayers(detections, frame)

	players, err = p.tracker.Update(ctx, players, frame)
	if err != nil {
		return nil, err
	}

	if p.enricher != nil {
		players = p.enricher.Enrich(players)
	}

	return &FrameResult{
		Ball:      ball,
		Players:   players,
		BallOwner: p.owner.Resolve(ball, players),
	}, nil
}

//extractBall keeps the most confident ball strictly above the ball pass confidence floor
func (p *Pipeline) extractBall(detections []RawDetection) *BallObservation {
	var best *RawDetection
	for i := range detections {
		d := &detections[i]
		if d.Class != p.ballClass || d.Confidence <= p.ballOpts.Confidence {
			continue
		}
		if best == nil || d.Confidence > best.Confidence {
			best = d
		}
	}
	if best == nil {
		return nil
	}

	x, y := best.Box.Center()
	return &BallObservation{
		X:          x,
		Y:          y,
		Width:      best.Box.Width(),
		Height:     best.Box.Height(),
		Confidence: utils.Clamp(best.Confidence, 0, 1),
	}
}

//extractPlayers samples a uniform color for every person and labels them by team.
//The player id is the detection index until tracking replaces it.
func (p *Pipeline) extractPlayers(detections []RawDetection, frame gocv.Mat) []PlayerObservation {
	indices := make([]int, 0, len(detections))
	colors := make([][3]int, 0, len(detections))
	for i, d := range detections {
		if d.Class != p.personClass {
			continue
		}
		indices = append(indices, i)
		colors = append(colors, SampleUniformColor(frame, d.Box))
	}

	players := make([]PlayerObservation, 0, len(indices))
	if len(indices) == 0 {
		return players
	}

	labels, _ := p.classifier.Classify(colors)
	for idx, i := range indices {
		d := detections[i]
		x, y := d.Box.Center()
		players = append(players, PlayerObservation{
			ID:         i,
			X:          x,
			Y:          y,
			Width:      d.Box.Width(),
			Height:     d.Box.Height(),
			Team:       TeamFromLabel(labels[idx]),
			Color:      colors[idx],
			Confidence: utils.Clamp(d.Confidence, 0, 1),
		})
	}
	return players
}

func (p *Pipeline) takeSnapshot(ctx context.Context, frame gocv.Mat, result *FrameResult) {
	annotated := frame.Clone()
	defer annotated.Close()

	PlotResult(&annotated, result)

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, annotated, []int{int(gocv.IMWriteJpegQuality), p.snapshotQuality})
	if err != nil {
		p.logger.Warn(ctx, "could not encode snapshot", logger.Error(err))
		return
	}
	defer buf.Close()
	p.lastSnapshot = append([]byte(nil), buf.GetBytes()...)
}
