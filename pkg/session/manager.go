package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/chenBenjamin97/soccer-hud/pkg/association"
	"github.com/chenBenjamin97/soccer-hud/pkg/config"
	"github.com/chenBenjamin97/soccer-hud/pkg/logger"
	"github.com/chenBenjamin97/soccer-hud/pkg/metrics"
	"github.com/chenBenjamin97/soccer-hud/pkg/roster"
	"github.com/chenBenjamin97/soccer-hud/pkg/video"
	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("session not found")

//AssociatorFactory builds a fresh associator for a new session, nil when tracking is off.
type AssociatorFactory func(ctx context.Context, cfg config.TrackingConfig) (video.Associator, error)

//Manager creates, finds and removes sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	cfg           *config.Config
	detector      video.Detector
	newAssociator AssociatorFactory
	now           func() time.Time
	logger        logger.Logger
}

type Option func(*Manager)

func WithAssociatorFactory(f AssociatorFactory) Option {
	return func(m *Manager) { m.newAssociator = f }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

//NewManager shares detector between all sessions. A nil detector is allowed: frames then
//fail with a detection error.
func NewManager(cfg *config.Config, detector video.Detector, opts ...Option) *Manager {
	m := &Manager{
		sessions:      make(map[string]*Session),
		cfg:           cfg,
		detector:      detector,
		newAssociator: association.New,
		now:           time.Now,
		logger:        logger.Named("session"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

//DetectorLoaded reports whether frames can be analysed at all.
func (m *Manager) DetectorLoaded() bool { return m.detector != nil }

//Create builds a session with its own pipeline and roster. Persistent sessions survive
//the end of their websocket connections until removed explicitly.
func (m *Manager) Create(ctx context.Context, persistent bool) (*Session, error) {
	assoc, err := m.newAssociator(ctx, m.cfg.Tracking)
	if err != nil {
		return nil, fmt.Errorf("create associator: %w", err)
	}

	s := &Session{
		ID:         uuid.NewString(),
		Created:    m.now(),
		roster:     roster.New(),
		associator: assoc,
		persistent: persistent,
	}
	s.pipeline = m.newPipeline(s.ID, assoc, s.roster)

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	metrics.SessionOpened()
	m.logger.Info(ctx, "session created",
		logger.String("session_id", s.ID),
		logger.Any("persistent", persistent),
		logger.Any("tracking", assoc != nil))
	return s, nil
}

func (m *Manager) newPipeline(id string, assoc video.Associator, binder *roster.Binder) *video.Pipeline {
	cfg := m.cfg
	sessionLogger := logger.Named("session." + id)

	return video.NewPipeline(m.detector,
		video.WithPersonDetection(video.DetectOptions{
			Confidence: cfg.Detection.Confidence,
			IoU:        cfg.Detection.IoU,
			InputSize:  cfg.Model.InputSize,
		}, cfg.Detection.PersonClass),
		video.WithBallDetection(video.DetectOptions{
			Confidence: cfg.Ball.Confidence,
			IoU:        cfg.Ball.IoU,
			InputSize:  cfg.Model.InputSize,
			Classes:    []int{cfg.Ball.Class},
		}, cfg.Ball.Class),
		video.WithTeamClassifier(video.NewTeamClassifier(
			video.WithTeamCount(cfg.Teams.Count),
			video.WithClusterSeed(cfg.Teams.Seed),
			video.WithClusterRestarts(cfg.Teams.Restarts),
			video.WithLabelStabilization(cfg.Teams.StabilizeLabels),
		)),
		video.WithTrackAdapter(video.NewTrackAdapter(assoc,
			video.WithCameraCutThreshold(cfg.Tracking.CameraCutThreshold),
			video.WithTrackerLogger(sessionLogger),
		)),
		video.WithEnricher(binder),
		video.WithOwnershipResolver(video.NewOwnershipResolver(cfg.BallOwner.MaxDistance)),
		video.WithSnapshots(cfg.Snapshot.Enabled, cfg.Snapshot.Quality),
		video.WithPipelineLogger(sessionLogger),
	)
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

//Attach resolves the session for a new connection: an existing persistent one when id
//is set, otherwise a fresh session bound to the connection's lifetime. Connection-bound
//sessions belong to the connection that created them and cannot be joined.
func (m *Manager) Attach(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return m.Create(ctx, false)
	}
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	if !s.Persistent() {
		return nil, fmt.Errorf("%w: %s is bound to another connection", ErrSessionNotFound, id)
	}
	return s, nil
}

//Release is called when a connection ends. Connection-bound sessions are removed.
func (m *Manager) Release(ctx context.Context, s *Session) {
	if s.Persistent() {
		return
	}
	if err := m.Remove(ctx, s.ID); err != nil && !errors.Is(err, ErrSessionNotFound) {
		m.logger.Warn(ctx, "releasing session", logger.String("session_id", s.ID), logger.Error(err))
	}
}

//Remove closes a session and forgets it.
func (m *Manager) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	metrics.SessionClosed()
	m.logger.Info(ctx, "session removed", logger.String("session_id", id))
	return s.Close()
}

//List returns every session, oldest first.
func (m *Manager) List() []Info {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	out := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Info())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Created.Equal(out[j].Created) {
			return out[i].ID < out[j].ID
		}
		return out[i].Created.Before(out[j].Created)
	})
	return out
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

//CloseAll removes every session, used on shutdown.
func (m *Manager) CloseAll(ctx context.Context) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		if err := m.Remove(ctx, id); err != nil && !errors.Is(err, ErrSessionNotFound) {
			m.logger.Warn(ctx, "closing session", logger.String("session_id", id), logger.Error(err))
		}
	}
}
