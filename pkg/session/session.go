//Package session owns per-connection analysis state. Every session has its own frame
//pipeline and roster; only the detector is shared between sessions.
package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/chenBenjamin97/soccer-hud/pkg/roster"
	"github.com/chenBenjamin97/soccer-hud/pkg/video"
)

//ErrSessionClosed is returned by Process once the session was removed.
var ErrSessionClosed = errors.New("session closed")

//Session serializes frame processing and control calls on one pipeline.
type Session struct {
	ID      string
	Created time.Time

	mu         sync.Mutex
	pipeline   *video.Pipeline
	roster     *roster.Binder
	associator video.Associator
	persistent bool
	closed     bool
}

//Info is the listing view of a session.
type Info struct {
	ID         string         `json:"session_id"`
	Created    time.Time      `json:"created"`
	Persistent bool           `json:"persistent"`
	Tracking   bool           `json:"tracking"`
	FPS        float64        `json:"fps"`
	Roster     roster.Summary `json:"roster"`
}

//Persistent sessions were created through the control surface and outlive their connections.
func (s *Session) Persistent() bool { return s.persistent }

//Process runs one encoded frame through the session pipeline.
func (s *Session) Process(ctx context.Context, payload []byte) (*video.FrameResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	return s.pipeline.Process(ctx, payload)
}

func (s *Session) SetRoster(ctx context.Context, home, away []roster.Entry) roster.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roster.SetRoster(ctx, home, away)
	return s.roster.Summary()
}

func (s *Session) Roster() (home, away []roster.Entry, summary roster.Summary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	home, away = s.roster.Roster()
	return home, away, s.roster.Summary()
}

//Bind ties a track id to a roster entry. On success the binding is returned as well.
func (s *Session) Bind(ctx context.Context, trackID int, team video.Team, number int) (roster.Binding, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.roster.Bind(ctx, trackID, team, number) {
		return roster.Binding{}, false
	}
	return s.roster.Lookup(trackID)
}

func (s *Session) Bindings() []roster.Binding {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roster.Bindings()
}

//Reset clears the associator state, as a camera cut would.
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pipeline.Tracker().Reset(ctx)
}

//Snapshot is the annotated JPEG of the last processed frame, nil if none.
func (s *Session) Snapshot() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pipeline.Snapshot()
}

func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		ID:         s.ID,
		Created:    s.Created,
		Persistent: s.persistent,
		Tracking:   s.pipeline.Tracker().Enabled(),
		FPS:        s.pipeline.FPS(),
		Roster:     s.roster.Summary(),
	}
}

//Close releases the session's associator. It is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if c, ok := s.associator.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
