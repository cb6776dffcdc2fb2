//Package roster binds tracked player identities to named team roster entries.
package roster

import (
	"context"
	"sort"
	"sync"

	"github.com/chenBenjamin97/soccer-hud/pkg/logger"
	"github.com/chenBenjamin97/soccer-hud/pkg/metrics"
	"github.com/chenBenjamin97/soccer-hud/pkg/video"
)

//Entry is one player of a team roster. Number is unique within a team.
type Entry struct {
	Name     string `json:"name"`
	Number   int    `json:"number"`
	Position string `json:"position,omitempty"`
}

//Summary counts roster sizes and active bindings.
type Summary struct {
	Home    int `json:"home"`
	Away    int `json:"away"`
	Matched int `json:"matched"`
}

//Binding is a track id resolved to a roster entry.
type Binding struct {
	TrackID int        `json:"track_id"`
	Team    video.Team `json:"team"`
	Entry   Entry      `json:"player"`
}

type slot struct {
	team   video.Team
	number int
}

//Binder holds the session roster and its track bindings. Bindings point at entries of
//the current roster only: replacing the roster drops all of them. Automatic matching by
//field position is not implemented; bindings are only created by Bind.
type Binder struct {
	mu      sync.RWMutex
	home    []Entry
	away    []Entry
	byTrack map[int]Binding
	bySlot  map[slot]int
	logger  logger.Logger
}

//New returns an empty binder.
func New() *Binder {
	return &Binder{
		byTrack: make(map[int]Binding),
		bySlot:  make(map[slot]int),
		logger:  logger.Named("roster"),
	}
}

//SetRoster replaces both rosters and clears every binding.
func (b *Binder) SetRoster(ctx context.Context, home, away []Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.home = append([]Entry(nil), home...)
	b.away = append([]Entry(nil), away...)
	b.byTrack = make(map[int]Binding)
	b.bySlot = make(map[slot]int)

	b.logger.Info(ctx, "roster replaced", logger.Int("home", len(home)), logger.Int("away", len(away)))
}

//Bind associates a track with the first entry of team's roster wearing number.
//An empty roster, a missing number (0) or an unknown number only logs a warning and
//returns false; existing bindings are left untouched in that case. A successful bind
//replaces any previous binding of the same track or the same roster slot.
func (b *Binder) Bind(ctx context.Context, trackID int, team video.Team, number int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	matched := b.bind(ctx, trackID, team, number)
	metrics.RecordBind(matched)
	return matched
}

func (b *Binder) bind(ctx context.Context, trackID int, team video.Team, number int) bool {
	entries, ok := b.teamRoster(team)
	if !ok {
		b.logger.Warn(ctx, "unknown team", logger.String("team", string(team)))
		return false
	}
	if len(entries) == 0 {
		b.logger.Warn(ctx, "team roster is empty", logger.String("team", string(team)))
		return false
	}
	if number == 0 {
		b.logger.Warn(ctx, "cannot bind without a jersey number", logger.Int("track_id", trackID))
		return false
	}

	var found *Entry
	for i := range entries {
		if entries[i].Number == number {
			found = &entries[i]
			break
		}
	}
	if found == nil {
		b.logger.Warn(ctx, "no such jersey number", logger.String("team", string(team)), logger.Int("number", number))
		return false
	}

	key := slot{team: team, number: number}
	if prev, ok := b.byTrack[trackID]; ok {
		delete(b.bySlot, slot{team: prev.Team, number: prev.Entry.Number})
	}
	if prevTrack, ok := b.bySlot[key]; ok && prevTrack != trackID {
		delete(b.byTrack, prevTrack)
	}

	b.byTrack[trackID] = Binding{TrackID: trackID, Team: team, Entry: *found}
	b.bySlot[key] = trackID

	b.logger.Info(ctx, "track bound",
		logger.Int("track_id", trackID),
		logger.String("team", string(team)),
		logger.String("name", found.Name),
		logger.Int("number", number),
	)
	return true
}

func (b *Binder) teamRoster(team video.Team) ([]Entry, bool) {
	switch team {
	case video.Home:
		return b.home, true
	case video.Away:
		return b.away, true
	default:
		return nil, false
	}
}

//Enrich returns copies of players with name, number and position set for bound tracks
//and cleared for the rest. The input slice and its elements are not modified.
func (b *Binder) Enrich(players []video.PlayerObservation) []video.PlayerObservation {
	b.mu.RLock()
	defer b.mu.RUnlock()

	enriched := make([]video.PlayerObservation, len(players))
	for i, p := range players {
		p.Name, p.Number, p.Position = nil, nil, nil
		if bound, ok := b.byTrack[p.ID]; ok {
			name, number := bound.Entry.Name, bound.Entry.Number
			p.Name, p.Number = &name, &number
			if bound.Entry.Position != "" {
				position := bound.Entry.Position
				p.Position = &position
			}
		}
		enriched[i] = p
	}
	return enriched
}

//Summary reports roster sizes and the number of active bindings.
func (b *Binder) Summary() Summary {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Summary{Home: len(b.home), Away: len(b.away), Matched: len(b.byTrack)}
}

//Roster returns copies of both rosters.
func (b *Binder) Roster() (home, away []Entry) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Entry{}, b.home...), append([]Entry{}, b.away...)
}

//Lookup returns the binding of a track.
func (b *Binder) Lookup(trackID int) (Binding, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	bound, ok := b.byTrack[trackID]
	return bound, ok
}

//TrackFor returns the track bound to a team's jersey number.
func (b *Binder) TrackFor(team video.Team, number int) (int, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	id, ok := b.bySlot[slot{team: team, number: number}]
	return id, ok
}

//Bindings lists active bindings ordered by track id.
func (b *Binder) Bindings() []Binding {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Binding, 0, len(b.byTrack))
	for _, bound := range b.byTrack {
		out = append(out, bound)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TrackID < out[j].TrackID })
	return out
}
