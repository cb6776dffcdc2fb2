//Package association provides video.Associator implementations: an in-process IoU
//tracker and a bridge to an external DeepSORT process.
package association

import (
	"sort"

	"github.com/chenBenjamin97/soccer-hud/pkg/video"
	"gocv.io/x/gocv"
)

type track struct {
	id     int
	state  video.TrackState
	ltwh   [4]float64
	hits   int
	misses int
}

//IOU matches detections to tracks greedily by box overlap. Tracks follow the DeepSORT
//lifecycle: tentative until nInit consecutive hits, deleted on a tentative miss or after
//more than maxAge consecutive misses once confirmed.
type IOU struct {
	maxAge int
	nInit  int
	minIoU float64

	tracks []*track
	nextID int
}

type IOUOption func(*IOU)

func WithMaxAge(n int) IOUOption {
	return func(a *IOU) {
		if n >= 0 {
			a.maxAge = n
		}
	}
}

func WithNInit(n int) IOUOption {
	return func(a *IOU) {
		if n > 0 {
			a.nInit = n
		}
	}
}

//WithMaxIoUDistance sets the largest accepted 1-IoU between a track and a detection.
func WithMaxIoUDistance(d float64) IOUOption {
	return func(a *IOU) { a.minIoU = 1 - d }
}

func NewIOU(opts ...IOUOption) *IOU {
	a := &IOU{maxAge: 30, nInit: 3, minIoU: 0.3, nextID: 1}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type pair struct {
	track, det int
	iou        float64
}

//Update advances every track by one frame. It returns all tracks touched by this frame,
//including those deleted by it, in creation order.
func (a *IOU) Update(detections []video.AssociatorDetection, _ gocv.Mat) ([]video.Track, error) {
	pairs := make([]pair, 0, len(a.tracks)*len(detections))
	for ti, t := range a.tracks {
		for di, d := range detections {
			if v := iou(t.ltwh, ltwhOf(d)); v >= a.minIoU && v > 0 {
				pairs = append(pairs, pair{track: ti, det: di, iou: v})
			}
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].iou > pairs[j].iou })

	trackMatched := make([]bool, len(a.tracks))
	detMatched := make([]bool, len(detections))
	for _, p := range pairs {
		if trackMatched[p.track] || detMatched[p.det] {
			continue
		}
		trackMatched[p.track], detMatched[p.det] = true, true

		t := a.tracks[p.track]
		t.ltwh = ltwhOf(detections[p.det])
		t.hits++
		t.misses = 0
		if t.state == video.Tentative && t.hits >= a.nInit {
			t.state = video.Confirmed
		}
	}

	for ti, t := range a.tracks {
		if trackMatched[ti] {
			continue
		}
		t.misses++
		t.hits = 0
		if t.state == video.Tentative || t.misses > a.maxAge {
			t.state = video.Deleted
		}
	}

	for di, d := range detections {
		if detMatched[di] {
			continue
		}
		t := &track{id: a.nextID, state: video.Tentative, ltwh: ltwhOf(d), hits: 1}
		if a.nInit <= 1 {
			t.state = video.Confirmed
		}
		a.nextID++
		a.tracks = append(a.tracks, t)
	}

	out := make([]video.Track, 0, len(a.tracks))
	live := a.tracks[:0]
	for _, t := range a.tracks {
		out = append(out, video.Track{ID: t.id, State: t.state, LTWH: t.ltwh})
		if t.state != video.Deleted {
			live = append(live, t)
		}
	}
	a.tracks = live
	return out, nil
}

//DeleteAll drops every track. Ids keep increasing afterwards.
func (a *IOU) DeleteAll() error {
	a.tracks = nil
	return nil
}

//Len is the number of live tracks.
func (a *IOU) Len() int { return len(a.tracks) }

func ltwhOf(d video.AssociatorDetection) [4]float64 {
	return [4]float64{d.Left, d.Top, d.Width, d.Height}
}

func iou(a, b [4]float64) float64 {
	ix1, iy1 := max(a[0], b[0]), max(a[1], b[1])
	ix2, iy2 := min(a[0]+a[2], b[0]+b[2]), min(a[1]+a[3], b[1]+b[3])
	if ix2 <= ix1 || iy2 <= iy1 {
		return 0
	}
	inter := (ix2 - ix1) * (iy2 - iy1)
	union := a[2]*a[3] + b[2]*b[3] - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}
