package association

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/chenBenjamin97/soccer-hud/pkg/logger"
	"github.com/chenBenjamin97/soccer-hud/pkg/video"
	"gocv.io/x/gocv"
)

var (
	ErrBridgeClosed = errors.New("deepsort bridge closed")
	ErrBridge       = errors.New("deepsort bridge")
)

//maxReplySize bounds one line read from the tracker process
const maxReplySize = 4 << 20

type request struct {
	Op         string       `json:"op"`
	Detections [][6]float64 `json:"detections,omitempty"`
	Frame      string       `json:"frame,omitempty"`
}

type wireTrack struct {
	ID    int        `json:"id"`
	State string     `json:"state"`
	LTWH  [4]float64 `json:"ltwh"`
}

type reply struct {
	Tracks []wireTrack `json:"tracks"`
	Error  string      `json:"error,omitempty"`
}

//DeepSort drives a DeepSORT tracker living in an external process. Requests and replies are
//newline delimited JSON over the process's standard input and output, one reply per request.
type DeepSort struct {
	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	scanner *bufio.Scanner
	closed  bool
	logger  logger.Logger
}

//StartDeepSort runs python with the bridge script and extra command line args
func StartDeepSort(ctx context.Context, python, script string, args ...string) (*DeepSort, error) {
	return NewDeepSort(ctx, exec.Command(python, append([]string{script}, args...)...))
}

//NewDeepSort starts cmd and speaks the bridge protocol with it
func NewDeepSort(ctx context.Context, cmd *exec.Cmd) (*DeepSort, error) {
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBridge, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBridge, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start %s: %v", ErrBridge, cmd.Path, err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxReplySize)

	d := &DeepSort{
		cmd:     cmd,
		stdin:   stdin,
		scanner: scanner,
		logger:  logger.Named("deepsort"),
	}
	d.logger.Info(ctx, "tracker process started", logger.Int("pid", cmd.Process.Pid))
	return d, nil
}

func (d *DeepSort) Update(detections []video.AssociatorDetection, frame gocv.Mat) ([]video.Track, error) {
	req := request{Op: "update", Detections: make([][6]float64, len(detections))}
	for i, det := range detections {
		req.Detections[i] = [6]float64{det.Left, det.Top, det.Width, det.Height, det.Confidence, float64(det.Class)}
	}
	if !frame.Empty() {
		buf, err := gocv.IMEncode(gocv.JPEGFileExt, frame)
		if err != nil {
			return nil, fmt.Errorf("%w: encode frame: %v", ErrBridge, err)
		}
		req.Frame = base64.StdEncoding.EncodeToString(buf.GetBytes())
		buf.Close()
	}

	rep, err := d.roundTrip(req)
	if err != nil {
		return nil, err
	}

	tracks := make([]video.Track, 0, len(rep.Tracks))
	for _, t := range rep.Tracks {
		tracks = append(tracks, video.Track{ID: t.ID, State: parseState(t.State), LTWH: t.LTWH})
	}
	return tracks, nil
}

func (d *DeepSort) DeleteAll() error {
	_, err := d.roundTrip(request{Op: "delete_all"})
	return err
}

func (d *DeepSort) roundTrip(req request) (*reply, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrBridgeClosed
	}

	line, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBridge, err)
	}
	if _, err := d.stdin.Write(append(line, '\n')); err != nil {
		return nil, fmt.Errorf("%w: write: %v", ErrBridge, err)
	}

	if !d.scanner.Scan() {
		if err := d.scanner.Err(); err != nil {
			return nil, fmt.Errorf("%w: read: %v", ErrBridge, err)
		}
		return nil, fmt.Errorf("%w: process exited", ErrBridge)
	}

	rep := &reply{}
	if err := json.Unmarshal(d.scanner.Bytes(), rep); err != nil {
		return nil, fmt.Errorf("%w: bad reply: %v", ErrBridge, err)
	}
	if rep.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrBridge, rep.Error)
	}
	return rep, nil
}

//Close ends the tracker process by closing its input and waits for it
func (d *DeepSort) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	if err := d.stdin.Close(); err != nil {
		d.logger.Warn(context.Background(), "closing tracker input", logger.Error(err))
	}
	if err := d.cmd.Wait(); err != nil {
		return fmt.Errorf("%w: wait: %v", ErrBridge, err)
	}
	return nil
}

func parseState(s string) video.TrackState {
	switch s {
	case "confirmed":
		return video.Confirmed
	case "deleted":
		return video.Deleted
	default:
		return video.Tentative
	}
}
