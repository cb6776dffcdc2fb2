package api

import (
	"testing"

	"github.com/chenBenjamin97/soccer-hud/pkg/config"
	"github.com/chenBenjamin97/soccer-hud/pkg/session"
	"github.com/chenBenjamin97/soccer-hud/pkg/video"
	"github.com/gin-gonic/gin"
	"gocv.io/x/gocv"
)

//pitch sees two players and a ball at the feet of the left one
type pitch struct{}

func (pitch) Detect(_ gocv.Mat, opts video.DetectOptions) ([]video.RawDetection, error) {
	if len(opts.Classes) > 0 {
		return []video.RawDetection{{Class: 32, Box: video.BoxFromCenter(35, 85, 6, 6), Confidence: 0.7}}, nil
	}
	return []video.RawDetection{
		{Class: 0, Box: video.BoxFromCenter(30, 60, 20, 60), Confidence: 0.9},
		{Class: 0, Box: video.BoxFromCenter(120, 60, 20, 60), Confidence: 0.8},
	}, nil
}

func newTestRouter(cfg *config.Config) (*gin.Engine, *session.Manager) {
	gin.SetMode(gin.TestMode)
	manager := session.NewManager(cfg, pitch{})
	return SetRouter(cfg, manager), manager
}

func jpegFrame(t *testing.T) []byte {
	t.Helper()
	frame := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	defer frame.Close()
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, frame)
	if err != nil {
		t.Fatalf("encode frame: %v", err)
	}
	defer buf.Close()
	return append([]byte(nil), buf.GetBytes()...)
}
