//Package detection runs a YOLOv8 ONNX model through gocv's DNN module.
package detection

import (
	"errors"
	"fmt"
	"image"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chenBenjamin97/soccer-hud/pkg/video"
	"gocv.io/x/gocv"
)

const defaultInputSize = 640

//ErrModel is returned when the model cannot be loaded.
var ErrModel = errors.New("load model")

//ProviderInfo describes the loaded model and where it runs.
type ProviderInfo struct {
	ModelPath string        `json:"model_path"`
	Backend   string        `json:"backend"`
	InitTime  time.Duration `json:"init_time"`
}

//YOLO implements video.Detector. The underlying net is not reentrant, so calls are
//serialized; one YOLO is shared by every session.
type YOLO struct {
	mu   sync.Mutex
	net  gocv.Net
	info ProviderInfo
}

//NewYOLO loads an ONNX model. backend is one of cpu, cuda or opencl.
func NewYOLO(modelPath, backend string) (*YOLO, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModel, err)
	}

	start := time.Now()
	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return nil, fmt.Errorf("%w: could not read %s", ErrModel, modelPath)
	}

	if err := setBackend(&net, backend); err != nil {
		net.Close()
		return nil, err
	}

	return &YOLO{
		net: net,
		info: ProviderInfo{
			ModelPath: modelPath,
			Backend:   strings.ToLower(backend),
			InitTime:  time.Since(start),
		},
	}, nil
}

func setBackend(net *gocv.Net, backend string) error {
	var (
		b gocv.NetBackendType
		t gocv.NetTargetType
	)
	switch strings.ToLower(backend) {
	case "", "cpu":
		b, t = gocv.NetBackendDefault, gocv.NetTargetCPU
	case "cuda":
		b, t = gocv.NetBackendCUDA, gocv.NetTargetCUDA
	case "opencl":
		b, t = gocv.NetBackendDefault, gocv.NetTargetFP32
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrModel, backend)
	}
	if err := net.SetPreferableBackend(b); err != nil {
		return fmt.Errorf("%w: %v", ErrModel, err)
	}
	if err := net.SetPreferableTarget(t); err != nil {
		return fmt.Errorf("%w: %v", ErrModel, err)
	}
	return nil
}

//Info returns details about the loaded model.
func (y *YOLO) Info() ProviderInfo { return y.info }

//Close releases the net.
func (y *YOLO) Close() error {
	y.mu.Lock()
	defer y.mu.Unlock()
	return y.net.Close()
}

//Detect runs one inference and returns detections in frame pixels.
func (y *YOLO) Detect(frame gocv.Mat, opts video.DetectOptions) ([]video.RawDetection, error) {
	if frame.Empty() {
		return nil, errors.New("empty frame")
	}
	size := opts.InputSize
	if size <= 0 {
		size = defaultInputSize
	}

	y.mu.Lock()
	defer y.mu.Unlock()

	blob := gocv.BlobFromImage(frame, 1.0/255.0, image.Pt(size, size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	y.net.SetInput(blob, "")
	output := y.net.Forward("")
	defer output.Close()

	dims := output.Size()
	if len(dims) != 3 {
		return nil, fmt.Errorf("unexpected output shape %v", dims)
	}
	attrs, candidates := dims[1], dims[2]

	rows := output.Reshape(1, attrs)
	defer rows.Close()
	transposed := gocv.NewMat()
	defer transposed.Close()
	gocv.Transpose(rows, &transposed)

	data, err := transposed.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}

	scaleX := float64(frame.Cols()) / float64(size)
	scaleY := float64(frame.Rows()) / float64(size)
	return suppress(decodeOutput(data, candidates, attrs, scaleX, scaleY, opts), opts), nil
}

//decodeOutput reads YOLOv8 rows laid out as [cx, cy, w, h, score per class...] and keeps
//those whose best class passes the filter and the confidence floor.
func decodeOutput(data []float32, candidates, attrs int, scaleX, scaleY float64, opts video.DetectOptions) []video.RawDetection {
	var out []video.RawDetection
	for i := 0; i < candidates; i++ {
		row := data[i*attrs : (i+1)*attrs]

		class, score := -1, float32(0)
		for c, s := range row[4:] {
			if s > score {
				class, score = c, s
			}
		}
		if class < 0 || float64(score) < opts.Confidence || !opts.AllowsClass(class) {
			continue
		}

		cx, cy := float64(row[0])*scaleX, float64(row[1])*scaleY
		w, h := float64(row[2])*scaleX, float64(row[3])*scaleY
		out = append(out, video.RawDetection{
			Class:      class,
			Box:        video.BoxFromCenter(cx, cy, w, h),
			Confidence: float64(score),
		})
	}
	return out
}

//suppress runs non-maximum suppression per class.
func suppress(detections []video.RawDetection, opts video.DetectOptions) []video.RawDetection {
	byClass := make(map[int][]int)
	var order []int
	for i, d := range detections {
		if _, ok := byClass[d.Class]; !ok {
			order = append(order, d.Class)
		}
		byClass[d.Class] = append(byClass[d.Class], i)
	}

	kept := make([]video.RawDetection, 0, len(detections))
	for _, class := range order {
		members := byClass[class]
		boxes := make([]image.Rectangle, len(members))
		scores := make([]float32, len(members))
		for j, idx := range members {
			b := detections[idx].Box
			boxes[j] = image.Rect(int(b.X1), int(b.Y1), int(b.X2), int(b.Y2))
			scores[j] = float32(detections[idx].Confidence)
		}
		for _, j := range gocv.NMSBoxes(boxes, scores, float32(opts.Confidence), float32(opts.IoU)) {
			kept = append(kept, detections[members[j]])
		}
	}
	return kept
}
