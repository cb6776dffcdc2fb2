package association

import (
	"context"
	"fmt"
	"strconv"

	"github.com/chenBenjamin97/soccer-hud/pkg/config"
	"github.com/chenBenjamin97/soccer-hud/pkg/video"
)

const (
	KindIOU      = "iou"
	KindDeepSort = "deepsort"
)

//New builds the associator named by cfg. It returns nil when tracking is disabled.
//Callers own the result and should close it when it implements io.Closer.
func New(ctx context.Context, cfg config.TrackingConfig) (video.Associator, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	switch cfg.Associator {
	case KindIOU, "":
		return NewIOU(
			WithMaxAge(cfg.MaxAge),
			WithNInit(cfg.NInit),
			WithMaxIoUDistance(cfg.MaxIoUDistance),
		), nil
	case KindDeepSort:
		d, err := StartDeepSort(ctx, cfg.DeepSort.Python, cfg.DeepSort.Script,
			"--embedder", cfg.DeepSort.Embedder,
			"--max-age", strconv.Itoa(cfg.MaxAge),
			"--n-init", strconv.Itoa(cfg.NInit),
			"--max-iou-distance", strconv.FormatFloat(cfg.MaxIoUDistance, 'f', -1, 64),
		)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown associator %q", cfg.Associator)
	}
}
