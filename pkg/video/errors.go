package video

import "errors"

var (
	//ErrDecodeFrame is returned for empty or undecodable frame payloads
	ErrDecodeFrame = errors.New("decode frame")
	//ErrDetection wraps failures of the detector capability
	ErrDetection = errors.New("detection failed")
	//ErrAssociation wraps failures of the track associator capability
	ErrAssociation = errors.New("association failed")
)

//FailureKind names the class of a per-frame failure, for metrics and logs
func FailureKind(err error) string {
	switch {
	case errors.Is(err, ErrDecodeFrame):
		return "decode"
	case errors.Is(err, ErrDetection):
		return "detection"
	case errors.Is(err, ErrAssociation):
		return "association"
	default:
		return "unknown"
	}
}
