package api

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/chenBenjamin97/soccer-hud/pkg/logger"
	"github.com/chenBenjamin97/soccer-hud/pkg/metrics"
	"github.com/chenBenjamin97/soccer-hud/pkg/session"
	"github.com/chenBenjamin97/soccer-hud/pkg/video"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const sessionHeader = "X-Session-ID"

//serveWS streams frames of one session: every inbound message gets exactly one reply,
//a frame result or an error record. The session id travels in the X-Session-ID upgrade
//header only. ?session=<id> joins a session created through POST /api/sessions.
func (h *handler) serveWS(ctx *gin.Context) {
	reqCtx := ctx.Request.Context()

	s, err := h.manager.Attach(reqCtx, ctx.Query("session"))
	if errors.Is(err, session.ErrSessionNotFound) {
		ctx.JSON(http.StatusNotFound, errorBody(err.Error()))
		return
	}
	if err != nil {
		h.logger.Error(reqCtx, "could not open session", logger.Error(err))
		ctx.JSON(http.StatusInternalServerError, errorBody(err.Error()))
		return
	}

	conn, err := h.upgrader.Upgrade(ctx.Writer, ctx.Request, http.Header{sessionHeader: []string{s.ID}})
	if err != nil {
		h.logger.Warn(reqCtx, "websocket upgrade failed", logger.Error(err))
		h.manager.Release(reqCtx, s)
		return
	}
	defer conn.Close()
	defer h.manager.Release(reqCtx, s)

	//oversized messages end the connection with a 1009 close before they are buffered
	conn.SetReadLimit(h.maxFrameBytes)
	h.logger.Info(reqCtx, "websocket client connected", logger.String("session_id", s.ID))

	for frameCount := 1; ; frameCount++ {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn(reqCtx, "websocket closed unexpectedly", logger.String("session_id", s.ID), logger.Error(err))
			} else {
				h.logger.Info(reqCtx, "websocket client disconnected", logger.String("session_id", s.ID))
			}
			return
		}

		var result *video.FrameResult
		payload, err := decodeMessage(messageType, data)
		if err != nil {
			//never reaches the pipeline, so it is counted here
			metrics.RecordFrameFailure(video.FailureKind(err))
		} else {
			result, err = s.Process(reqCtx, payload)
		}
		if errors.Is(err, session.ErrSessionClosed) {
			h.logger.Info(reqCtx, "session removed while streaming, closing connection", logger.String("session_id", s.ID))
			closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed")
			_ = conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(time.Second))
			return
		}

		var reply any
		if err != nil {
			h.logger.Error(reqCtx, "frame processing failed",
				logger.String("session_id", s.ID),
				logger.Int("frame", frameCount),
				logger.Error(err),
			)
			reply = video.NewFrameError(err)
		} else {
			h.logger.Debug(reqCtx, "frame processed",
				logger.String("session_id", s.ID),
				logger.Int("frame", frameCount),
				logger.Int("players", len(result.Players)),
				logger.Any("ball", result.Ball != nil),
			)
			reply = result
		}

		if err := conn.WriteJSON(reply); err != nil {
			h.logger.Warn(reqCtx, "could not write reply", logger.String("session_id", s.ID), logger.Error(err))
			return
		}
	}
}

//decodeMessage turns one websocket message into JPEG bytes. Text messages carry base64,
//optionally as a data URL; binary messages are the JPEG itself.
func decodeMessage(messageType int, data []byte) ([]byte, error) {
	switch messageType {
	case websocket.BinaryMessage:
		return data, nil
	case websocket.TextMessage:
		text := strings.TrimSpace(string(data))
		if strings.HasPrefix(text, "data:") {
			comma := strings.IndexByte(text, ',')
			if comma < 0 {
				return nil, fmt.Errorf("%w: data url without payload", video.ErrDecodeFrame)
			}
			text = text[comma+1:]
		}
		payload, err := base64.StdEncoding.DecodeString(text)
		if err != nil {
			return nil, fmt.Errorf("%w: base64: %v", video.ErrDecodeFrame, err)
		}
		return payload, nil
	default:
		return nil, fmt.Errorf("%w: unsupported message type %d", video.ErrDecodeFrame, messageType)
	}
}
