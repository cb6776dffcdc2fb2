package api

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chenBenjamin97/soccer-hud/pkg/config"
	"github.com/chenBenjamin97/soccer-hud/pkg/utils"
	"github.com/chenBenjamin97/soccer-hud/pkg/video"
	"github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"
)

type frameReply struct {
	video.FrameResult
	Error  string `json:"error"`
	Status string `json:"status"`
}

func dial(srv *httptest.Server, query string) (*websocket.Conn, *http.Response, error) {
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	return websocket.DefaultDialer.Dial(url, nil)
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestWebsocketFrames(t *testing.T) {
	payload := jpegFrame(t)

	Convey("Given a websocket client on a fresh session", t, func() {
		cfg := config.Default()
		cfg.Snapshot.Enabled = true
		r, manager := newTestRouter(cfg)
		srv := httptest.NewServer(r)
		defer srv.Close()

		conn, resp, err := dial(srv, "")
		So(err, ShouldBeNil)
		defer conn.Close()

		id := resp.Header.Get(sessionHeader)
		So(id, ShouldNotBeEmpty)
		So(manager.Len(), ShouldEqual, 1)

		Convey("When a base64 data URL frame is sent", func() {
			msg := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(payload)
			So(conn.WriteMessage(websocket.TextMessage, []byte(msg)), ShouldBeNil)

			var reply frameReply
			So(conn.ReadJSON(&reply), ShouldBeNil)

			Convey("Then one result record comes back", func() {
				So(reply.Error, ShouldBeEmpty)
				So(reply.Players, ShouldHaveLength, 2)
				So(reply.Ball, ShouldNotBeNil)
				So(reply.BallOwner, ShouldNotBeNil)
				So(reply.BallOwner.PlayerID, ShouldEqual, reply.Players[0].ID)
				So(reply.Timestamp, ShouldBeGreaterThan, 0)
			})

			Convey("Then an annotated snapshot is served", func() {
				w := httptest.NewRecorder()
				r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sessions/"+id+"/snapshot", nil))
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldEqual, "image/jpeg")
				So(w.Body.Bytes()[:2], ShouldResemble, []byte{0xFF, 0xD8})
			})
		})

		Convey("When a raw JPEG binary frame is sent", func() {
			So(conn.WriteMessage(websocket.BinaryMessage, payload), ShouldBeNil)

			var reply frameReply
			So(conn.ReadJSON(&reply), ShouldBeNil)
			So(reply.Error, ShouldBeEmpty)
			So(reply.Players, ShouldHaveLength, 2)
		})

		Convey("When garbage is sent", func() {
			So(conn.WriteMessage(websocket.TextMessage, []byte("not base64!")), ShouldBeNil)

			var reply frameReply
			So(conn.ReadJSON(&reply), ShouldBeNil)

			Convey("Then an error record comes back and the session keeps going", func() {
				So(reply.Status, ShouldEqual, utils.ProcessingFailedStatus)
				So(reply.Error, ShouldNotBeEmpty)

				So(conn.WriteMessage(websocket.BinaryMessage, payload), ShouldBeNil)
				var next frameReply
				So(conn.ReadJSON(&next), ShouldBeNil)
				So(next.Error, ShouldBeEmpty)
			})
		})

		Convey("When the first reply is read", func() {
			So(conn.WriteMessage(websocket.BinaryMessage, payload), ShouldBeNil)
			var first map[string]any
			So(conn.ReadJSON(&first), ShouldBeNil)

			Convey("Then it is the frame result, not a greeting", func() {
				So(first, ShouldContainKey, "players")
				So(first, ShouldNotContainKey, "session_id")
			})
		})

		Convey("When the session is deleted while streaming", func() {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/sessions/"+id, nil))
			So(w.Code, ShouldEqual, http.StatusNoContent)

			So(conn.WriteMessage(websocket.BinaryMessage, payload), ShouldBeNil)
			_, _, err := conn.ReadMessage()

			Convey("Then the server closes the connection", func() {
				So(websocket.IsCloseError(err, websocket.CloseNormalClosure), ShouldBeTrue)
			})
		})

		Convey("When the client disconnects", func() {
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			conn.Close()

			Convey("Then the connection-bound session is removed", func() {
				So(waitFor(func() bool { return manager.Len() == 0 }), ShouldBeTrue)
			})
		})
	})
}

func TestWebsocketFrameLimit(t *testing.T) {
	Convey("Given a server accepting frames of at most 1 KiB", t, func() {
		cfg := config.Default()
		cfg.Server.MaxFrameBytes = 1024
		r, manager := newTestRouter(cfg)
		srv := httptest.NewServer(r)
		defer srv.Close()

		conn, _, err := dial(srv, "")
		So(err, ShouldBeNil)
		defer conn.Close()

		Convey("When a larger frame is sent", func() {
			So(conn.WriteMessage(websocket.BinaryMessage, make([]byte, 4096)), ShouldBeNil)
			_, _, err := conn.ReadMessage()

			Convey("Then the connection is closed and its session released", func() {
				So(err, ShouldNotBeNil)
				So(websocket.IsCloseError(err, websocket.CloseMessageTooBig), ShouldBeTrue)
				So(waitFor(func() bool { return manager.Len() == 0 }), ShouldBeTrue)
			})
		})
	})
}

func TestWebsocketReattach(t *testing.T) {
	Convey("Given a session created through the control surface", t, func() {
		r, manager := newTestRouter(config.Default())
		srv := httptest.NewServer(r)
		defer srv.Close()

		s, err := manager.Create(context.Background(), true)
		So(err, ShouldBeNil)

		Convey("When a client attaches to it and leaves", func() {
			conn, resp, err := dial(srv, "?session="+s.ID)
			So(err, ShouldBeNil)
			So(resp.Header.Get(sessionHeader), ShouldEqual, s.ID)
			conn.Close()

			Convey("Then the session outlives the connection", func() {
				time.Sleep(50 * time.Millisecond)
				So(manager.Len(), ShouldEqual, 1)
			})
		})

		Convey("When a client names another connection's session", func() {
			first, resp, err := dial(srv, "")
			So(err, ShouldBeNil)
			defer first.Close()

			_, resp, err = dial(srv, "?session="+resp.Header.Get(sessionHeader))

			Convey("Then the upgrade is refused with 404", func() {
				So(errors.Is(err, websocket.ErrBadHandshake), ShouldBeTrue)
				So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When a client names an unknown session", func() {
			_, resp, err := dial(srv, "?session=missing")

			Convey("Then the upgrade is refused with 404", func() {
				So(errors.Is(err, websocket.ErrBadHandshake), ShouldBeTrue)
				So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestDecodeMessage(t *testing.T) {
	raw := []byte{0xFF, 0xD8, 0xFF}
	encoded := base64.StdEncoding.EncodeToString(raw)

	Convey("Given websocket messages", t, func() {
		Convey("Binary messages pass through", func() {
			out, err := decodeMessage(websocket.BinaryMessage, raw)
			So(err, ShouldBeNil)
			So(out, ShouldResemble, raw)
		})

		Convey("Plain base64 text is decoded", func() {
			out, err := decodeMessage(websocket.TextMessage, []byte(encoded))
			So(err, ShouldBeNil)
			So(out, ShouldResemble, raw)
		})

		Convey("A data URL prefix is stripped", func() {
			out, err := decodeMessage(websocket.TextMessage, []byte("data:image/jpeg;base64,"+encoded))
			So(err, ShouldBeNil)
			So(out, ShouldResemble, raw)
		})

		Convey("Broken input is a decode error", func() {
			_, err := decodeMessage(websocket.TextMessage, []byte("%%%"))
			So(errors.Is(err, video.ErrDecodeFrame), ShouldBeTrue)

			_, err = decodeMessage(websocket.TextMessage, []byte("data:image/jpeg;base64"))
			So(errors.Is(err, video.ErrDecodeFrame), ShouldBeTrue)
		})
	})
}
