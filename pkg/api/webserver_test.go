package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/chenBenjamin97/soccer-hud/pkg/config"
	. "github.com/smartystreets/goconvey/convey"
)

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder) map[string]any {
	out := map[string]any{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return out
}

func TestServiceRoutes(t *testing.T) {
	Convey("Given the router", t, func() {
		r, _ := newTestRouter(config.Default())

		Convey("When calling the root", func() {
			w := do(r, http.MethodGet, "/", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["status"], ShouldEqual, "ok")
		})

		Convey("When calling health", func() {
			w := do(r, http.MethodGet, "/health", "")
			body := decode(w)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(body["status"], ShouldEqual, "healthy")
			So(body["model_loaded"], ShouldEqual, true)
			So(body["sessions"], ShouldEqual, 0.0)
		})

		Convey("When scraping metrics", func() {
			w := do(r, http.MethodGet, "/metrics", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "soccerhud_pipeline_frames_processed_total")
		})

		Convey("When a browser extension sends a preflight", func() {
			req := httptest.NewRequest(http.MethodOptions, "/api/sessions", nil)
			req.Header.Set("Origin", "chrome-extension://abcdef")
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			So(w.Code, ShouldBeLessThan, 300)
			So(w.Header().Get("Access-Control-Allow-Origin"), ShouldNotBeEmpty)
		})
	})
}

func TestSessionRoutes(t *testing.T) {
	Convey("Given a pre-created session", t, func() {
		r, manager := newTestRouter(config.Default())

		w := do(r, http.MethodPost, "/api/sessions", "")
		So(w.Code, ShouldEqual, http.StatusCreated)
		id, _ := decode(w)["session_id"].(string)
		So(id, ShouldNotBeEmpty)
		base := "/api/sessions/" + id

		Convey("Then it is listed", func() {
			w := do(r, http.MethodGet, "/api/sessions", "")
			sessions := decode(w)["sessions"].([]any)
			So(sessions, ShouldHaveLength, 1)
			So(sessions[0].(map[string]any)["session_id"], ShouldEqual, id)
		})

		Convey("When a roster is posted", func() {
			w := do(r, http.MethodPost, base+"/roster",
				`{"home":[{"name":"Son","number":7,"position":"FW"}],"away":[{"name":"Messi","number":10}]}`)

			Convey("Then the summary counts both teams", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				summary := decode(w)["roster"].(map[string]any)
				So(summary["home"], ShouldEqual, 1.0)
				So(summary["away"], ShouldEqual, 1.0)
				So(summary["matched"], ShouldEqual, 0.0)
			})

			Convey("Then a match by query string binds the track", func() {
				w := do(r, http.MethodPost, base+"/match?track_id=5&team=home&number=7", "")
				body := decode(w)
				So(w.Code, ShouldEqual, http.StatusOK)
				So(body["matched"], ShouldEqual, true)

				binding := body["binding"].(map[string]any)
				So(binding["player"].(map[string]any)["name"], ShouldEqual, "Son")

				w = do(r, http.MethodGet, base+"/roster", "")
				So(decode(w)["summary"].(map[string]any)["matched"], ShouldEqual, 1.0)
			})

			Convey("Then a match by JSON body binds the track", func() {
				w := do(r, http.MethodPost, base+"/match", `{"track_id":9,"team":"away","number":10}`)
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode(w)["matched"], ShouldEqual, true)
			})

			Convey("Then an unknown number is reported, not failed", func() {
				w := do(r, http.MethodPost, base+"/match?track_id=5&team=home&number=99", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode(w)["matched"], ShouldEqual, false)
			})

			Convey("Then an unknown team is reported, not failed", func() {
				w := do(r, http.MethodPost, base+"/match?track_id=5&team=referee&number=7", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode(w)["matched"], ShouldEqual, false)
			})
		})

		Convey("When a match omits the track id", func() {
			w := do(r, http.MethodPost, base+"/match?team=home&number=7", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When a match carries a malformed track id", func() {
			w := do(r, http.MethodPost, base+"/match?track_id=abc&team=home&number=7", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the roster body is not JSON", func() {
			w := do(r, http.MethodPost, base+"/roster", `{"home":`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When tracks are reset", func() {
			w := do(r, http.MethodPost, base+"/reset", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("When asking for a snapshot while snapshots are off", func() {
			w := do(r, http.MethodGet, base+"/snapshot", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When the session is deleted", func() {
			w := do(r, http.MethodDelete, base, "")
			So(w.Code, ShouldEqual, http.StatusNoContent)
			So(manager.Len(), ShouldEqual, 0)

			Convey("Then its routes answer 404", func() {
				So(do(r, http.MethodDelete, base, "").Code, ShouldEqual, http.StatusNotFound)
				So(do(r, http.MethodGet, base+"/roster", "").Code, ShouldEqual, http.StatusNotFound)
				So(do(r, http.MethodPost, base+"/match?track_id=1", "").Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Reset(func() {
			manager.CloseAll(context.Background())
		})
	})
}

func TestOriginChecker(t *testing.T) {
	Convey("Given an explicit origin list", t, func() {
		check := originChecker([]string{"https://www.youtube.com"})

		request := func(origin string) *http.Request {
			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if origin != "" {
				req.Header.Set("Origin", origin)
			}
			return req
		}

		So(check(request("https://www.youtube.com")), ShouldBeTrue)
		So(check(request("")), ShouldBeTrue)
		So(check(request("https://evil.example")), ShouldBeFalse)
		So(corsConfig([]string{"https://www.youtube.com"}).AllowAllOrigins, ShouldBeFalse)
	})

	Convey("Given a wildcard origin", t, func() {
		So(originChecker([]string{"*"})(httptest.NewRequest(http.MethodGet, "/ws", nil)), ShouldBeTrue)
		So(corsConfig([]string{"*"}).AllowAllOrigins, ShouldBeTrue)
	})
}
