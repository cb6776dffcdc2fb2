package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/chenBenjamin97/soccer-hud/pkg/config"
	"github.com/chenBenjamin97/soccer-hud/pkg/logger"
	"github.com/chenBenjamin97/soccer-hud/pkg/metrics"
	"github.com/chenBenjamin97/soccer-hud/pkg/roster"
	"github.com/chenBenjamin97/soccer-hud/pkg/session"
	"github.com/chenBenjamin97/soccer-hud/pkg/utils"
	"github.com/chenBenjamin97/soccer-hud/pkg/video"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const serviceName = "SoccerHUD Backend"

type handler struct {
	manager       *session.Manager
	upgrader      websocket.Upgrader
	maxFrameBytes int64
	logger        logger.Logger
}

//SetRouter wires the websocket frame ingress and the session control routes
func SetRouter(cfg *config.Config, manager *session.Manager) *gin.Engine {
	h := &handler{
		manager: manager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     originChecker(cfg.Server.CORSOrigins),
		},
		maxFrameBytes: cfg.Server.MaxFrameBytes,
		logger:        logger.Named("api"),
	}

	r := gin.Default()
	r.Use(cors.New(corsConfig(cfg.Server.CORSOrigins)))

	r.GET("/", h.root)
	r.GET("/health", h.health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/ws", h.serveWS)

	apiRoutes := r.Group("/api")

	apiRoutes.POST("/sessions", h.createSession)
	apiRoutes.GET("/sessions", h.listSessions)

	sessionRoutes := apiRoutes.Group("/sessions/:id")
	sessionRoutes.DELETE("", h.deleteSession)
	sessionRoutes.POST("/roster", h.setRoster)
	sessionRoutes.GET("/roster", h.getRoster)
	sessionRoutes.POST("/match", h.match)
	sessionRoutes.POST("/reset", h.reset)
	sessionRoutes.GET("/snapshot", h.snapshot)

	return r
}

func corsConfig(origins []string) cors.Config {
	c := cors.DefaultConfig()
	c.AllowBrowserExtensions = true
	c.AllowWebSockets = true
	c.ExposeHeaders = []string{sessionHeader}
	if utils.InSlice("*", origins) {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = origins
	return c
}

func originChecker(origins []string) func(*http.Request) bool {
	if utils.InSlice("*", origins) {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || utils.InSlice(origin, origins)
	}
}

func errorBody(msg string) gin.H {
	return gin.H{"status": "error", "message": msg}
}

func (h *handler) root(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": serviceName,
		"message": "WebSocket available at /ws",
	})
}

func (h *handler) health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"status":       "healthy",
		"model_loaded": h.manager.DetectorLoaded(),
		"sessions":     h.manager.Len(),
	})
}

//lookup resolves the :id route parameter, answering 404 itself when it is unknown
func (h *handler) lookup(ctx *gin.Context) (*session.Session, bool) {
	s, err := h.manager.Get(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusNotFound, errorBody(err.Error()))
		return nil, false
	}
	return s, true
}

func (h *handler) createSession(ctx *gin.Context) {
	s, err := h.manager.Create(ctx.Request.Context(), true)
	if err != nil {
		h.logger.Error(ctx.Request.Context(), "could not create session", logger.Error(err))
		ctx.JSON(http.StatusInternalServerError, errorBody(err.Error()))
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"status": "success", "session_id": s.ID})
}

func (h *handler) listSessions(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "success", "sessions": h.manager.List()})
}

func (h *handler) deleteSession(ctx *gin.Context) {
	err := h.manager.Remove(ctx.Request.Context(), ctx.Param("id"))
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		ctx.JSON(http.StatusNotFound, errorBody(err.Error()))
	case err != nil:
		//the session is gone either way, only its associator failed to stop cleanly
		h.logger.Warn(ctx.Request.Context(), "session closed with error", logger.Error(err))
		ctx.Status(http.StatusNoContent)
	default:
		ctx.Status(http.StatusNoContent)
	}
}

type rosterRequest struct {
	Home []roster.Entry `json:"home"`
	Away []roster.Entry `json:"away"`
}

func (h *handler) setRoster(ctx *gin.Context) {
	s, ok := h.lookup(ctx)
	if !ok {
		return
	}

	var req rosterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	summary := s.SetRoster(ctx.Request.Context(), req.Home, req.Away)
	ctx.JSON(http.StatusOK, gin.H{"status": "success", "roster": summary})
}

func (h *handler) getRoster(ctx *gin.Context) {
	s, ok := h.lookup(ctx)
	if !ok {
		return
	}

	home, away, summary := s.Roster()
	ctx.JSON(http.StatusOK, gin.H{
		"status":   "success",
		"roster":   gin.H{"home": home, "away": away},
		"summary":  summary,
		"bindings": s.Bindings(),
	})
}

type matchRequest struct {
	TrackID *int   `json:"track_id" form:"track_id"`
	Team    string `json:"team" form:"team"`
	Number  int    `json:"number" form:"number"`
}

//match accepts its fields from a JSON body or from the query string
func (h *handler) match(ctx *gin.Context) {
	s, ok := h.lookup(ctx)
	if !ok {
		return
	}

	var req matchRequest
	var err error
	if ctx.Request.ContentLength > 0 {
		err = ctx.ShouldBindJSON(&req)
	} else {
		err = ctx.ShouldBindQuery(&req)
	}
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if req.TrackID == nil {
		ctx.JSON(http.StatusBadRequest, errorBody("track_id is required"))
		return
	}

	binding, matched := s.Bind(ctx.Request.Context(), *req.TrackID, video.Team(req.Team), req.Number)
	body := gin.H{
		"status":  "success",
		"matched": matched,
		"summary": s.Info().Roster,
	}
	if matched {
		body["binding"] = binding
		body["message"] = "Track ID " + strconv.Itoa(*req.TrackID) + " matched to " + req.Team + " #" + strconv.Itoa(req.Number)
	} else {
		body["message"] = "no roster entry for " + req.Team + " #" + strconv.Itoa(req.Number)
	}
	ctx.JSON(http.StatusOK, body)
}

func (h *handler) reset(ctx *gin.Context) {
	s, ok := h.lookup(ctx)
	if !ok {
		return
	}
	if err := s.Reset(ctx.Request.Context()); err != nil {
		h.logger.Error(ctx.Request.Context(), "reset failed", logger.String("session_id", s.ID), logger.Error(err))
		ctx.JSON(http.StatusBadGateway, errorBody(err.Error()))
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *handler) snapshot(ctx *gin.Context) {
	s, ok := h.lookup(ctx)
	if !ok {
		return
	}
	jpeg := s.Snapshot()
	if jpeg == nil {
		ctx.JSON(http.StatusNotFound, errorBody("no snapshot available"))
		return
	}
	ctx.Data(http.StatusOK, "image/jpeg", jpeg)
}
