package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chenBenjamin97/soccer-hud/pkg/api"
	"github.com/chenBenjamin97/soccer-hud/pkg/config"
	"github.com/chenBenjamin97/soccer-hud/pkg/detection"
	"github.com/chenBenjamin97/soccer-hud/pkg/logger"
	"github.com/chenBenjamin97/soccer-hud/pkg/session"
	"github.com/chenBenjamin97/soccer-hud/pkg/video"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

func main() {
	configPath := flag.String("config", os.Getenv(config.EnvPrefix+"_CONFIG"), "path to a YAML config file")
	flag.Parse()

	if err := logger.Init("info", os.Stderr); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.Named("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error(ctx, "could not load config", logger.Error(err))
		os.Exit(1)
	}
	if err := logger.SetLevelString(cfg.Log.Level); err != nil {
		log.Warn(ctx, "invalid log.level, falling back to info", logger.String("level", cfg.Log.Level))
		_ = logger.SetLevelString("info")
	}

	//a nil detector keeps the control surface up while every frame fails with a detection error
	var detector video.Detector
	if cfg.Model.Enabled {
		yolo, err := detection.NewYOLO(cfg.Model.Path, cfg.Model.Backend)
		if err != nil {
			log.Error(ctx, "could not load model, frames will fail until it is fixed", logger.Error(err))
		} else {
			defer yolo.Close()
			info := yolo.Info()
			log.Info(ctx, "model loaded",
				logger.String("path", info.ModelPath),
				logger.String("backend", info.Backend),
				logger.Any("init_time", info.InitTime.String()),
			)
			detector = yolo
		}
	}

	manager := session.NewManager(cfg, detector)
	defer manager.CloseAll(context.Background())

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api.SetRouter(cfg, manager),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "server ready", logger.String("ws", "ws://"+cfg.Addr()+"/ws"))
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "server stopped", logger.Error(err))
		}
	case <-ctx.Done():
		log.Info(context.Background(), "shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error(shutdownCtx, "graceful shutdown failed", logger.Error(err))
		}
	}
}
