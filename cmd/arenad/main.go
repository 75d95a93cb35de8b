// Command arenad is the main service: the core locator plus its
// external adapters (message bus, HTTP video feed and dashboard), run
// as a single process.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/connectedhumber/arena-locator/internal/arena"
	"github.com/connectedhumber/arena-locator/internal/bus"
	"github.com/connectedhumber/arena-locator/internal/config"
	"github.com/connectedhumber/arena-locator/internal/core"
	"github.com/connectedhumber/arena-locator/internal/httpserver"
	"github.com/connectedhumber/arena-locator/internal/observability"
	"github.com/connectedhumber/arena-locator/internal/params"
	"github.com/connectedhumber/arena-locator/internal/recorder"
	"github.com/connectedhumber/arena-locator/internal/storage"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	store := params.New()
	if err := store.Load(cfg.Params.Path); err != nil {
		log.Warn("load parameter file, starting from defaults", "path", cfg.Params.Path, "error", err)
	}
	store.Set(params.FrameWidth, float64(cfg.Camera.FrameWidth))
	store.Set(params.FrameHeight, float64(cfg.Camera.FrameHeight))

	log.Info("starting arena locator", "port", cfg.Server.Port, "camera_index", cfg.Camera.DeviceIndex)

	c, err := core.New(store, core.Options{
		CameraIndex:   cfg.Camera.DeviceIndex,
		UseSmallEdges: cfg.Camera.UseSmallEdges,
		RecordingFPS:  cfg.Camera.RecordingFPS,
		Log:           log,
	})
	if err != nil {
		log.Error("camera open failed", "error", err)
		os.Exit(1)
	}
	defer c.Stop()

	if cfg.Storage.MinIO.Enabled() && cfg.Camera.RecordingFPS > 0 {
		clips, err := storage.NewClipStore(cfg.Storage.MinIO)
		if err != nil {
			log.Warn("connect to minio, recording disabled", "error", err)
		} else if err := clips.EnsureBucket(context.Background()); err != nil {
			log.Warn("ensure clip bucket, recording disabled", "error", err)
		} else {
			rec := recorder.New(clips, log, os.TempDir(), float64(cfg.Camera.RecordingFPS),
				cfg.Camera.FrameWidth, cfg.Camera.FrameHeight, 5*time.Minute)
			c.SetRecorder(arena.Recorder(rec))
			defer rec.Close()
		}
	}

	var positions *storage.PositionStore
	if cfg.Storage.Database.Enabled() {
		positions, err = storage.NewPositionStore(cfg.Storage.Database)
		if err != nil {
			log.Warn("connect to postgres, position history disabled", "error", err)
		} else {
			defer positions.Close()
		}
	}

	adapter, err := bus.New(cfg.NATS.URL, cfg.NATS.ArenaSubject, c, log)
	if err != nil {
		log.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer adapter.Close()

	hub := httpserver.NewHub()
	go hub.Run()

	router := httpserver.NewRouter(c, hub)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pub := multiPublisher{adapter: adapter, hub: hub, positions: positions, log: log}
	go c.Run(ctx, 33*time.Millisecond, pub)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down arena locator...")
	cancel()

	if err := store.Save(cfg.Params.Path); err != nil {
		log.Warn("save parameter file", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", "error", err)
	}

	log.Info("arena locator stopped")
}

// multiPublisher fans the render loop's 1Hz tick out to the bus, the
// dashboard WebSocket hub, and (if enabled) the position-history log.
type multiPublisher struct {
	adapter   *bus.Adapter
	hub       *httpserver.Hub
	positions *storage.PositionStore
	log       *slog.Logger
}

func (p multiPublisher) PublishLocations(robots map[int]arena.RobotPosition) {
	p.adapter.PublishLocations(robots)
	p.hub.PublishLocations(robots)

	if p.positions == nil {
		return
	}
	rows := make([]storage.PositionRow, 0, len(robots))
	for id, pos := range robots {
		row := storage.PositionRow{RobotID: id, XMM: pos.XMM, YMM: pos.YMM}
		if pos.HasHead {
			h := pos.Heading
			row.Heading = &h
		}
		rows = append(rows, row)
	}
	if err := p.positions.InsertBatch(context.Background(), rows); err != nil {
		p.log.Debug("position history insert failed", "error", err)
	}
}
