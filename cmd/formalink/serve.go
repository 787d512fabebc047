package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/nikoraes/formalink/internal/config"
	"github.com/nikoraes/formalink/internal/coordinator"
	"github.com/nikoraes/formalink/internal/executor"
	"github.com/nikoraes/formalink/internal/logging"
	"github.com/nikoraes/formalink/internal/notify"
	"github.com/nikoraes/formalink/internal/picker"
	"github.com/nikoraes/formalink/internal/scene"
	"github.com/nikoraes/formalink/internal/server"
	"github.com/nikoraes/formalink/internal/version"
)

var (
	serveHost  string
	servePort  int
	serveStage string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bridge",
	Long: `Start the HTTP bridge on the Kit services routes.

Endpoints:
  POST /kit/formaconnector/link                 scene-edit request
  POST /kit/formaconnector/filebrowser          open a file dialog and wait
  GET  /kit/formaconnector/filebrowser/dialogs  list open dialogs
  POST /kit/formaconnector/importmesh/:id       stage a mesh upload
  GET  /kit/formaconnector/status               queue snapshot
  POST /kit/formaconnector/reset                clear the queues
  GET  /metrics                                 Prometheus metrics

Mesh imports take two steps: the connector uploads each element to
importmesh/:id, then sends a link request with execute_command "importmesh"
and the element's forma_path. Uploads no link request consumes expire after
store.upload_ttl.

Examples:
  formalink serve
  formalink serve --stage omniverse://localhost/Projects/site.usd
  formalink serve --port 8111`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen host (overrides server.host)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (overrides server.port)")
	serveCmd.Flags().StringVar(&serveStage, "stage", "", "Document to open as the active stage (overrides stage.path)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}
	if serveStage != "" {
		cfg.Stage.Path = serveStage
	}

	logger, closeLog, err := logging.New(cfg.Log.Dir, cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer closeLog()

	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, logger)
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting formalink", "version", version.Get(), "addr", server.Config{Host: cfg.Server.Host, Port: cfg.Server.Port}.Addr())

	store, err := scene.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open scene store: %w", err)
	}
	defer store.Close()

	if ttl := cfg.Store.UploadTTL; ttl > 0 {
		janitorCtx, stopJanitor := context.WithCancel(ctx)
		defer stopJanitor()
		go scene.RunUploadJanitor(janitorCtx, store, ttl, janitorInterval(ttl), logger)
	}

	sceneCtx := scene.NewContext(store)
	if cfg.Stage.Path != "" {
		if _, err := sceneCtx.Open(ctx, cfg.Stage.Path); err != nil {
			return fmt.Errorf("open stage %s: %w", cfg.Stage.Path, err)
		}
		logger.Info("stage opened", "path", cfg.Stage.Path)
	} else {
		logger.Warn("no stage configured; link requests will not apply changes")
	}

	notifiers := notify.Multi{notify.NewLogNotifier(logger)}
	var bus *notify.NATSNotifier
	if cfg.NATS.URL != "" {
		nc, err := notify.Connect(cfg.NATS.URL, "formalink")
		if err != nil {
			logger.Warn("nats unavailable, continuing without it", "url", config.MaskURL(cfg.NATS.URL), "error", err)
		} else {
			defer nc.Drain()
			bus = notify.NewNATSNotifier(nc, cfg.NATS.SubjectPrefix, logger)
			notifiers = append(notifiers, bus)
			logger.Info("publishing to nats", "url", config.MaskURL(cfg.NATS.URL), "prefix", cfg.NATS.SubjectPrefix)
		}
	}

	spawner := executor.NewSpawner(ctx, logger)
	defer spawner.Stop()

	coord := coordinator.New(coordinator.RequiredConfig{
		Documents: sceneCtx,
		Spawner:   spawner,
	},
		coordinator.WithLogger(logger),
		coordinator.WithNotifier(notifiers),
		coordinator.WithEventBuffer(cfg.Events.Buffer),
	)
	executor.RegisterStrategies(coord, store)

	if bus != nil {
		coord.OnBusyChange(bus.BusyChanged)
		go coord.ForwardEvents(ctx, func(e coordinator.Event) {
			bus.PublishEvent(string(e.Type), e)
		})
	} else {
		go coord.ForwardEvents(ctx, func(e coordinator.Event) {
			logger.Debug("coordinator event", "type", string(e.Type), "request_id", e.RequestID, "task_id", e.TaskID)
		})
	}

	dialogs := picker.NewManager(logger)
	if watcher, err := picker.NewWatcher(cfg.Picker.SignalDir, dialogs, logger); err != nil {
		logger.Warn("picker signal directory unavailable", "dir", cfg.Picker.SignalDir, "error", err)
	} else {
		defer watcher.Close()
		logger.Info("watching picker signals", "dir", watcher.Dir())
	}

	srv := server.New(server.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
		CORS: cfg.Server.CORS,
	}, server.Deps{
		Coordinator: coord,
		Picker:      dialogs,
		Uploads:     store,
		Notifier:    notifiers,
		Logger:      logger,
	})

	return srv.Run(ctx)
}

// janitorInterval checks a few times per ttl, at most once a second.
func janitorInterval(ttl time.Duration) time.Duration {
	return max(ttl/4, time.Second)
}
