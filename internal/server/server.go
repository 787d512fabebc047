// Package server exposes the bridge over HTTP on the Kit services routes used
// by the Forma connector.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nikoraes/formalink/internal/coordinator"
	"github.com/nikoraes/formalink/internal/notify"
	"github.com/nikoraes/formalink/internal/picker"
	"github.com/nikoraes/formalink/internal/scene"
)

// Route paths.
const (
	BasePath        = "/kit/formaconnector"
	LinkPath        = BasePath + "/link"
	FileBrowserPath = BasePath + "/filebrowser"
	DialogsPath     = FileBrowserPath + "/dialogs"
	ImportMeshPath  = BasePath + "/importmesh"
	StatusPath      = BasePath + "/status"
	ResetPath       = BasePath + "/reset"
	MetricsPath     = "/metrics"
)

// maxUploadBytes bounds a single staged mesh upload.
const maxUploadBytes = 256 << 20

// Stager stores uploaded meshes until an import request consumes them.
type Stager interface {
	StageUpload(ctx context.Context, id string, m scene.Mesh) error
}

// Config controls the listener.
type Config struct {
	Host string
	Port int
	// CORS allows every origin, method and header.
	CORS bool
}

// Addr returns host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Deps are the components the handlers delegate to.
type Deps struct {
	Coordinator *coordinator.Coordinator
	Picker      *picker.Manager
	Uploads     Stager
	Notifier    notify.Notifier
	Logger      *slog.Logger
}

// Server serves the bridge endpoints.
type Server struct {
	cfg    Config
	deps   Deps
	engine *gin.Engine
	http   *http.Server
}

// New builds the router. It does not start listening.
func New(cfg Config, deps Deps) *Server {
	if deps.Notifier == nil {
		deps.Notifier = notify.NewLogNotifier(deps.Logger)
	}

	s := &Server{cfg: cfg, deps: deps}
	s.engine = s.routes()
	s.http = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.http.Addr
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.deps.Logger))
	if s.cfg.CORS {
		r.Use(allowAllOrigins())
	}

	r.POST(LinkPath, s.handleLink)
	r.POST(FileBrowserPath, s.handleFileBrowser)
	r.GET(DialogsPath, s.handleListDialogs)
	r.POST(DialogsPath+"/:id/select", s.handleSelectDialog)
	r.POST(DialogsPath+"/:id/cancel", s.handleCancelDialog)
	r.POST(ImportMeshPath+"/:id", s.handleImportMesh)
	r.GET(StatusPath, s.handleStatus)
	r.POST(ResetPath, s.handleReset)

	reg := s.deps.Coordinator.Metrics().Registry()
	registerRuntimeCollectors(reg, s.deps.Logger)
	r.GET(MetricsPath, gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	return r
}

func registerRuntimeCollectors(reg *prometheus.Registry, logger *slog.Logger) {
	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				logger.Warn("register runtime collector", "error", err)
			}
		}
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.http.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.deps.Logger.Info("http server listening", "addr", ln.Addr().String())
		errCh <- s.http.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	s.deps.Logger.Info("http server stopped")
	return nil
}
