package coordinator

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nikoraes/formalink/internal/ident"
	"github.com/nikoraes/formalink/internal/logging"
	"github.com/nikoraes/formalink/internal/notify"
	"github.com/nikoraes/formalink/internal/version"
)

// RequiredConfig contains the collaborators a Coordinator cannot run without.
type RequiredConfig struct {
	// Documents resolves the active scene document.
	Documents DocumentResolver
	// Spawner runs jobs asynchronously.
	Spawner Spawner
}

// Option configures a Coordinator. Use With* functions to create Options.
type Option func(*coordinatorOptions)

type coordinatorOptions struct {
	ids         ident.Generator
	logger      *slog.Logger
	notifier    notify.Notifier
	version     string
	eventBuffer int
	registry    *prometheus.Registry
	strategies  map[string]Strategy
}

// WithIDGenerator replaces the uuid generator.
func WithIDGenerator(g ident.Generator) Option {
	return func(o *coordinatorOptions) { o.ids = g }
}

// WithLogger sets the logger. Defaults to a discarding logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *coordinatorOptions) { o.logger = l }
}

// WithNotifier sets where user-facing notifications go. Defaults to the logger.
func WithNotifier(n notify.Notifier) Option {
	return func(o *coordinatorOptions) { o.notifier = n }
}

// WithVersion sets the major.minor version clients must match.
// Defaults to the embedded build version.
func WithVersion(v string) Option {
	return func(o *coordinatorOptions) { o.version = v }
}

// WithEventBuffer sets the event channel capacity.
func WithEventBuffer(n int) Option {
	return func(o *coordinatorOptions) { o.eventBuffer = n }
}

// WithRegistry registers metrics on reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *coordinatorOptions) { o.registry = reg }
}

// WithStrategy registers the decomposition for command.
func WithStrategy(command string, s Strategy) Option {
	return func(o *coordinatorOptions) { o.strategies[command] = s }
}

func defaultOptions() *coordinatorOptions {
	return &coordinatorOptions{
		ids:         ident.UUIDGenerator{},
		version:     version.MajorMinor(),
		eventBuffer: 100,
		strategies:  make(map[string]Strategy),
	}
}

func (o *coordinatorOptions) finish() {
	if o.logger == nil {
		o.logger = logging.Discard()
	}
	if o.notifier == nil {
		o.notifier = notify.NewLogNotifier(o.logger)
	}
}
