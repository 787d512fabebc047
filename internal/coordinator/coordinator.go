package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nikoraes/formalink/internal/ident"
	"github.com/nikoraes/formalink/internal/notify"
	"github.com/nikoraes/formalink/internal/queue"
	"github.com/nikoraes/formalink/internal/scene"
	"github.com/nikoraes/formalink/pkg/models"
)

var (
	// ErrUnknownCommand is returned when no Strategy is registered for a command.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrRequestReset is returned when the queues were reset while the
	// request's strategy was running.
	ErrRequestReset = errors.New("request was reset before its tasks were scheduled")
	// ErrTaskIDExhausted is returned when the id generator keeps producing
	// ids that are already tracked.
	ErrTaskIDExhausted = errors.New("could not generate a unique task id")
)

// maxTaskIDAttempts bounds retries on duplicate task ids.
const maxTaskIDAttempts = 3

// Response status messages.
const (
	StatusAccepted   = "Request accepted."
	StatusNoDocument = "No active stage; no changes applied."
)

// DocumentResolver returns the active scene document, if any.
type DocumentResolver interface {
	Active() (scene.Document, bool)
}

// Job is one unit of work produced by a Strategy.
type Job struct {
	// Kind names the operation for logs and events (import, delete, export).
	Kind string
	// PrimPath is the prim the job targets, reported back as a selected prim.
	PrimPath string
	// Run performs the work. It is called on the spawner's goroutine.
	Run func(ctx context.Context) error
}

// Strategy decomposes a request into jobs against doc.
type Strategy func(ctx context.Context, doc scene.Document, req models.FormaRequest) ([]Job, error)

// Spawner runs jobs asynchronously and calls done exactly once with the job's
// error. done may run on any goroutine.
type Spawner interface {
	Spawn(job Job, done func(err error))
}

// Result is the outcome a task reports on completion.
type Result struct {
	Err error
}

// Failed reports whether the task failed.
func (r Result) Failed() bool {
	return r.Err != nil
}

// Coordinator owns the request and task registries and the busy signal.
// Every registry mutation happens under mu; executor work never does.
type Coordinator struct {
	mu       sync.Mutex
	requests *queue.RequestRegistry
	tasks    *queue.TaskRegistry
	busy     *queue.BusySignal
	stats    counters

	docs       DocumentResolver
	spawner    Spawner
	ids        ident.Generator
	strategies map[string]Strategy
	version    string

	logger   *slog.Logger
	notifier notify.Notifier
	emitter  *EventEmitter
	metrics  *Metrics
}

type counters struct {
	accepted        uint64
	rejected        uint64
	completed       uint64
	failed          uint64
	unknownTasks    uint64
	unknownRequests uint64
}

// New creates a Coordinator.
func New(req RequiredConfig, opts ...Option) *Coordinator {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	o.finish()

	c := &Coordinator{
		requests:   queue.NewRequestRegistry(),
		tasks:      queue.NewTaskRegistry(),
		busy:       queue.NewBusySignal(),
		docs:       req.Documents,
		spawner:    req.Spawner,
		ids:        o.ids,
		strategies: o.strategies,
		version:    o.version,
		logger:     o.logger,
		notifier:   o.notifier,
		emitter:    NewEventEmitter(o.eventBuffer),
		metrics:    NewMetrics(o.registry),
	}

	c.busy.Observe(func(busy bool) {
		c.metrics.setBusy(busy)
		if busy {
			c.logger.Info("bridge busy")
			c.emitter.Emit(Event{Type: EventBusy})
		} else {
			c.logger.Info("bridge idle")
			c.emitter.Emit(Event{Type: EventIdle})
		}
	})

	return c
}

// RegisterStrategy sets the decomposition for command, replacing any previous one.
func (c *Coordinator) RegisterStrategy(command string, s Strategy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.strategies[command] = s
}

// OnBusyChange registers fn to be called on every busy/idle edge.
// fn runs while the coordinator holds its lock and must not call back into it.
func (c *Coordinator) OnBusyChange(fn func(busy bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy.Observe(fn)
}

// Events returns the coordinator's event stream.
func (c *Coordinator) Events() <-chan Event {
	return c.emitter.Events()
}

// Metrics returns the coordinator's Prometheus collectors.
func (c *Coordinator) Metrics() *Metrics {
	return c.metrics
}

// Version returns the major.minor version clients must send.
func (c *Coordinator) Version() string {
	return c.version
}

// IsBusy reports whether any request or task is outstanding.
func (c *Coordinator) IsBusy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy.IsBusy()
}

// AcceptRequest admits a request, starts its tasks and returns without
// waiting for them. Protocol mismatches, a missing stage and unknown commands
// are reported in the response body; nothing here returns an error.
func (c *Coordinator) AcceptRequest(ctx context.Context, req models.FormaRequest) models.FormaResponse {
	c.logger.Info("link request received", "request", req.String())

	validation := ValidateExtensionVersion(req.ExtensionVersion, c.version)
	if !validation.Succeeded {
		return c.reject(ctx, req, validation)
	}

	resp := models.NewFormaResponse(true, StatusAccepted)
	resp.USDPath = req.USDPath

	requestID, ok := c.admit(req)
	if !ok {
		resp.Succeeded = false
		resp.Status = "Could not register request; no changes applied."
		return resp
	}
	logger := c.logger.With("request_id", string(requestID), "command", req.ExecuteCommand)

	doc, ok := c.docs.Active()
	if !ok {
		logger.Warn("no active stage, dropping request")
		c.drain(requestID)
		c.metrics.request("no_document")
		resp.Succeeded = false
		resp.Status = StatusNoDocument
		return resp
	}
	if resp.USDPath == "" {
		resp.USDPath = doc.Path()
	}

	jobs, err := c.decompose(ctx, doc, req)
	if err != nil {
		logger.Error("decompose request", "error", err)
		c.drain(requestID)
		resp.Succeeded = false
		if errors.Is(err, ErrUnknownCommand) {
			c.metrics.request("unknown_command")
			resp.Status = fmt.Sprintf("Unknown command %q; no changes applied.", req.ExecuteCommand)
		} else {
			c.metrics.request("failed")
			resp.Status = fmt.Sprintf("Could not prepare %s: %v", req.ExecuteCommand, err)
		}
		return resp
	}

	taskIDs, err := c.register(requestID, req.ExecuteCommand, jobs)
	if err != nil {
		logger.Error("register tasks", "error", err)
		c.metrics.request("failed")
		resp.Succeeded = false
		resp.Status = fmt.Sprintf("Could not schedule %s: %v; no changes applied.", req.ExecuteCommand, err)
		return resp
	}
	for i, job := range jobs {
		id := taskIDs[i]
		if job.PrimPath != "" {
			resp.SelectedPrims = append(resp.SelectedPrims, job.PrimPath)
		}
		c.spawner.Spawn(job, func(err error) {
			c.OnTaskComplete(id, Result{Err: err})
		})
	}

	if len(jobs) == 0 {
		logger.Info("request produced no tasks")
		c.drain(requestID)
	}

	c.metrics.request("accepted")
	logger.Info("request accepted", "tasks", len(jobs))
	return resp
}

// OnTaskComplete retires a task. Unknown ids are logged and tolerated.
// Failed tasks are still completions.
func (c *Coordinator) OnTaskComplete(id ident.TaskID, result Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	logger := c.logger.With("task_id", id.String(), "request_id", string(id.Request))

	if !c.tasks.Remove(id) {
		c.stats.unknownTasks++
		c.metrics.unknownCompletion("task")
		logger.Warn("completion for unknown task id", "tracked_tasks", taskStrings(c.tasks.IDs()))
		c.emitter.Emit(Event{Type: EventUnknownCompletion, TaskID: id.String(), RequestID: string(id.Request)})
	} else if result.Failed() {
		c.stats.failed++
		c.metrics.completion(true)
		logger.Error("task failed", "error", result.Err)
		c.emitter.Emit(Event{Type: EventTaskFailed, TaskID: id.String(), RequestID: string(id.Request), Error: result.Err.Error()})
	} else {
		c.stats.completed++
		c.metrics.completion(false)
		logger.Debug("task completed")
		c.emitter.Emit(Event{Type: EventTaskCompleted, TaskID: id.String(), RequestID: string(id.Request)})
	}

	c.retireIfDrainedLocked(id.Request)
}

// Reset forcibly clears both registries. Completions that arrive afterwards
// are reported as unknown.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.Warn("resetting queues",
		"dropped_requests", c.requests.Count(),
		"dropped_tasks", c.tasks.Count())
	c.requests.Clear()
	c.tasks.Clear()
	c.emitter.Emit(Event{Type: EventReset})
	c.busy.MarkIdleIfEmpty(c.requests, c.tasks)
	c.metrics.setDepth(0, 0)
}

func (c *Coordinator) reject(ctx context.Context, req models.FormaRequest, v Validation) models.FormaResponse {
	c.notifier.Notify(ctx, notify.New(notify.SeverityError, v.Message, true))

	c.mu.Lock()
	c.stats.rejected++
	c.mu.Unlock()
	c.metrics.request("version_mismatch")
	c.emitter.Emit(Event{Type: EventRequestRejected, Command: req.ExecuteCommand, Message: v.Message})

	resp := models.NewFormaResponse(false, v.Message)
	resp.Succeeded = false
	resp.USDPath = req.USDPath
	return resp
}

// admit registers a fresh request id and marks the bridge busy.
func (c *Coordinator) admit(req models.FormaRequest) (ident.RequestID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.ids.NewRequestID()
	if err := c.requests.Add(id); err != nil {
		c.logger.Error("register request", "request_id", string(id), "error", err)
		return "", false
	}
	c.stats.accepted++
	c.busy.MarkBusyIfNeeded()
	c.metrics.setDepth(c.requests.Count(), c.tasks.Count())
	c.emitter.Emit(Event{Type: EventRequestAccepted, RequestID: string(id), Command: req.ExecuteCommand})
	return id, true
}

// decompose runs the strategy for the request's command outside the lock.
func (c *Coordinator) decompose(ctx context.Context, doc scene.Document, req models.FormaRequest) ([]Job, error) {
	c.mu.Lock()
	strategy, ok := c.strategies[req.ExecuteCommand]
	c.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, req.ExecuteCommand)
	}
	return strategy(ctx, doc, req)
}

// register adds one task per job in a single critical section, so no job can
// complete and retire the request before its siblings are tracked. On error
// nothing stays registered for the request and it has been retired.
func (c *Coordinator) register(request ident.RequestID, command string, jobs []Job) ([]ident.TaskID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.requests.Contains(request) {
		return nil, ErrRequestReset
	}

	ids := make([]ident.TaskID, 0, len(jobs))
	for range jobs {
		id, err := c.addTaskLocked(request)
		if err != nil {
			for _, added := range ids {
				c.tasks.Remove(added)
			}
			c.retireIfDrainedLocked(request)
			return nil, err
		}
		ids = append(ids, id)
	}

	for i, job := range jobs {
		c.emitter.Emit(Event{
			Type:      EventTaskQueued,
			RequestID: string(request),
			TaskID:    ids[i].String(),
			Command:   command,
			PrimPath:  job.PrimPath,
			Message:   job.Kind,
		})
	}
	c.metrics.setDepth(c.requests.Count(), c.tasks.Count())
	return ids, nil
}

// addTaskLocked registers a fresh task id, retrying a bounded number of times
// when the generator repeats itself.
func (c *Coordinator) addTaskLocked(request ident.RequestID) (ident.TaskID, error) {
	for attempt := 0; attempt < maxTaskIDAttempts; attempt++ {
		id := c.ids.NewTaskID(request)
		if err := c.tasks.Add(id); err == nil {
			return id, nil
		}
		c.logger.Error("duplicate task id generated", "task_id", id.String(), "attempt", attempt+1)
	}
	return ident.TaskID{}, ErrTaskIDExhausted
}

// drain retires a request that has no tasks left, as a completion would.
func (c *Coordinator) drain(request ident.RequestID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.retireIfDrainedLocked(request)
}

func (c *Coordinator) retireIfDrainedLocked(request ident.RequestID) {
	if !c.tasks.HasAny(request) {
		if c.requests.Remove(request) {
			c.emitter.Emit(Event{Type: EventRequestDrained, RequestID: string(request)})
		} else {
			c.stats.unknownRequests++
			c.metrics.unknownCompletion("request")
			c.logger.Warn("drain for unknown request id",
				"request_id", string(request),
				"tracked_requests", requestStrings(c.requests.IDs()))
		}
	}

	c.busy.MarkIdleIfEmpty(c.requests, c.tasks)
	c.metrics.setDepth(c.requests.Count(), c.tasks.Count())
}

func taskStrings(ids []ident.TaskID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func requestStrings(ids []ident.RequestID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
