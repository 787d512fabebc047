package coordinator

// Status is a point-in-time view of the coordinator's queues.
type Status struct {
	Busy            bool     `json:"busy" yaml:"busy"`
	Version         string   `json:"version" yaml:"version"`
	PendingRequests []string `json:"pending_requests" yaml:"pending_requests"`
	PendingTasks    []string `json:"pending_tasks" yaml:"pending_tasks"`
	Transitions     uint64   `json:"transitions" yaml:"transitions"`
	Accepted        uint64   `json:"accepted" yaml:"accepted"`
	Rejected        uint64   `json:"rejected" yaml:"rejected"`
	Completed       uint64   `json:"completed" yaml:"completed"`
	Failed          uint64   `json:"failed" yaml:"failed"`
	UnknownTasks    uint64   `json:"unknown_tasks" yaml:"unknown_tasks"`
	UnknownRequests uint64   `json:"unknown_requests" yaml:"unknown_requests"`
	DroppedEvents   uint64   `json:"dropped_events" yaml:"dropped_events"`
}

// Idle reports whether nothing is outstanding.
func (s Status) Idle() bool {
	return !s.Busy && len(s.PendingRequests) == 0 && len(s.PendingTasks) == 0
}

// Snapshot returns the current queue contents in FIFO order.
func (c *Coordinator) Snapshot() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Status{
		Busy:            c.busy.IsBusy(),
		Version:         c.version,
		PendingRequests: requestStrings(c.requests.IDs()),
		PendingTasks:    taskStrings(c.tasks.IDs()),
		Transitions:     c.busy.Transitions(),
		Accepted:        c.stats.accepted,
		Rejected:        c.stats.rejected,
		Completed:       c.stats.completed,
		Failed:          c.stats.failed,
		UnknownTasks:    c.stats.unknownTasks,
		UnknownRequests: c.stats.unknownRequests,
		DroppedEvents:   c.emitter.DroppedCount(),
	}
}
