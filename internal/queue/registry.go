package queue

import (
	"errors"
	"fmt"

	"github.com/nikoraes/formalink/internal/ident"
)

var (
	// ErrDuplicateTask is returned when a task id is registered twice without removal.
	ErrDuplicateTask = errors.New("task already registered")
	// ErrDuplicateRequest is returned when a request id is registered twice without removal.
	ErrDuplicateRequest = errors.New("request already registered")
)

// orderedSet is a set that remembers insertion order for diagnostics.
type orderedSet[K comparable] struct {
	order []K
	index map[K]struct{}
}

func newOrderedSet[K comparable]() orderedSet[K] {
	return orderedSet[K]{index: make(map[K]struct{})}
}

func (s *orderedSet[K]) add(k K) bool {
	if _, ok := s.index[k]; ok {
		return false
	}
	s.index[k] = struct{}{}
	s.order = append(s.order, k)
	return true
}

func (s *orderedSet[K]) remove(k K) bool {
	if _, ok := s.index[k]; !ok {
		return false
	}
	delete(s.index, k)
	for i, v := range s.order {
		if v == k {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *orderedSet[K]) items() []K {
	out := make([]K, len(s.order))
	copy(out, s.order)
	return out
}

func (s *orderedSet[K]) len() int {
	return len(s.order)
}

// TaskRegistry tracks outstanding tasks, each tagged with its owning request.
type TaskRegistry struct {
	tasks orderedSet[ident.TaskID]
	// perRequest counts outstanding tasks per owning request.
	perRequest map[ident.RequestID]int
}

// NewTaskRegistry creates an empty TaskRegistry.
func NewTaskRegistry() *TaskRegistry {
	return &TaskRegistry{
		tasks:      newOrderedSet[ident.TaskID](),
		perRequest: make(map[ident.RequestID]int),
	}
}

// Add registers id. A malformed id is a programming error and panics.
func (r *TaskRegistry) Add(id ident.TaskID) error {
	if !id.Valid() {
		panic(fmt.Sprintf("queue: malformed task id %q", id.String()))
	}
	if !r.tasks.add(id) {
		return fmt.Errorf("%w: %s", ErrDuplicateTask, id)
	}
	r.perRequest[id.Request]++
	return nil
}

// Remove unregisters id and reports whether it was present.
func (r *TaskRegistry) Remove(id ident.TaskID) bool {
	if !r.tasks.remove(id) {
		return false
	}
	if n := r.perRequest[id.Request] - 1; n > 0 {
		r.perRequest[id.Request] = n
	} else {
		delete(r.perRequest, id.Request)
	}
	return true
}

// HasAny reports whether any outstanding task belongs to request.
func (r *TaskRegistry) HasAny(request ident.RequestID) bool {
	return r.perRequest[request] > 0
}

// IsEmpty reports whether no tasks are outstanding.
func (r *TaskRegistry) IsEmpty() bool {
	return r.tasks.len() == 0
}

// Count returns the number of outstanding tasks.
func (r *TaskRegistry) Count() int {
	return r.tasks.len()
}

// IDs returns the outstanding task ids in registration order.
func (r *TaskRegistry) IDs() []ident.TaskID {
	return r.tasks.items()
}

// Clear drops every task.
func (r *TaskRegistry) Clear() {
	r.tasks = newOrderedSet[ident.TaskID]()
	r.perRequest = make(map[ident.RequestID]int)
}

// RequestRegistry tracks outstanding requests.
type RequestRegistry struct {
	requests orderedSet[ident.RequestID]
}

// NewRequestRegistry creates an empty RequestRegistry.
func NewRequestRegistry() *RequestRegistry {
	return &RequestRegistry{requests: newOrderedSet[ident.RequestID]()}
}

// Add registers id.
func (r *RequestRegistry) Add(id ident.RequestID) error {
	if !r.requests.add(id) {
		return fmt.Errorf("%w: %s", ErrDuplicateRequest, id)
	}
	return nil
}

// Remove unregisters id and reports whether it was present.
func (r *RequestRegistry) Remove(id ident.RequestID) bool {
	return r.requests.remove(id)
}

// Contains reports whether id is outstanding.
func (r *RequestRegistry) Contains(id ident.RequestID) bool {
	_, ok := r.requests.index[id]
	return ok
}

// IsEmpty reports whether no requests are outstanding.
func (r *RequestRegistry) IsEmpty() bool {
	return r.requests.len() == 0
}

// Count returns the number of outstanding requests.
func (r *RequestRegistry) Count() int {
	return r.requests.len()
}

// IDs returns the outstanding request ids in FIFO order.
func (r *RequestRegistry) IDs() []ident.RequestID {
	return r.requests.items()
}

// Clear drops every request.
func (r *RequestRegistry) Clear() {
	r.requests = newOrderedSet[ident.RequestID]()
}
