// Package ident generates identifiers for requests and the tasks derived from them.
package ident

import (
	"strings"

	"github.com/google/uuid"
)

// RequestID identifies one externally submitted request.
type RequestID string

// TaskID identifies one unit of asynchronous work. The owning request is
// carried as a field, so it never has to be parsed back out of a string.
type TaskID struct {
	// Request is the request this task was derived from.
	Request RequestID
	// Suffix is unique among the tasks of Request.
	Suffix string
}

// Valid reports whether both components of the id are set.
func (t TaskID) Valid() bool {
	return t.Request != "" && t.Suffix != ""
}

// String renders the id for logs. It is not meant to be parsed.
func (t TaskID) String() string {
	return string(t.Request) + "/" + t.Suffix
}

// Generator produces process-unique identifiers.
type Generator interface {
	NewRequestID() RequestID
	NewTaskID(request RequestID) TaskID
}

// UUIDGenerator generates random uuid v4 identifiers rendered as 32 hex characters.
type UUIDGenerator struct{}

// NewRequestID returns a fresh request id.
func (UUIDGenerator) NewRequestID() RequestID {
	return RequestID(hex())
}

// NewTaskID returns a fresh task id owned by request.
func (UUIDGenerator) NewTaskID(request RequestID) TaskID {
	return TaskID{Request: request, Suffix: hex()}
}

func hex() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
