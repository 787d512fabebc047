package scene

import (
	"context"
	"sync"
)

// Context tracks which document is the active stage.
type Context struct {
	store *Store

	mu     sync.RWMutex
	active Document
}

// NewContext creates a Context with no active document.
func NewContext(store *Store) *Context {
	return &Context{store: store}
}

// Store returns the underlying document store.
func (c *Context) Store() *Store {
	return c.store
}

// Open makes the document at path the active stage, creating it if needed.
func (c *Context) Open(ctx context.Context, path string) (Document, error) {
	doc, err := c.store.Document(ctx, path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.active = doc
	c.mu.Unlock()
	return doc, nil
}

// Close clears the active stage.
func (c *Context) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = nil
}

// Active returns the active stage, if any.
func (c *Context) Active() (Document, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active, c.active != nil
}
