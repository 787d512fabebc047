// Package picker tracks file-browse dialogs opened on behalf of the Forma
// connector. Each dialog is a one-shot future resolved by a selection or a
// cancellation, either over HTTP or through signal files.
package picker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nikoraes/formalink/pkg/models"
)

var (
	// ErrDialogNotFound is returned for ids that are not open.
	ErrDialogNotFound = errors.New("dialog not found")
	// ErrExtensionNotAllowed is returned when a selected url does not match
	// the dialog's file extensions.
	ErrExtensionNotAllowed = errors.New("file extension not allowed")
)

// ApplyButtonLabel is the label shown on the confirm button of every dialog.
const ApplyButtonLabel = "Select"

// Options describes what the dialog shows.
type Options struct {
	WindowTitle       string   `json:"window_title"`
	ItemFilterOptions []string `json:"item_filter_options"`
	FileExtensions    []string `json:"show_file_extensions"`
	ApplyButtonLabel  string   `json:"apply_button_label"`
	InitialURL        string   `json:"initial_url"`
}

// OptionsFromRequest converts a file-browse request body.
func OptionsFromRequest(req models.FileBrowserRequest) Options {
	return Options{
		WindowTitle:       req.WindowTitle,
		ItemFilterOptions: req.ItemFilterOptions,
		FileExtensions:    req.ShowFileExtensions,
		ApplyButtonLabel:  ApplyButtonLabel,
		InitialURL:        req.InitialURL,
	}
}

// Selection is the outcome of a dialog. An empty URL means it was cancelled.
type Selection struct {
	URL     string
	Options string
}

// Cancelled reports whether the user dismissed the dialog.
func (s Selection) Cancelled() bool {
	return s.URL == ""
}

// Dialog is an open file-browse dialog.
type Dialog struct {
	ID       string    `json:"id"`
	Options  Options   `json:"options"`
	OpenedAt time.Time `json:"opened_at"`

	result chan Selection
}

// Wait blocks until the dialog is resolved or ctx is done.
func (d *Dialog) Wait(ctx context.Context) (Selection, error) {
	select {
	case s := <-d.result:
		return s, nil
	case <-ctx.Done():
		return Selection{}, ctx.Err()
	}
}

// Manager owns the open dialogs.
type Manager struct {
	logger *slog.Logger

	mu      sync.Mutex
	dialogs map[string]*Dialog
}

// NewManager creates a Manager with no open dialogs.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		logger:  logger,
		dialogs: make(map[string]*Dialog),
	}
}

// Show opens a dialog.
func (m *Manager) Show(opts Options) *Dialog {
	d := &Dialog{
		ID:       uuid.NewString(),
		Options:  opts,
		OpenedAt: time.Now(),
		result:   make(chan Selection, 1),
	}

	m.mu.Lock()
	m.dialogs[d.ID] = d
	m.mu.Unlock()

	m.logger.Info("file dialog opened", "dialog_id", d.ID, "title", opts.WindowTitle, "initial_url", opts.InitialURL)
	return d
}

// Select resolves dialog id with url. Folders and urls whose extension is not
// one of the dialog's file extensions are rejected and leave it open.
func (m *Manager) Select(id, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.dialogs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrDialogNotFound, id)
	}
	if !allowed(url, d.Options.FileExtensions) {
		return fmt.Errorf("%w: %s", ErrExtensionNotAllowed, url)
	}

	m.resolveLocked(d, Selection{URL: url, Options: models.NoOptionsSelected})
	m.logger.Info("file dialog selected", "dialog_id", id, "url", url)
	return nil
}

// Cancel resolves dialog id with an empty selection.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.dialogs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrDialogNotFound, id)
	}

	m.resolveLocked(d, Selection{Options: models.NoOptionsSelected})
	m.logger.Info("file dialog cancelled", "dialog_id", id)
	return nil
}

// Dialogs returns the open dialogs, oldest first.
func (m *Manager) Dialogs() []*Dialog {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Dialog, 0, len(m.dialogs))
	for _, d := range m.dialogs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.Before(out[j].OpenedAt) })
	return out
}

// Count returns the number of open dialogs.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.dialogs)
}

func (m *Manager) resolveLocked(d *Dialog, s Selection) {
	delete(m.dialogs, d.ID)
	d.result <- s
}

func allowed(url string, extensions []string) bool {
	if url == "" || strings.HasSuffix(url, "/") {
		return false
	}
	if len(extensions) == 0 {
		return true
	}
	ext := strings.ToLower(path.Ext(url))
	for _, e := range extensions {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}
