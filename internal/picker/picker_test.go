package picker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nikoraes/formalink/internal/logging"
	"github.com/nikoraes/formalink/pkg/models"
)

func usdOptions() Options {
	return OptionsFromRequest(models.NewFileBrowserRequest())
}

func TestOptionsFromRequest(t *testing.T) {
	opts := usdOptions()
	if opts.ApplyButtonLabel != ApplyButtonLabel {
		t.Errorf("ApplyButtonLabel = %q, want %q", opts.ApplyButtonLabel, ApplyButtonLabel)
	}
	if opts.InitialURL != "omniverse://" {
		t.Errorf("InitialURL = %q", opts.InitialURL)
	}
	if len(opts.FileExtensions) != 4 {
		t.Errorf("FileExtensions = %v", opts.FileExtensions)
	}
}

func TestManager_Select(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr error
	}{
		{name: "usd file", url: "omniverse://localhost/Projects/site.usd", wantErr: nil},
		{name: "upper case extension", url: "omniverse://localhost/Projects/SITE.USDZ", wantErr: nil},
		{name: "wrong extension", url: "omniverse://localhost/Projects/site.obj", wantErr: ErrExtensionNotAllowed},
		{name: "folder", url: "omniverse://localhost/Projects/", wantErr: ErrExtensionNotAllowed},
		{name: "empty", url: "", wantErr: ErrExtensionNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(logging.Discard())
			d := m.Show(usdOptions())

			err := m.Select(d.ID, tt.url)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Select() error = %v, want %v", err, tt.wantErr)
			}

			if tt.wantErr != nil {
				if m.Count() != 1 {
					t.Errorf("rejected selection should leave the dialog open")
				}
				return
			}

			s, err := d.Wait(context.Background())
			if err != nil {
				t.Fatalf("Wait() error = %v", err)
			}
			if s.URL != tt.url {
				t.Errorf("URL = %q, want %q", s.URL, tt.url)
			}
			if s.Options != models.NoOptionsSelected {
				t.Errorf("Options = %q", s.Options)
			}
			if m.Count() != 0 {
				t.Errorf("resolved dialog should be forgotten")
			}
		})
	}
}

func TestManager_AnyExtensionWhenUnfiltered(t *testing.T) {
	m := NewManager(logging.Discard())
	d := m.Show(Options{})

	if err := m.Select(d.ID, "file:///tmp/site.obj"); err != nil {
		t.Fatalf("Select() error = %v", err)
	}
}

func TestManager_Cancel(t *testing.T) {
	m := NewManager(logging.Discard())
	d := m.Show(usdOptions())

	if err := m.Cancel(d.ID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	s, err := d.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if !s.Cancelled() {
		t.Errorf("expected a cancelled selection, got %+v", s)
	}

	if err := m.Cancel(d.ID); !errors.Is(err, ErrDialogNotFound) {
		t.Errorf("second Cancel() error = %v, want ErrDialogNotFound", err)
	}
	if err := m.Select(d.ID, "a.usd"); !errors.Is(err, ErrDialogNotFound) {
		t.Errorf("Select() after cancel error = %v, want ErrDialogNotFound", err)
	}
}

func TestDialog_WaitHonoursContext(t *testing.T) {
	m := NewManager(logging.Discard())
	d := m.Show(usdOptions())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := d.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want DeadlineExceeded", err)
	}
}

func TestManager_DialogsOldestFirst(t *testing.T) {
	m := NewManager(logging.Discard())
	first := m.Show(usdOptions())
	time.Sleep(time.Millisecond)
	second := m.Show(usdOptions())

	got := m.Dialogs()
	if len(got) != 2 || got[0].ID != first.ID || got[1].ID != second.ID {
		t.Errorf("Dialogs() order wrong: %v", got)
	}
}

func waitSelection(t *testing.T, d *Dialog) Selection {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := d.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	return s
}

func TestWatcher_SelectAndCancel(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "picker")
	m := NewManager(logging.Discard())
	w, err := NewWatcher(dir, m, logging.Discard())
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Close()

	selected := m.Show(usdOptions())
	signal := filepath.Join(dir, selected.ID+SelectSuffix)
	if err := os.WriteFile(signal, []byte("omniverse://localhost/site.usd\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if s := waitSelection(t, selected); s.URL != "omniverse://localhost/site.usd" {
		t.Errorf("URL = %q", s.URL)
	}

	cancelled := m.Show(usdOptions())
	if err := os.WriteFile(filepath.Join(dir, cancelled.ID+CancelSuffix), nil, 0644); err != nil {
		t.Fatal(err)
	}
	if s := waitSelection(t, cancelled); !s.Cancelled() {
		t.Errorf("expected cancellation, got %+v", s)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		entries, _ := os.ReadDir(dir)
		if len(entries) == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("signal files were not removed: %v", entries)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWatcher_RejectedURLWaitsForRewrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "picker")
	m := NewManager(logging.Discard())
	w, err := NewWatcher(dir, m, logging.Discard())
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Close()

	d := m.Show(usdOptions())
	signal := filepath.Join(dir, d.ID+SelectSuffix)
	if err := os.WriteFile(signal, []byte("omniverse://localhost/site.us"), 0644); err != nil {
		t.Fatal(err)
	}

	time.Sleep(100 * time.Millisecond)
	if _, err := os.Stat(signal); err != nil {
		t.Fatalf("rejected signal file should stay in place: %v", err)
	}
	if m.Count() != 1 {
		t.Fatalf("dialog should still be open, Count() = %d", m.Count())
	}

	if err := os.WriteFile(signal, []byte("omniverse://localhost/site.usd"), 0644); err != nil {
		t.Fatal(err)
	}
	if s := waitSelection(t, d); s.URL != "omniverse://localhost/site.usd" {
		t.Errorf("URL = %q", s.URL)
	}
}

func TestWatcher_UnknownDialogIsRemoved(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "picker")
	w, err := NewWatcher(dir, NewManager(logging.Discard()), logging.Discard())
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Close()

	signal := filepath.Join(dir, "no-such-dialog"+CancelSuffix)
	if err := os.WriteFile(signal, nil, 0644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := os.Stat(signal); os.IsNotExist(err) {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("signal for unknown dialog was not removed")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
