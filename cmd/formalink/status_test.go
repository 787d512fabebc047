package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/nikoraes/formalink/internal/coordinator"
)

func TestPrintStatus_Formats(t *testing.T) {
	color.NoColor = true
	s := coordinator.Status{
		Busy:            true,
		Version:         "1.0",
		PendingRequests: []string{"r1"},
		PendingTasks:    []string{"r1/a"},
		Accepted:        3,
		Failed:          1,
		UnknownTasks:    2,
	}

	tests := []struct {
		format string
		want   []string
	}{
		{"text", []string{"Bridge busy (version 1.0)", "Pending requests: 1", "  r1/a", "Failed:    1", "2 unknown task"}},
		{"json", []string{`"busy": true`, `"pending_tasks": [`, `"accepted": 3`}},
		{"yaml", []string{"busy: true", "pending_requests:", "- r1", "accepted: 3"}},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			if err := printStatus(&buf, s, tt.format); err != nil {
				t.Fatalf("printStatus() error = %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("output missing %q:\n%s", want, buf.String())
				}
			}
		})
	}
}

func TestPrintStatus_UnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := printStatus(&buf, coordinator.Status{}, "xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestJanitorInterval(t *testing.T) {
	tests := []struct {
		ttl  time.Duration
		want time.Duration
	}{
		{time.Hour, 15 * time.Minute},
		{2 * time.Second, time.Second},
		{time.Millisecond, time.Second},
	}
	for _, tt := range tests {
		if got := janitorInterval(tt.ttl); got != tt.want {
			t.Errorf("janitorInterval(%v) = %v, want %v", tt.ttl, got, tt.want)
		}
	}
}
