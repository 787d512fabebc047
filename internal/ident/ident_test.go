package ident

import "testing"

func TestUUIDGenerator_Unique(t *testing.T) {
	gen := UUIDGenerator{}
	seen := make(map[RequestID]bool)

	for i := 0; i < 1000; i++ {
		id := gen.NewRequestID()
		if len(id) != 32 {
			t.Fatalf("expected 32 hex characters, got %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate request id %q", id)
		}
		seen[id] = true
	}
}

func TestUUIDGenerator_TaskIDCarriesRequest(t *testing.T) {
	gen := UUIDGenerator{}
	req := gen.NewRequestID()

	a := gen.NewTaskID(req)
	b := gen.NewTaskID(req)

	if a.Request != req || b.Request != req {
		t.Errorf("task ids should carry request %q, got %q and %q", req, a.Request, b.Request)
	}
	if a == b {
		t.Error("two task ids for the same request must differ")
	}
	if !a.Valid() {
		t.Error("generated task id should be valid")
	}
}

func TestTaskID_Valid(t *testing.T) {
	tests := []struct {
		name string
		id   TaskID
		want bool
	}{
		{"complete", TaskID{Request: "r", Suffix: "s"}, true},
		{"missing request", TaskID{Suffix: "s"}, false},
		{"missing suffix", TaskID{Request: "r"}, false},
		{"zero value", TaskID{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.id.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTaskID_StringKeepsSeparatorsInComponents(t *testing.T) {
	id := TaskID{Request: "a_b", Suffix: "c/d"}
	if id.Request != "a_b" {
		t.Errorf("request component changed: %q", id.Request)
	}
	if got := id.String(); got != "a_b/c/d" {
		t.Errorf("String() = %q", got)
	}
}
