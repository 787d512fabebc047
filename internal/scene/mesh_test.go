package scene

import (
	"errors"
	"testing"
)

func TestDecodeTriangleSoup(t *testing.T) {
	want := append(triangle(0), triangle(5)...)
	data := encodePoints(want)

	m, err := DecodeTriangleSoup(data)
	if err != nil {
		t.Fatalf("DecodeTriangleSoup failed: %v", err)
	}

	if len(m.Points) != 6 {
		t.Fatalf("expected 6 points, got %d", len(m.Points))
	}
	for i := range want {
		if m.Points[i] != want[i] {
			t.Errorf("point %d = %v, want %v", i, m.Points[i], want[i])
		}
	}
	if m.Triangles() != 2 {
		t.Errorf("expected 2 faces, got %d", m.Triangles())
	}
	for i, c := range m.FaceVertexCounts {
		if c != 3 {
			t.Errorf("face %d has %d vertices, want 3", i, c)
		}
	}
	for i, idx := range m.FaceVertexIndices {
		if idx != int32(i) {
			t.Errorf("index %d = %d, want %d", i, idx, i)
		}
	}
}

func TestDecodeTriangleSoup_Malformed(t *testing.T) {
	tests := []struct {
		name string
		size int
	}{
		{"empty", 0},
		{"partial float", 3},
		{"one point", 12},
		{"two points", 24},
		{"one and a bit triangles", 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeTriangleSoup(make([]byte, tt.size))
			if !errors.Is(err, ErrMalformedMesh) {
				t.Errorf("expected ErrMalformedMesh for %d bytes, got %v", tt.size, err)
			}
		})
	}
}

func TestMeshPrimPath(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"abc123", "/World/_abc123"},
		{"site-1/building", "/World/_site_1_building"},
		{"", "/World/_"},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := MeshPrimPath(tt.id); got != tt.want {
				t.Errorf("MeshPrimPath(%q) = %q, want %q", tt.id, got, tt.want)
			}
		})
	}
}
