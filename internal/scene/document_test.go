package scene

import (
	"context"
	"errors"
	"testing"
)

func TestDocument_DefineAndReadMesh(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	doc, err := s.Document(ctx, "stage.usd")
	if err != nil {
		t.Fatalf("Document failed: %v", err)
	}

	want := Triangulate(append(triangle(0), triangle(2)...))
	if err := doc.DefineMesh(ctx, "/World/_a", want); err != nil {
		t.Fatalf("DefineMesh failed: %v", err)
	}

	got, err := doc.Mesh(ctx, "/World/_a")
	if err != nil {
		t.Fatalf("Mesh failed: %v", err)
	}
	if len(got.Points) != len(want.Points) || got.Triangles() != want.Triangles() {
		t.Errorf("mesh round trip mismatch: got %d points/%d faces", len(got.Points), got.Triangles())
	}
	if len(got.FaceVertexIndices) != 6 || got.FaceVertexIndices[5] != 5 {
		t.Errorf("unexpected indices %v", got.FaceVertexIndices)
	}
}

func TestDocument_DirtyAndSave(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	doc, _ := s.Document(ctx, "stage.usd")

	dirty, err := doc.Dirty(ctx)
	if err != nil {
		t.Fatalf("Dirty failed: %v", err)
	}
	if dirty {
		t.Error("new document should be clean")
	}

	_ = doc.DefineMesh(ctx, "/World/_a", Triangulate(triangle(0)))
	if dirty, _ = doc.Dirty(ctx); !dirty {
		t.Error("document should be dirty after DefineMesh")
	}

	if err := doc.Save(ctx); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if dirty, _ = doc.Dirty(ctx); dirty {
		t.Error("document should be clean after Save")
	}
}

func TestDocument_DeleteMesh(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	doc, _ := s.Document(ctx, "stage.usd")

	_ = doc.DefineMesh(ctx, "/World/_a", Triangulate(triangle(0)))

	if err := doc.DeleteMesh(ctx, "/World/_a"); err != nil {
		t.Fatalf("DeleteMesh failed: %v", err)
	}
	if err := doc.DeleteMesh(ctx, "/World/_a"); !errors.Is(err, ErrPrimNotFound) {
		t.Errorf("expected ErrPrimNotFound, got %v", err)
	}
	if _, err := doc.Mesh(ctx, "/World/_a"); !errors.Is(err, ErrPrimNotFound) {
		t.Errorf("expected ErrPrimNotFound, got %v", err)
	}
}

func TestDocument_PrimsAreScopedToDocument(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	a, _ := s.Document(ctx, "a.usd")
	b, _ := s.Document(ctx, "b.usd")

	_ = a.DefineMesh(ctx, "/World/_2", Triangulate(triangle(0)))
	_ = a.DefineMesh(ctx, "/World/_1", Triangulate(triangle(0)))
	_ = a.DefineMesh(ctx, "/Other/_x", Triangulate(triangle(0)))
	_ = b.DefineMesh(ctx, "/World/_3", Triangulate(triangle(0)))

	prims, err := a.Prims(ctx, "/World/")
	if err != nil {
		t.Fatalf("Prims failed: %v", err)
	}
	if len(prims) != 2 || prims[0] != "/World/_1" || prims[1] != "/World/_2" {
		t.Errorf("expected sorted [/World/_1 /World/_2], got %v", prims)
	}
}

func TestContext_Active(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	c := NewContext(s)

	if _, ok := c.Active(); ok {
		t.Fatal("new context should have no active document")
	}

	doc, err := c.Open(ctx, "stage.usd")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	active, ok := c.Active()
	if !ok || active.Path() != doc.Path() {
		t.Errorf("expected active document %q", doc.Path())
	}

	c.Close()
	if _, ok := c.Active(); ok {
		t.Error("Close should clear the active document")
	}
}
