package executor

import (
	"context"
	"fmt"

	"github.com/nikoraes/formalink/internal/coordinator"
	"github.com/nikoraes/formalink/internal/scene"
)

// Job kinds.
const (
	KindImport = "import"
	KindDelete = "delete"
	KindExport = "export"
)

// ImportMeshJob defines the staged upload id as a mesh prim in doc and
// consumes the upload.
func ImportMeshJob(store *scene.Store, doc scene.Document, uploadID string, autosave bool) coordinator.Job {
	primPath := scene.MeshPrimPath(uploadID)
	return coordinator.Job{
		Kind:     KindImport,
		PrimPath: primPath,
		Run: func(ctx context.Context) error {
			mesh, err := store.Upload(ctx, uploadID)
			if err != nil {
				return err
			}
			if err := doc.DefineMesh(ctx, primPath, mesh); err != nil {
				return err
			}
			if err := store.DeleteUpload(ctx, uploadID); err != nil {
				return err
			}
			return saveIf(ctx, doc, autosave)
		},
	}
}

// DeleteMeshJob removes the prim at primPath from doc.
func DeleteMeshJob(doc scene.Document, primPath string, autosave bool) coordinator.Job {
	return coordinator.Job{
		Kind:     KindDelete,
		PrimPath: primPath,
		Run: func(ctx context.Context) error {
			if err := doc.DeleteMesh(ctx, primPath); err != nil {
				return err
			}
			return saveIf(ctx, doc, autosave)
		},
	}
}

// ExportMeshJob copies every mesh under the mesh root of src into the document
// at dstPath and saves it.
func ExportMeshJob(store *scene.Store, src scene.Document, dstPath string) coordinator.Job {
	return coordinator.Job{
		Kind: KindExport,
		Run: func(ctx context.Context) error {
			dst, err := store.Document(ctx, dstPath)
			if err != nil {
				return err
			}
			prims, err := src.Prims(ctx, scene.MeshRoot+"/")
			if err != nil {
				return err
			}
			for _, p := range prims {
				mesh, err := src.Mesh(ctx, p)
				if err != nil {
					return fmt.Errorf("export %s: %w", p, err)
				}
				if err := dst.DefineMesh(ctx, p, mesh); err != nil {
					return fmt.Errorf("export %s: %w", p, err)
				}
			}
			return dst.Save(ctx)
		},
	}
}

func saveIf(ctx context.Context, doc scene.Document, autosave bool) error {
	if !autosave {
		return nil
	}
	return doc.Save(ctx)
}
