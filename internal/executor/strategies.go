package executor

import (
	"context"
	"strings"

	"github.com/nikoraes/formalink/internal/coordinator"
	"github.com/nikoraes/formalink/internal/scene"
	"github.com/nikoraes/formalink/pkg/models"
)

// Registrar accepts per-command strategies.
type Registrar interface {
	RegisterStrategy(command string, s coordinator.Strategy)
}

// RegisterStrategies installs the importmesh, deletemesh and exportmesh
// decompositions on r.
func RegisterStrategies(r Registrar, store *scene.Store) {
	r.RegisterStrategy(models.CommandImportMesh, ImportMeshStrategy(store))
	r.RegisterStrategy(models.CommandDeleteMesh, DeleteMeshStrategy())
	r.RegisterStrategy(models.CommandExportMesh, ExportMeshStrategy(store))
}

// ImportMeshStrategy yields one job per staged upload belonging to the
// request's forma_path: the element itself or one of its children. An empty
// forma_path selects nothing.
func ImportMeshStrategy(store *scene.Store) coordinator.Strategy {
	return func(ctx context.Context, doc scene.Document, req models.FormaRequest) ([]coordinator.Job, error) {
		element := formaID(req.FormaPath)
		if element == "" {
			return nil, nil
		}
		ids, err := store.Uploads(ctx, element)
		if err != nil {
			return nil, err
		}
		jobs := make([]coordinator.Job, 0, len(ids))
		for _, id := range ids {
			if !ownsUpload(element, id) {
				continue
			}
			jobs = append(jobs, ImportMeshJob(store, doc, id, req.AutosaveStage))
		}
		return jobs, nil
	}
}

// DeleteMeshStrategy yields one job per imported prim belonging to the
// request's forma_path. An empty forma_path selects nothing.
func DeleteMeshStrategy() coordinator.Strategy {
	return func(ctx context.Context, doc scene.Document, req models.FormaRequest) ([]coordinator.Job, error) {
		element := formaID(req.FormaPath)
		if element == "" {
			return nil, nil
		}
		root := scene.MeshPrimPath(element)
		prims, err := doc.Prims(ctx, root)
		if err != nil {
			return nil, err
		}
		jobs := make([]coordinator.Job, 0, len(prims))
		for _, p := range prims {
			if p != root && !strings.HasPrefix(p, root+"_") {
				continue
			}
			jobs = append(jobs, DeleteMeshJob(doc, p, req.AutosaveStage))
		}
		return jobs, nil
	}
}

// ExportMeshStrategy yields a single job writing the active document's meshes
// to usd_path. Without a usd_path there is nothing to do.
func ExportMeshStrategy(store *scene.Store) coordinator.Strategy {
	return func(_ context.Context, doc scene.Document, req models.FormaRequest) ([]coordinator.Job, error) {
		if req.USDPath == "" {
			return nil, nil
		}
		return []coordinator.Job{ExportMeshJob(store, doc, req.USDPath)}, nil
	}
}

// formaID turns a Forma element path into the id prefix used for uploads.
func formaID(formaPath string) string {
	return strings.TrimLeft(formaPath, "/")
}

// ownsUpload reports whether upload id is element or one of its children.
// "site" owns "site", "site/a" and "site_a" but not "site2".
func ownsUpload(element, id string) bool {
	if id == element {
		return true
	}
	rest, ok := strings.CutPrefix(id, element)
	return ok && (rest[0] == '/' || rest[0] == '_')
}
