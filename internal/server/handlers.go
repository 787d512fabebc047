package server

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nikoraes/formalink/internal/coordinator"
	"github.com/nikoraes/formalink/internal/notify"
	"github.com/nikoraes/formalink/internal/picker"
	"github.com/nikoraes/formalink/internal/scene"
	"github.com/nikoraes/formalink/pkg/models"
)

// statusOK is the file browser's success status.
const statusOK = "OK"

func (s *Server) handleLink(c *gin.Context) {
	req := models.NewFormaRequest()
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp := s.deps.Coordinator.AcceptRequest(c.Request.Context(), req)
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleFileBrowser(c *gin.Context) {
	req := models.NewFileBrowserRequest()
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	validation := coordinator.ValidateExtensionVersion(req.ExtensionVersion, s.deps.Coordinator.Version())
	if !validation.Succeeded {
		s.deps.Notifier.Notify(ctx, notify.New(notify.SeverityError, validation.Message, true))
		c.JSON(http.StatusOK, models.FileBrowserResponse{
			URL:     "",
			Options: models.NoOptionsSelected,
			Status:  validation.Message,
		})
		return
	}

	dialog := s.deps.Picker.Show(picker.OptionsFromRequest(req))
	selection, err := dialog.Wait(ctx)
	if err != nil {
		// Caller went away; close the dialog so it does not linger.
		if cancelErr := s.deps.Picker.Cancel(dialog.ID); cancelErr != nil && !errors.Is(cancelErr, picker.ErrDialogNotFound) {
			s.deps.Logger.Warn("cancel abandoned dialog", "dialog_id", dialog.ID, "error", cancelErr)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, models.FileBrowserResponse{
		ExtensionVersionIsValid: true,
		URL:                     selection.URL,
		Options:                 selection.Options,
		Status:                  statusOK,
		Succeeded:               true,
	})
}

func (s *Server) handleListDialogs(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Picker.Dialogs())
}

type selectBody struct {
	URL string `json:"url" binding:"required"`
}

func (s *Server) handleSelectDialog(c *gin.Context) {
	var body selectBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.deps.Picker.Select(c.Param("id"), body.URL); err != nil {
		c.JSON(pickerStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleCancelDialog(c *gin.Context) {
	if err := s.deps.Picker.Cancel(c.Param("id")); err != nil {
		c.JSON(pickerStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func pickerStatus(err error) int {
	switch {
	case errors.Is(err, picker.ErrDialogNotFound):
		return http.StatusNotFound
	case errors.Is(err, picker.ErrExtensionNotAllowed):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// handleImportMesh stages an uploaded triangle soup under :id. Nothing is
// written to the stage here: a later link request with execute_command
// "importmesh" and a matching forma_path defines the prims. Unconsumed uploads
// expire after store.upload_ttl.
func (s *Server) handleImportMesh(c *gin.Context) {
	id := c.Param("id")

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if header.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload too large"})
		return
	}

	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mesh, err := scene.DecodeTriangleSoup(data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.deps.Uploads.StageUpload(c.Request.Context(), id, mesh); err != nil {
		s.deps.Logger.Error("stage upload", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.deps.Logger.Info("mesh staged", "id", id, "triangles", mesh.Triangles())
	c.JSON(http.StatusOK, gin.H{"id": id, "triangles": mesh.Triangles()})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Coordinator.Snapshot())
}

func (s *Server) handleReset(c *gin.Context) {
	s.deps.Coordinator.Reset()
	c.JSON(http.StatusOK, s.deps.Coordinator.Snapshot())
}
