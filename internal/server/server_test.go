package server

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikoraes/formalink/internal/coordinator"
	"github.com/nikoraes/formalink/internal/executor"
	"github.com/nikoraes/formalink/internal/logging"
	"github.com/nikoraes/formalink/internal/notify"
	"github.com/nikoraes/formalink/internal/picker"
	"github.com/nikoraes/formalink/internal/scene"
	"github.com/nikoraes/formalink/pkg/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []notify.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

type testEnv struct {
	handler  http.Handler
	coord    *coordinator.Coordinator
	picker   *picker.Manager
	store    *scene.Store
	scene    *scene.Context
	notifier *recordingNotifier
}

func setupServer(t *testing.T) *testEnv {
	t.Helper()
	logger := logging.Discard()

	store, err := scene.Open(filepath.Join(t.TempDir(), "scene.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	sceneCtx := scene.NewContext(store)

	spawner := executor.NewSpawner(context.Background(), logger)
	t.Cleanup(spawner.Stop)

	notifier := &recordingNotifier{}
	coord := coordinator.New(coordinator.RequiredConfig{
		Documents: sceneCtx,
		Spawner:   spawner,
	}, coordinator.WithVersion("1.0"), coordinator.WithLogger(logger), coordinator.WithNotifier(notifier))
	executor.RegisterStrategies(coord, store)

	pm := picker.NewManager(logger)
	srv := New(Config{Host: "127.0.0.1", Port: 8011, CORS: true}, Deps{
		Coordinator: coord,
		Picker:      pm,
		Uploads:     store,
		Notifier:    notifier,
		Logger:      logger,
	})

	return &testEnv{
		handler:  srv.Handler(),
		coord:    coord,
		picker:   pm,
		store:    store,
		scene:    sceneCtx,
		notifier: notifier,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func soup(triangles int) []byte {
	buf := make([]byte, 0, triangles*36)
	for i := 0; i < triangles*9; i++ {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(float32(i)))
	}
	return buf
}

func (e *testEnv) upload(t *testing.T, id string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", id+".bin")
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, ImportMeshPath+"/"+id, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func waitIdle(t *testing.T, coord *coordinator.Coordinator) {
	t.Helper()
	require.Eventually(t, func() bool { return coord.Snapshot().Idle() }, 5*time.Second, 10*time.Millisecond)
}

func TestLink_VersionMismatch(t *testing.T) {
	env := setupServer(t)

	rec := env.do(t, http.MethodPost, LinkPath, map[string]any{
		"extension_version": "0.0",
		"execute_command":   "importmesh",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[models.FormaResponse](t, rec)
	assert.False(t, resp.Succeeded)
	assert.False(t, resp.ExtensionVersionIsValid)
	assert.Equal(t, "Please update the Autodesk Forma Omniverse Connector to version 1.0", resp.Status)

	require.Len(t, env.notifier.notes, 1)
	assert.Equal(t, notify.SeverityError, env.notifier.notes[0].Severity)
	assert.True(t, env.notifier.notes[0].Sticky)
}

func TestLink_NoActiveStage(t *testing.T) {
	env := setupServer(t)

	rec := env.do(t, http.MethodPost, LinkPath, map[string]any{
		"extension_version": "1.0",
		"execute_command":   "importmesh",
	})

	resp := decode[models.FormaResponse](t, rec)
	assert.False(t, resp.Succeeded)
	assert.Equal(t, coordinator.StatusNoDocument, resp.Status)
	assert.NotNil(t, resp.SelectedPrims)
	assert.True(t, env.coord.Snapshot().Idle())
}

func TestLink_BadJSON(t *testing.T) {
	env := setupServer(t)

	req := httptest.NewRequest(http.MethodPost, LinkPath, strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportMesh_UploadThenLink(t *testing.T) {
	env := setupServer(t)
	ctx := context.Background()
	doc, err := env.scene.Open(ctx, "omniverse://localhost/site.usd")
	require.NoError(t, err)

	rec := env.upload(t, "building-1", soup(2))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"id":"building-1","triangles":2}`, rec.Body.String())

	rec = env.do(t, http.MethodPost, LinkPath, map[string]any{
		"extension_version": "1.0",
		"execute_command":   "importmesh",
		"forma_path":        "/building-1",
	})
	resp := decode[models.FormaResponse](t, rec)
	require.True(t, resp.Succeeded, resp.Status)
	assert.Equal(t, []string{"/World/_building_1"}, resp.SelectedPrims)
	assert.Equal(t, "omniverse://localhost/site.usd", resp.USDPath)

	waitIdle(t, env.coord)

	mesh, err := doc.Mesh(ctx, "/World/_building_1")
	require.NoError(t, err)
	assert.Equal(t, 2, mesh.Triangles())
}

func TestImportMesh_Malformed(t *testing.T) {
	env := setupServer(t)

	rec := env.upload(t, "x", []byte{1, 2, 3})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "malformed mesh")
}

func TestImportMesh_MissingFile(t *testing.T) {
	env := setupServer(t)

	rec := env.do(t, http.MethodPost, ImportMeshPath+"/x", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFileBrowser_SelectOverHTTP(t *testing.T) {
	env := setupServer(t)

	result := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		result <- env.do(t, http.MethodPost, FileBrowserPath, map[string]any{"extension_version": "1.0"})
	}()

	require.Eventually(t, func() bool { return env.picker.Count() == 1 }, 5*time.Second, 5*time.Millisecond)

	list := decode[[]picker.Dialog](t, env.do(t, http.MethodGet, DialogsPath, nil))
	require.Len(t, list, 1)
	assert.Equal(t, "Input Filename or Choose File to Override", list[0].Options.WindowTitle)
	id := list[0].ID

	rec := env.do(t, http.MethodPost, DialogsPath+"/"+id+"/select", map[string]string{"url": "omniverse://localhost/site.obj"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.do(t, http.MethodPost, DialogsPath+"/"+id+"/select", map[string]string{"url": "omniverse://localhost/site.usd"})
	require.Equal(t, http.StatusOK, rec.Code)

	var browse *httptest.ResponseRecorder
	select {
	case browse = <-result:
	case <-time.After(5 * time.Second):
		t.Fatal("file browser request never returned")
	}
	resp := decode[models.FileBrowserResponse](t, browse)
	assert.True(t, resp.Succeeded)
	assert.True(t, resp.ExtensionVersionIsValid)
	assert.Equal(t, "omniverse://localhost/site.usd", resp.URL)
	assert.Equal(t, models.NoOptionsSelected, resp.Options)
	assert.Equal(t, "OK", resp.Status)
}

func TestFileBrowser_Cancel(t *testing.T) {
	env := setupServer(t)

	result := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		result <- env.do(t, http.MethodPost, FileBrowserPath, map[string]any{"extension_version": "1.0"})
	}()
	require.Eventually(t, func() bool { return env.picker.Count() == 1 }, 5*time.Second, 5*time.Millisecond)

	id := env.picker.Dialogs()[0].ID
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, DialogsPath+"/"+id+"/cancel", nil).Code)

	resp := decode[models.FileBrowserResponse](t, <-result)
	assert.True(t, resp.Succeeded)
	assert.Empty(t, resp.URL)
}

func TestFileBrowser_VersionMismatch(t *testing.T) {
	env := setupServer(t)

	rec := env.do(t, http.MethodPost, FileBrowserPath, map[string]any{"extension_version": "3.1"})

	resp := decode[models.FileBrowserResponse](t, rec)
	assert.False(t, resp.Succeeded)
	assert.False(t, resp.ExtensionVersionIsValid)
	assert.Contains(t, resp.Status, "Version 3.1")
	assert.Zero(t, env.picker.Count())
	assert.Len(t, env.notifier.notes, 1)
}

func TestDialogs_UnknownID(t *testing.T) {
	env := setupServer(t)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, DialogsPath+"/nope/cancel", nil).Code)
	assert.Equal(t, http.StatusNotFound,
		env.do(t, http.MethodPost, DialogsPath+"/nope/select", map[string]string{"url": "a.usd"}).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, DialogsPath+"/nope/select", map[string]string{}).Code)
}

func TestStatusAndReset(t *testing.T) {
	env := setupServer(t)

	status := decode[coordinator.Status](t, env.do(t, http.MethodGet, StatusPath, nil))
	assert.False(t, status.Busy)
	assert.Equal(t, "1.0", status.Version)

	status = decode[coordinator.Status](t, env.do(t, http.MethodPost, ResetPath, nil))
	assert.True(t, status.Idle())
}

func TestMetrics(t *testing.T) {
	env := setupServer(t)

	rec := env.do(t, http.MethodGet, MetricsPath, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "formalink_busy")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestCORSPreflight(t *testing.T) {
	env := setupServer(t)

	req := httptest.NewRequest(http.MethodOptions, LinkPath, nil)
	req.Header.Set("Origin", "https://app.autodeskforma.eu")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "content-type")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.autodeskforma.eu", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Content-Type")
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestCORSSimpleRequest(t *testing.T) {
	env := setupServer(t)

	req := httptest.NewRequest(http.MethodGet, StatusPath, nil)
	req.Header.Set("Origin", "https://app.autodeskforma.com")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://app.autodeskforma.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSDisabled(t *testing.T) {
	env := setupServer(t)
	srv := New(Config{Host: "127.0.0.1", Port: 8011}, Deps{
		Coordinator: env.coord,
		Picker:      env.picker,
		Uploads:     env.store,
		Notifier:    env.notifier,
		Logger:      logging.Discard(),
	})

	req := httptest.NewRequest(http.MethodGet, StatusPath, nil)
	req.Header.Set("Origin", "https://app.autodeskforma.com")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestConfigAddr(t *testing.T) {
	assert.Equal(t, "127.0.0.1:8011", Config{Host: "127.0.0.1", Port: 8011}.Addr())
}
