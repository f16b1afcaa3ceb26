package http

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/dkeye/Classroom/internal/adapters/rtc"
	"github.com/dkeye/Classroom/internal/adapters/signal"
	"github.com/dkeye/Classroom/internal/app/orch"
	"github.com/dkeye/Classroom/internal/config"
	"github.com/dkeye/Classroom/internal/conversion"
	"github.com/dkeye/Classroom/internal/domain"
	"github.com/dkeye/Classroom/internal/identity"
	"github.com/dkeye/Classroom/internal/resources"
	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	router  *gin.Engine
	storage *conversion.Storage
	cfg     *config.Config
	orch    *orch.Orchestrator
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	root := t.TempDir()
	static := filepath.Join(root, "static")
	require.NoError(t, os.MkdirAll(static, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(static, "index.html"), []byte("<html>classroom</html>"), 0o644))

	cfg := &config.Config{
		Mode:       "test",
		StaticPath: static,
		Secret:     "test-secret",
		Storage: config.StorageConfig{
			SlidesDir:     filepath.Join(root, "slides"),
			UploadsDir:    filepath.Join(root, "uploads"),
			ResourcesDir:  filepath.Join(root, "resources"),
			MaxUploadSize: 1 << 20,
		},
		Room: config.RoomConfig{Default: "main"},
	}

	storage := conversion.NewStorage(afero.NewOsFs(), cfg.Storage.SlidesDir, "/slides")
	pipeline := conversion.NewPipeline(conversion.Config{Storage: storage})
	dir, err := identity.NewDirectory(nil, true)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	o := orch.New(ctx, orch.Options{Identities: dir, Storage: storage})
	t.Cleanup(func() {
		cancel()
		o.Close()
	})

	r := SetupRouter(ctx, cfg, Deps{
		Orch:      o,
		Pipeline:  pipeline,
		Signal:    signal.NewSignalWSController(o, signal.Options{}),
		RTC:       rtc.ForClient(rtc.DefaultWebRTCConfig()),
		Resources: resources.NewLibrary(afero.NewOsFs(), cfg.Storage.ResourcesDir, "/resources"),
	})
	return &testServer{router: r, storage: storage, cfg: cfg, orch: o}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func uploadRequest(t *testing.T, field, name string, data []byte, room string) *http.Request {
	t.Helper()
	return multipartRequest(t, "/api/upload", field, name, data, room)
}

func multipartRequest(t *testing.T, target, field, name string, data []byte, room string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if room != "" {
		require.NoError(t, mw.WriteField("room", room))
	}
	if field != "" {
		fw, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type uploadResponse struct {
	Success     bool                   `json:"success"`
	Slides      []domain.SlideArtifact `json:"slides"`
	TotalSlides int                    `json:"totalSlides"`
	JobID       string                 `json:"jobId"`
	Error       string                 `json:"error"`
}

func TestUpload_ImageProducesOneSlide(t *testing.T) {
	s := newTestServer(t)

	w := s.do(uploadRequest(t, "file", "board.png", pngBytes(t, 64, 48), "math"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp uploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.TotalSlides)
	require.Len(t, resp.Slides, 1)
	assert.NotEmpty(t, resp.JobID)
	assert.Equal(t, "/slides/"+resp.JobID+"/slide-1.jpg", resp.Slides[0].URL)

	slide := s.do(httptest.NewRequest(http.MethodGet, resp.Slides[0].URL, nil))
	assert.Equal(t, http.StatusOK, slide.Code)
	assert.Equal(t, "image/jpeg", slide.Header().Get("Content-Type"))
	assert.NotEmpty(t, slide.Header().Get("Cache-Control"))

	// the temporary upload is gone once the response is written
	left, err := os.ReadDir(s.cfg.Storage.UploadsDir)
	require.NoError(t, err)
	assert.Empty(t, left)

	state := s.do(httptest.NewRequest(http.MethodGet, "/api/rooms/math/state", nil))
	require.Equal(t, http.StatusOK, state.Code)
	var snap domain.RoomSnapshot
	require.NoError(t, json.Unmarshal(state.Body.Bytes(), &snap))
	assert.Len(t, snap.SlideData, 1)
	assert.Equal(t, resp.JobID, snap.DeckID)
}

func TestUpload_Rejections(t *testing.T) {
	s := newTestServer(t)

	w := s.do(uploadRequest(t, "", "", nil, ""))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "No file uploaded")

	w = s.do(uploadRequest(t, "file", "notes.txt", []byte("hello"), ""))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(uploadRequest(t, "file", "big.png", make([]byte, 2<<20), ""))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	// extension says png, content does not
	w = s.do(uploadRequest(t, "file", "fake.png", []byte("plain text, not an image"), ""))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(uploadRequest(t, "file", "board.png", pngBytes(t, 8, 8), "bad room!"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSlides_NotFound(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/slides/nojob/slide-1.jpg", "/slides/../secret", "/slides/job/..%2Fx"} {
		w := s.do(httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}

func TestMisc_Endpoints(t *testing.T) {
	s := newTestServer(t)

	w := s.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/rtc-config", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var rc map[string][]map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rc))
	require.NotEmpty(t, rc["iceServers"])
	assert.NotEmpty(t, rc["iceServers"][0]["urls"])

	w = s.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "classroom")
	assert.NotEmpty(t, w.Header().Get("Set-Cookie"))

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/rooms", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRoomState_UnknownRoom(t *testing.T) {
	s := newTestServer(t)

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/rooms/nobody/state", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	_, ok := s.orch.Rooms.Get("nobody")
	assert.False(t, ok, "lookup does not start a room")
}

type resourceResponse struct {
	Success  bool               `json:"success"`
	Resource resources.Resource `json:"resource"`
	Error    string             `json:"error"`
}

type resourceIndex struct {
	Resources []resources.Entry `json:"resources"`
}

func TestResources_Lifecycle(t *testing.T) {
	s := newTestServer(t)

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/resources-index", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"resources":[]}`, w.Body.String())

	w = s.do(multipartRequest(t, "/api/upload-resource", "file", "Reading list (week 1).txt", []byte("chapter one"), ""))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var up resourceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &up))
	assert.True(t, up.Success)
	res := up.Resource
	assert.Equal(t, "Reading list (week 1).txt", res.Name)
	assert.Equal(t, "Reading_list__week_1_.txt", res.SafeName)
	assert.Equal(t, "/resources/"+res.ID+"/"+res.SafeName, res.URL)
	assert.EqualValues(t, 11, res.Size)
	assert.NotEmpty(t, res.MIME)
	assert.NotZero(t, res.Timestamp)

	file := s.do(httptest.NewRequest(http.MethodGet, res.URL, nil))
	require.Equal(t, http.StatusOK, file.Code)
	assert.Equal(t, "chapter one", file.Body.String())

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/resources-index", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var idx resourceIndex
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &idx))
	require.Len(t, idx.Resources, 1)
	assert.Equal(t, res.ID, idx.Resources[0].ID)
	assert.Equal(t, res.SafeName, idx.Resources[0].Name)
	assert.Equal(t, res.URL, idx.Resources[0].URL)
	assert.NotZero(t, idx.Resources[0].MtimeMs)

	w = s.do(httptest.NewRequest(http.MethodDelete, "/api"+res.URL, nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"success":true}`, w.Body.String())
	_, err := os.Stat(filepath.Join(s.cfg.Storage.ResourcesDir, res.ID))
	assert.True(t, os.IsNotExist(err), "empty resource dir removed")

	w = s.do(httptest.NewRequest(http.MethodDelete, "/api"+res.URL, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Resource not found")

	file = s.do(httptest.NewRequest(http.MethodGet, res.URL, nil))
	assert.Equal(t, http.StatusNotFound, file.Code)
}

func TestResources_Rejections(t *testing.T) {
	s := newTestServer(t)

	w := s.do(multipartRequest(t, "/api/upload-resource", "", "", nil, ""))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "No file uploaded")

	w = s.do(multipartRequest(t, "/api/upload-resource", "file", "huge.bin", make([]byte, 2<<20), ""))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	for _, path := range []string{"/resources/x/..%2F..%2Fetc", "/resources/../secret"} {
		w := s.do(httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}
