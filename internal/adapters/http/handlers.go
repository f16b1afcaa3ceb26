package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/dkeye/Classroom/internal/app/orch"
	"github.com/dkeye/Classroom/internal/conversion"
	"github.com/dkeye/Classroom/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

type uploadForm struct {
	Room string `form:"room" binding:"omitempty,alphanum,max=36"`
}

type uploadHandler struct {
	// ctx outlives the request so a dropped client does not cancel the job.
	ctx         context.Context
	orch        *orch.Orchestrator
	pipeline    *conversion.Pipeline
	uploadsDir  string
	maxSize     int64
	defaultRoom string
}

func (h *uploadHandler) handle(c *gin.Context) {
	var form uploadForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room"})
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	if h.maxSize > 0 && fh.Size > h.maxSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("file exceeds %d bytes", h.maxSize)})
		return
	}
	if !conversion.SupportedExtension(fh.Filename) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported file type"})
		return
	}
	room := domain.RoomID(form.Room)
	if room == "" {
		room = domain.RoomID(h.defaultRoom)
	}

	src, err := h.store(fh.Filename, func() (io.ReadCloser, error) { return fh.Open() })
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("store upload")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store upload"})
		return
	}
	fs := h.pipeline.Storage().Fs()
	defer func() {
		if err := fs.Remove(src); err != nil {
			log.Debug().Err(err).Str("module", "adapters.http").Str("path", src).Msg("remove upload")
		}
	}()

	job, err := h.pipeline.NewJob(room, src, fh.Filename)
	if err != nil {
		if domain.IsValidation(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Error().Err(err).Str("module", "adapters.http").Msg("new job")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "File processing failed"})
		return
	}
	log.Info().Str("module", "adapters.http").Str("job", job.ID).Str("room", string(room)).Str("file", fh.Filename).Int64("size", fh.Size).Msg("upload accepted")

	outcome := <-h.orch.Convert(h.ctx, h.pipeline, job, c.GetString("client_token"))
	if outcome.Err != nil {
		c.JSON(statusFor(outcome.Err), gin.H{"error": outcome.Err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"slides":      outcome.Result.Slides,
		"totalSlides": outcome.Result.TotalSlides,
		"jobId":       outcome.Result.JobID,
	})
}

func statusFor(err error) int {
	switch conversion.KindOf(err) {
	case conversion.KindSuperseded:
		return http.StatusConflict
	case conversion.KindTimeout:
		return http.StatusGatewayTimeout
	case conversion.KindToolMissing:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// store copies the upload into the uploads dir under a generated name.
func (h *uploadHandler) store(name string, open func() (io.ReadCloser, error)) (string, error) {
	fs := h.pipeline.Storage().Fs()
	if err := fs.MkdirAll(h.uploadsDir, 0o755); err != nil {
		return "", err
	}
	in, err := open()
	if err != nil {
		return "", err
	}
	defer in.Close()

	dst := filepath.Join(h.uploadsDir, uuid.NewString()+strings.ToLower(filepath.Ext(name)))
	out, err := fs.Create(dst)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		_ = fs.Remove(dst)
		return "", err
	}
	return dst, out.Close()
}

type slidesHandler struct {
	storage *conversion.Storage
	files   http.FileSystem
}

func newSlidesHandler(st *conversion.Storage) *slidesHandler {
	return &slidesHandler{
		storage: st,
		files:   afero.NewHttpFs(st.Fs()).Dir(st.Root()),
	}
}

func (h *slidesHandler) serve(c *gin.Context) {
	job, file := c.Param("job"), c.Param("file")
	if _, ok := h.storage.Stat(job, file); !ok {
		c.String(http.StatusNotFound, "File not found")
		return
	}
	c.Header("Cache-Control", "public, max-age=86400, immutable")
	c.FileFromFS(path.Join(job, file), h.files)
}

type roomsHandler struct {
	orch *orch.Orchestrator
}

func (h *roomsHandler) list(c *gin.Context) {
	c.JSON(http.StatusOK, h.orch.Rooms.List())
}

func (h *roomsHandler) state(c *gin.Context) {
	snap, err := h.orch.Snapshot(c.Request.Context(), domain.RoomID(c.Param("room")))
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, orch.ErrUnknownRoom):
			status = http.StatusNotFound
		case errors.Is(err, context.Canceled):
			status = http.StatusRequestTimeout
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snap)
}
