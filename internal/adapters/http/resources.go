package http

import (
	"errors"
	"fmt"
	"net/http"
	"path"
	"time"

	"github.com/dkeye/Classroom/internal/app/orch"
	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/resources"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

type resourcesHandler struct {
	orch    *orch.Orchestrator
	lib     *resources.Library
	files   http.FileSystem
	maxSize int64
}

func newResourcesHandler(o *orch.Orchestrator, lib *resources.Library, maxSize int64) *resourcesHandler {
	return &resourcesHandler{
		orch:    o,
		lib:     lib,
		files:   afero.NewHttpFs(lib.Fs()).Dir(lib.Root()),
		maxSize: maxSize,
	}
}

func (h *resourcesHandler) upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	if h.maxSize > 0 && fh.Size > h.maxSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("file exceeds %d bytes", h.maxSize)})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload resource"})
		return
	}
	defer f.Close()

	res, err := h.lib.Add(fh.Filename, fh.Header.Get("Content-Type"), f)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Str("file", fh.Filename).Msg("store resource")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload resource"})
		return
	}
	sent := h.orch.Announce(c.Request.Context(), core.ResourceAddedEvent{
		Type:      core.EventResourceAdded,
		ID:        res.ID,
		Name:      res.Name,
		SafeName:  res.SafeName,
		URL:       res.URL,
		Size:      res.Size,
		MIME:      res.MIME,
		Timestamp: res.Timestamp,
	})
	log.Debug().Str("module", "adapters.http").Str("resource", res.ID).Int("sent_to", sent).Msg("resource announced")
	c.JSON(http.StatusOK, gin.H{"success": true, "resource": res})
}

func (h *resourcesHandler) remove(c *gin.Context) {
	id, name := c.Param("id"), c.Param("name")
	if err := h.lib.Remove(id, name); err != nil {
		if errors.Is(err, resources.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Resource not found"})
			return
		}
		log.Error().Err(err).Str("module", "adapters.http").Str("resource", id).Msg("remove resource")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete resource"})
		return
	}
	h.orch.Announce(c.Request.Context(), core.ResourceRemovedEvent{
		Type:      core.EventResourceRemoved,
		ID:        id,
		Name:      name,
		URL:       h.lib.URL(id, name),
		Timestamp: time.Now().UnixMilli(),
	})
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *resourcesHandler) index(c *gin.Context) {
	list, err := h.lib.List()
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("list resources")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read resources"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"resources": list})
}

func (h *resourcesHandler) serve(c *gin.Context) {
	id, name := c.Param("id"), c.Param("name")
	if _, ok := h.lib.Path(id, name); !ok {
		c.String(http.StatusNotFound, "File not found")
		return
	}
	c.FileFromFS(path.Join(id, name), h.files)
}
