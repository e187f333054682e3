package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"club-treasury/internal/importer"
	"club-treasury/internal/logger"
	"club-treasury/internal/service"

	"github.com/gin-gonic/gin"
)

const maxUploadBytes = 20 << 20

type ImportHandler struct {
	svc *service.ReconcileService
}

func NewImportHandler(svc *service.ReconcileService) *ImportHandler {
	return &ImportHandler{svc: svc}
}

// Upload handles POST /api/imports: multipart "file" plus "category".
func (h *ImportHandler) Upload(c *gin.Context) {
	category, err := importer.ParseCategory(c.PostForm("category"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if file.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("file exceeds %d MiB", maxUploadBytes>>20)})
		return
	}
	logger.Info("import upload", "file", file.Filename, "size", file.Size, "category", category)

	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot read upload"})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot read upload"})
		return
	}

	batch, err := importer.Parse(file.Filename, data, category)
	if err != nil {
		logger.Warn("import rejected", "file", file.Filename, "err", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.svc.Import(c.Request.Context(), batch)
	switch {
	case errors.Is(err, service.ErrMemberNotFound):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "import failed"})
		return
	}

	skipped := res.Skipped
	if skipped == nil {
		skipped = []service.Skip{}
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  res.Message(),
		"created":  res.Created,
		"updated":  res.Updated,
		"skipped":  skipped,
		"batch_id": res.BatchID,
	})
}
