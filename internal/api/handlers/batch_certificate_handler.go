package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/pharma-erp/backend/internal/storage"
	"github.com/pharma-erp/backend/internal/store"
)

// BatchCertificateHandler stores and serves quality certificates (COA scans)
// attached to inventory batches.
type BatchCertificateHandler struct {
	store   store.Store
	objects storage.ObjectStorage
}

func NewBatchCertificateHandler(st store.Store, objects storage.ObjectStorage) *BatchCertificateHandler {
	return &BatchCertificateHandler{store: st, objects: objects}
}

func certificateKey(batchID string) string {
	return fmt.Sprintf("certificates/%s", batchID)
}

// UploadCertificate attaches a certificate file to a batch.
func (h *BatchCertificateHandler) UploadCertificate(c *gin.Context) {
	batchID := c.Param("id")
	ctx := c.Request.Context()

	if _, err := h.store.GetByID(ctx, store.CollectionInventoryBatches, batchID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "batch not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load batch"})
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no certificate file provided"})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read certificate file"})
		return
	}
	defer src.Close()

	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := h.objects.UploadObject(ctx, certificateKey(batchID), contentType, file.Size, src); err != nil {
		log.Error().Err(err).Str("batch_id", batchID).Msg("certificate upload failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store certificate"})
		return
	}

	if err := h.store.UpdateByID(ctx, store.CollectionInventoryBatches, batchID, map[string]any{
		"certificateFileName": file.Filename,
	}); err != nil {
		log.Error().Err(err).Str("batch_id", batchID).Msg("failed to record certificate on batch")
	}

	c.JSON(http.StatusCreated, gin.H{"batchId": batchID, "fileName": file.Filename})
}

// DownloadCertificate streams a batch's certificate back to the client.
func (h *BatchCertificateHandler) DownloadCertificate(c *gin.Context) {
	batchID := c.Param("id")

	body, info, err := h.objects.DownloadObject(c.Request.Context(), certificateKey(batchID))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "certificate not found"})
		return
	}
	defer body.Close()

	c.DataFromReader(http.StatusOK, info.Size, info.ContentType, body, nil)
}
