package http

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/maxionmain321/podcast-automation-caio-internal/internal/domain"
	"github.com/maxionmain321/podcast-automation-caio-internal/internal/storage"
	"github.com/maxionmain321/podcast-automation-caio-internal/internal/workflow"
)

// handlePresignUpload hands the browser a time-bounded write destination plus
// the readable location the object will have once the transfer completes.
func (a *API) handlePresignUpload(c *gin.Context) {
	var payload struct {
		Filename    string `json:"filename" binding:"required"`
		ContentType string `json:"contentType" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondMessage(c, http.StatusBadRequest, "Missing required fields")
		return
	}

	presigned, err := a.delegation.PresignUpload(payload.Filename, payload.ContentType)
	if errors.Is(err, storage.ErrNotConfigured) {
		respondMessage(c, http.StatusInternalServerError, "Storage not configured")
		return
	}
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	c.JSON(http.StatusOK, presigned)
}

// handleDirectUpload is the raw-bytes variant: the server performs the
// transfer itself and, when a workflow id accompanies the request, records the
// upload on the record in the same stroke.
func (a *API) handleDirectUpload(c *gin.Context) {
	filename := c.Query("filename")
	contentType := c.ContentType()
	if filename == "" || contentType == "" {
		respondMessage(c, http.StatusBadRequest, "Missing required fields")
		return
	}
	if !a.delegation.Configured() {
		respondMessage(c, http.StatusInternalServerError, "Storage not configured")
		return
	}

	key := a.delegation.KeyFor(filename)
	size, err := a.objects.Write(key, c.Request.Body)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	fileURL := a.delegation.ReadURL(key)

	if workflowID := c.Query("workflowId"); workflowID != "" {
		if _, err := a.store.Apply(workflowID, func(w *domain.Workflow) error {
			return workflow.ApplyUpload(w, domain.UploadedFile{URL: fileURL, Filename: filename, Size: size})
		}); err != nil {
			a.respondStageError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"fileUrl": fileURL, "key": key})
}

// handleUploadComplete records the outcome of a presigned upload the browser
// performed on its own.
func (a *API) handleUploadComplete(c *gin.Context) {
	var payload struct {
		URL      string `json:"url" binding:"required"`
		Filename string `json:"filename" binding:"required"`
		Size     int64  `json:"size"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondMessage(c, http.StatusBadRequest, "Missing required fields")
		return
	}

	updated, err := a.store.Apply(c.Param("id"), func(w *domain.Workflow) error {
		return workflow.ApplyUpload(w, domain.UploadedFile{URL: payload.URL, Filename: payload.Filename, Size: payload.Size})
	})
	if err != nil {
		a.respondStageError(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

// handleObjectWrite is the signed write destination the presigner points at.
func (a *API) handleObjectWrite(c *gin.Context) {
	bucket := c.Param("bucket")
	key := strings.TrimPrefix(c.Param("key"), "/")

	expiresAt, err := strconv.ParseInt(c.Query("exp"), 10, 64)
	if err != nil {
		respondMessage(c, http.StatusBadRequest, "invalid expiration")
		return
	}

	if !a.delegation.VerifyWrite(bucket, key, c.Query("accessKey"), expiresAt, c.Query("sig")) {
		respondMessage(c, http.StatusForbidden, "invalid signature")
		return
	}

	if _, err := a.objects.Write(key, c.Request.Body); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"key": key})
}

// handleObjectRead serves the public read side of the bucket.
func (a *API) handleObjectRead(c *gin.Context) {
	bucket := c.Param("bucket")
	key := strings.TrimPrefix(c.Param("key"), "/")

	if bucket != a.delegation.Bucket() {
		respondMessage(c, http.StatusNotFound, "object not found")
		return
	}

	object, err := a.objects.Open(key)
	if errors.Is(err, storage.ErrObjectNotFound) {
		respondMessage(c, http.StatusNotFound, "object not found")
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	defer object.Close()

	contentType := mime.TypeByExtension(filepath.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, object)
}
