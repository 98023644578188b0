package http

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/maxionmain321/podcast-automation-caio-internal/internal/domain"
)

// handleExportPDF renders the workflow into a PDF under the data directory and
// remembers the path so the share link can serve it later.
func (a *API) handleExportPDF(c *gin.Context) {
	id := c.Param("id")
	w, err := a.store.Get(id)
	if err != nil {
		a.respondStageError(c, err)
		return
	}
	if w.Transcript == "" {
		respondMessage(c, http.StatusBadRequest, "nothing to export yet")
		return
	}

	pdfDir := filepath.Join(a.cfg.DataDir, "pdf")
	if err := os.MkdirAll(pdfDir, 0o755); err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	outPath := filepath.Join(pdfDir, id+".pdf")

	if err := a.pdf.GeneratePDF(w, outPath); err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	updated, err := a.store.Apply(id, func(w *domain.Workflow) error {
		w.PDFPath = outPath
		return nil
	})
	if err != nil {
		a.respondStageError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "workflow": updated})
}

// handleShareWorkflow hands back a signed, expiring link to the exported PDF.
func (a *API) handleShareWorkflow(c *gin.Context) {
	id := c.Param("id")
	w, err := a.store.Get(id)
	if err != nil {
		a.respondStageError(c, err)
		return
	}
	if w.PDFPath == "" {
		respondMessage(c, http.StatusBadRequest, "export the PDF before sharing")
		return
	}

	link := a.share.Mint(id)
	c.JSON(http.StatusOK, gin.H{"url": link.URL, "expiresAt": link.ExpiresAt.UTC()})
}

// handleServePDF is the public side of a share link. Missing parameters are a
// bad request, a stale link is gone, a wrong signature is forbidden.
func (a *API) handleServePDF(c *gin.Context) {
	id := c.Param("id")
	sig := c.Query("sig")
	expRaw := c.Query("exp")
	if sig == "" || expRaw == "" {
		respondMessage(c, http.StatusBadRequest, "missing signature")
		return
	}

	expiresAt, err := strconv.ParseInt(expRaw, 10, 64)
	if err != nil {
		respondMessage(c, http.StatusBadRequest, "invalid expiration")
		return
	}
	if time.Now().Unix() > expiresAt {
		respondMessage(c, http.StatusGone, "link expired")
		return
	}
	if !a.share.Verify(id, expiresAt, sig) {
		respondMessage(c, http.StatusForbidden, "invalid signature")
		return
	}

	w, err := a.store.Get(id)
	if err != nil || w.PDFPath == "" {
		respondMessage(c, http.StatusNotFound, "document not found")
		return
	}

	c.Header("Content-Disposition", "inline; filename=\""+filepath.Base(w.PDFPath)+"\"")
	c.File(w.PDFPath)
}
