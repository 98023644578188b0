package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/maxionmain321/podcast-automation-caio-internal/internal/auth"
	"github.com/maxionmain321/podcast-automation-caio-internal/internal/config"
	"github.com/maxionmain321/podcast-automation-caio-internal/internal/pipeline"
	"github.com/maxionmain321/podcast-automation-caio-internal/internal/services"
	"github.com/maxionmain321/podcast-automation-caio-internal/internal/storage"
	"github.com/maxionmain321/podcast-automation-caio-internal/internal/workflow"
)

type API struct {
	cfg         config.Config
	store       *workflow.Store
	coordinator *pipeline.Coordinator
	delegation  *storage.Delegation
	objects     *storage.ObjectStore
	sessions    *auth.Sessions
	pdf         *services.PDFService
	share       *services.ShareService
	log         logrus.FieldLogger
}

func NewAPI(
	cfg config.Config,
	store *workflow.Store,
	coordinator *pipeline.Coordinator,
	delegation *storage.Delegation,
	objects *storage.ObjectStore,
	sessions *auth.Sessions,
	pdf *services.PDFService,
	share *services.ShareService,
	log logrus.FieldLogger,
) *API {
	return &API{
		cfg:         cfg,
		store:       store,
		coordinator: coordinator,
		delegation:  delegation,
		objects:     objects,
		sessions:    sessions,
		pdf:         pdf,
		share:       share,
		log:         log,
	}
}

func registerRoutes(r *gin.Engine, api *API) {
	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/health", api.handleHealth)
		apiGroup.POST("/auth/login", api.handleLogin)

		callbacks := apiGroup.Group("", RequireCallbackSecret(api.cfg.CallbackSecret))
		{
			callbacks.POST("/transcribe-callback", api.handleTranscribeCallback)
			callbacks.POST("/generate-callback", api.handleGenerateCallback)
		}

		authed := apiGroup.Group("", RequireSession(api.sessions))
		{
			authed.POST("/workflows", api.handleCreateWorkflow)
			authed.GET("/workflows", api.handleListWorkflows)
			authed.GET("/workflows/:id", api.handleGetWorkflow)
			authed.DELETE("/workflows/:id", api.handleDeleteWorkflow)

			authed.POST("/upload", api.handlePresignUpload)
			authed.PUT("/upload", api.handleDirectUpload)
			authed.POST("/workflows/:id/upload-complete", api.handleUploadComplete)

			authed.POST("/transcribe", api.handleTranscribe)
			authed.GET("/transcription-status", api.handleTranscriptionStatus)
			authed.POST("/workflows/:id/transcript", api.handleEditTranscript)
			authed.POST("/workflows/:id/approve", api.handleApproveTranscript)

			authed.POST("/generate", api.handleGenerate)
			authed.GET("/content-status", api.handleContentStatus)
			authed.POST("/workflows/:id/select", api.handleSelectContent)

			authed.POST("/publish", api.handlePublish)

			authed.POST("/workflows/:id/export", api.handleExportPDF)
			authed.POST("/workflows/:id/share", api.handleShareWorkflow)
		}
	}

	r.PUT("/objects/:bucket/*key", api.handleObjectWrite)
	r.GET("/objects/:bucket/*key", api.handleObjectRead)
	r.GET("/pdf/:id", api.handleServePDF)
}

func (a *API) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (a *API) handleLogin(c *gin.Context) {
	var payload struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	if a.cfg.DashboardPassword == "" {
		respondMessage(c, http.StatusInternalServerError, "dashboard password is not configured")
		return
	}
	if payload.Password != a.cfg.DashboardPassword {
		respondMessage(c, http.StatusUnauthorized, "invalid password")
		return
	}

	token, expiresAt := a.sessions.Issue()
	c.SetCookie(auth.CookieName, token, int(a.cfg.SessionTTL.Seconds()), "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"success": true, "expiresAt": expiresAt.UTC()})
}

func (a *API) handleCreateWorkflow(c *gin.Context) {
	w, err := a.store.Create()
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusCreated, w)
}

func (a *API) handleListWorkflows(c *gin.Context) {
	c.JSON(http.StatusOK, a.store.List())
}

func (a *API) handleGetWorkflow(c *gin.Context) {
	w, err := a.store.Get(c.Param("id"))
	if err != nil {
		respondMessage(c, http.StatusNotFound, "workflow not found")
		return
	}
	c.JSON(http.StatusOK, w)
}

func (a *API) handleDeleteWorkflow(c *gin.Context) {
	if err := a.store.Delete(c.Param("id")); err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// respondStageError maps the error taxonomy to status codes: rejected
// transitions and bad input are 400, missing configuration 500, upstream
// trouble 502, unknown workflows 404.
func (a *API) respondStageError(c *gin.Context, err error) {
	var transitionErr *workflow.TransitionError
	var upstreamErr *services.UpstreamError

	switch {
	case errors.As(err, &transitionErr):
		respondMessage(c, http.StatusBadRequest, transitionErr.Reason)
	case errors.Is(err, workflow.ErrNotFound):
		respondMessage(c, http.StatusNotFound, "workflow not found")
	case errors.Is(err, services.ErrNotConfigured), errors.Is(err, storage.ErrNotConfigured):
		respondError(c, http.StatusInternalServerError, err)
	case errors.As(err, &upstreamErr):
		respondError(c, http.StatusBadGateway, err)
	default:
		respondError(c, http.StatusInternalServerError, err)
	}
}

func respondError(c *gin.Context, status int, err error) {
	respondMessage(c, status, err.Error())
}

func respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}
