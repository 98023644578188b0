package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/maxionmain321/podcast-automation-caio-internal/internal/auth"
	"github.com/maxionmain321/podcast-automation-caio-internal/internal/config"
	"github.com/maxionmain321/podcast-automation-caio-internal/internal/pipeline"
	"github.com/maxionmain321/podcast-automation-caio-internal/internal/services"
	"github.com/maxionmain321/podcast-automation-caio-internal/internal/storage"
	"github.com/maxionmain321/podcast-automation-caio-internal/internal/workflow"
)

type Server struct {
	engine      *gin.Engine
	httpServer  *http.Server
	coordinator *pipeline.Coordinator
	cfg         config.Config
	log         logrus.FieldLogger
}

func NewServer(cfg config.Config, log logrus.FieldLogger) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)

	store, err := workflow.NewStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("init workflow store: %w", err)
	}

	objects, err := storage.NewObjectStore(cfg.DataDir, cfg.StorageBucket, cfg.MaxUploadBytes)
	if err != nil {
		return nil, fmt.Errorf("init object store: %w", err)
	}
	delegation := storage.NewDelegation(cfg, log)

	transcriber := services.NewTranscriptionService(cfg)
	generator := services.NewGenerationService(cfg)
	publisher := services.NewPublishService(cfg)
	coordinator := pipeline.NewCoordinator(store, transcriber, generator, publisher, cfg, log)

	sessions := auth.NewSessions(cfg)
	pdfSvc := services.NewPDFService()
	shareSvc := services.NewShareService(cfg)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestLogger(log))
	engine.Use(MaxBodySize(cfg.MaxUploadBytes))
	engine.Use(CORS())

	api := NewAPI(cfg, store, coordinator, delegation, objects, sessions, pdfSvc, shareSvc, log)
	registerRoutes(engine, api)

	return &Server{
		engine:      engine,
		coordinator: coordinator,
		cfg:         cfg,
		log:         log,
	}, nil
}

// Run starts background reconciliation and serves until ctx is cancelled, then
// drains in-flight requests and waits for the watchers to wind down.
func (s *Server) Run(ctx context.Context) error {
	s.coordinator.Start(ctx)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%s", s.cfg.Port),
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.WithError(err).Warn("server shutdown was not clean")
	}
	s.coordinator.Wait()
	return nil
}
