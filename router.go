package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/threadline/threadline/pkg/config"
	"github.com/threadline/threadline/pkg/event"
	"github.com/threadline/threadline/pkg/handler"
	"github.com/threadline/threadline/pkg/service"
	"github.com/threadline/threadline/pkg/utils"
	"gorm.io/gorm"
)

type Server struct {
	ginEngine *gin.Engine
	logger    *slog.Logger
	config    *config.AppConfig
	db        *gorm.DB
	emitter   *event.Emitter
	port      int
}

func NewServer(cfg *config.AppConfig, database *gorm.DB) *Server {
	ginEngine := gin.New()
	ginEngine.Use(gin.Recovery())

	// CORS middleware: allow common localhost dev origins.
	// Note: if you don't need cookies/credentials, keep Allow-Credentials off.
	ginEngine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// If there's no Origin header, it's not a browser CORS request.
		if origin != "" {
			allowed := strings.HasPrefix(origin, "http://localhost") ||
				strings.HasPrefix(origin, "http://127.0.0.1") ||
				strings.HasPrefix(origin, "https://localhost") ||
				strings.HasPrefix(origin, "https://127.0.0.1")

			if allowed {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
				c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
			} else {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	server := &Server{
		ginEngine: ginEngine,
		logger:    utils.GetLogger(),
		config:    cfg,
		db:        database,
		emitter:   event.NewEmitter(),
	}

	server.SetupRoutes()

	return server
}

func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host(), s.config.Port())
	srv := &http.Server{Addr: addr, Handler: s.ginEngine}

	// Attempt to listen on port first; if occupied return error immediately
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}

	// Record the actual port (useful if we ever switch to :0).
	if tcpAddr, ok := ln.Addr().(*net.TCPAddr); ok {
		s.port = tcpAddr.Port
	} else {
		s.port = s.config.Port()
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve(ln)
	}()

	// Listen for context cancellation for graceful shutdown
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	// Non-blocking: if startup fails immediately return error; otherwise return nil to let main continue
	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	default:
	}

	s.logger.Info("Server listening", "addr", addr)
	return nil
}

func (s *Server) SetupRoutes() {
	// Model service instance (also serves its own handlers)
	modelService := service.NewModelService()
	generator := service.NewStructuredGenerator(modelService)

	contextService := service.NewContextService(s.db)
	summaryService := service.NewSummaryService(s.db, generator, s.config, s.emitter)

	projectService := service.NewProjectService(s.db, s.emitter)
	workItemService := service.NewWorkItemService(s.db, s.emitter)
	branchService := service.NewBranchService(s.db, s.emitter)
	messageService := service.NewMessageService(s.db, summaryService, s.emitter)
	artifactService := service.NewArtifactService(s.db, s.emitter)
	extractionService := service.NewExtractionService(contextService, generator)

	projectHandler := handler.NewProjectHandler(projectService, summaryService)
	workItemHandler := handler.NewWorkItemHandler(workItemService)
	branchHandler := handler.NewBranchHandler(branchService, messageService, contextService, summaryService, extractionService)
	artifactHandler := handler.NewArtifactHandler(artifactService)
	wsHandler := event.NewWSHandler(s.emitter)

	// API group
	// /api
	apiGroup := s.ginEngine.Group("/api")

	// Project routes
	apiGroup.GET("/projects", projectHandler.ListProjects)
	apiGroup.POST("/projects", projectHandler.CreateProject)
	apiGroup.GET("/projects/:id", projectHandler.GetProject)
	apiGroup.PUT("/projects/:id", projectHandler.UpdateProject)
	apiGroup.DELETE("/projects/:id", projectHandler.DeleteProject)
	apiGroup.POST("/projects/:id/summarize", projectHandler.SummarizeProject)
	apiGroup.GET("/projects/:id/workitems", workItemHandler.ListWorkItems)

	// Work item routes
	apiGroup.POST("/workitems", workItemHandler.CreateWorkItem)
	apiGroup.GET("/workitems/:id", workItemHandler.GetWorkItem)
	apiGroup.PUT("/workitems/:id", workItemHandler.UpdateWorkItem)
	apiGroup.DELETE("/workitems/:id", workItemHandler.DeleteWorkItem)
	apiGroup.GET("/workitems/:id/relations", workItemHandler.ListRelations)
	apiGroup.GET("/workitems/:id/branches", branchHandler.ListBranches)
	apiGroup.GET("/workitems/:id/artifacts", artifactHandler.ListArtifacts)

	// Relation routes
	apiGroup.POST("/relations", workItemHandler.CreateRelation)
	apiGroup.DELETE("/relations/:id", workItemHandler.DeleteRelation)

	// Branch routes: CRUD, messages, context, summarization, extraction
	apiGroup.POST("/branches", branchHandler.CreateBranch)
	apiGroup.GET("/branches/:id", branchHandler.GetBranch)
	apiGroup.DELETE("/branches/:id", branchHandler.DeleteBranch)
	apiGroup.POST("/branches/:id/fork", branchHandler.ForkBranch)
	apiGroup.GET("/branches/:id/messages", branchHandler.ListMessages)
	apiGroup.POST("/branches/:id/messages", branchHandler.AppendMessage)
	apiGroup.POST("/branches/:id/messages/bulk", branchHandler.BulkAppendMessages)
	apiGroup.GET("/branches/:id/context", branchHandler.GetContext)
	apiGroup.GET("/branches/:id/context/text", branchHandler.GetContextText)
	apiGroup.GET("/branches/:id/needs-summary", branchHandler.NeedsSummary)
	apiGroup.POST("/branches/:id/summarize", branchHandler.SummarizeBranch)
	apiGroup.POST("/branches/:id/extract", branchHandler.ExtractWorkItems)

	// Message routes
	apiGroup.DELETE("/messages/:id", branchHandler.DeleteMessage)

	// Artifact routes
	apiGroup.POST("/artifacts", artifactHandler.CreateArtifact)
	apiGroup.GET("/artifacts/:id", artifactHandler.GetArtifact)
	apiGroup.PUT("/artifacts/:id", artifactHandler.UpdateArtifact)
	apiGroup.DELETE("/artifacts/:id", artifactHandler.DeleteArtifact)

	// Summarization sweep
	apiGroup.POST("/summaries/sweep", branchHandler.SweepSummaries)

	// Extraction confirm
	apiGroup.POST("/extractions/confirm", workItemHandler.ConfirmExtraction)

	// Model management routes
	apiGroup.GET("/models", modelService.GetModelList)
	apiGroup.POST("/models", modelService.AddModel)
	apiGroup.PUT("/models/:id", modelService.EditModel)
	apiGroup.DELETE("/models/:id", modelService.DeleteModel)

	// Event notification websocket
	apiGroup.GET("/events/ws", wsHandler.Handle)
}
