package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"page-review/internal/config"
	"page-review/internal/database"
	"page-review/internal/email"
	"page-review/internal/handlers"
	"page-review/internal/identity"
	"page-review/internal/logger"
	"page-review/internal/middleware"
	"page-review/internal/repository"
	"page-review/internal/service"
	"page-review/internal/token"
	"page-review/internal/workflow"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logger
	logger.Setup(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	slog.Info("Starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"env", cfg.App.Env,
		"lifecycle_model", cfg.Review.LifecycleModel,
		"log_level", cfg.Log.Level,
	)

	// Initialize database
	db, err := database.New(&cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func(db *database.Database) {
		err := db.Close()
		if err != nil {
			slog.Error("Failed to close database connection", "error", err)
		}
	}(db)

	slog.Info("Database connection established")

	// Run database migrations
	migrator := database.NewMigrationExecutor(db.DB)
	if err := migrator.RunMigrations("./migrations"); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database migrations completed")

	// Initialize repositories
	userRepo := repository.NewUserRepository(db.DB)
	reviewerRepo := repository.NewReviewerRepository(db.DB)
	externalReviewerRepo := repository.NewExternalReviewerRepository(db.DB)
	pageRepo := repository.NewPageRepository(db.DB)
	shareRepo := repository.NewShareRepository(db.DB)
	requestRepo := repository.NewReviewRequestRepository(db.DB)
	responseRepo := repository.NewReviewResponseRepository(db.DB)
	commentRepo := repository.NewCommentRepository(db.DB)
	taskRepo := repository.NewTaskStateRepository(db.DB)

	// Select the review lifecycle strategy for this process. The two models
	// never run side by side; switching requires a restart.
	var gate workflow.Gate
	var taskGate *workflow.TaskGate
	switch cfg.Review.LifecycleModel {
	case config.LifecycleWorkflow:
		taskGate = workflow.NewTaskGate(taskRepo)
		gate = taskGate
	default:
		gate = workflow.NewSimpleGate(requestRepo)
	}

	// Initialize services
	resolver := identity.NewResolver(reviewerRepo, externalReviewerRepo)
	codec := token.NewCodec(cfg.Token.Secret)
	emailService := email.NewService(&cfg.Email)
	links := service.NewLinks(cfg.Token.BaseURL)
	shareService := service.NewShareService(shareRepo, pageRepo, userRepo, resolver, codec, links, emailService)
	reviewService := service.NewReviewService(requestRepo, responseRepo, pageRepo, userRepo, resolver, codec, links, emailService, cfg.Review.NotifySuperusers)
	commentService := service.NewCommentService(commentRepo)

	// Initialize handlers
	frontendHandler := handlers.NewFrontendHandler(commentService, reviewService, taskGate)
	adminHandler := handlers.NewAdminHandler(shareService, reviewService, resolver, userRepo, taskRepo, gate, taskGate)

	// Initialize middleware
	tokenMw := middleware.NewReviewTokenMiddleware(codec, reviewerRepo, pageRepo, shareRepo, gate)
	adminMw := middleware.NewAdminKeyMiddleware(cfg.Review.AdminAPIKey)
	corsMw := middleware.NewCORSMiddleware(&cfg.CORS)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit)

	// Setup routes
	mux := http.NewServeMux()

	// Frontend endpoints (capability token in X-Review-Token)
	mux.Handle("GET /api/v1/review", tokenMw.Authenticate(http.HandlerFunc(frontendHandler.Home)))
	mux.Handle("GET /api/v1/review/comments", tokenMw.Authenticate(http.HandlerFunc(frontendHandler.ListComments)))
	mux.Handle("POST /api/v1/review/comments", tokenMw.Authenticate(http.HandlerFunc(frontendHandler.CreateComment)))
	mux.Handle("PUT /api/v1/review/comments/{commentID}", tokenMw.Authenticate(http.HandlerFunc(frontendHandler.UpdateComment)))
	mux.Handle("DELETE /api/v1/review/comments/{commentID}", tokenMw.Authenticate(http.HandlerFunc(frontendHandler.DeleteComment)))
	mux.Handle("POST /api/v1/review/comments/{commentID}/resolve", tokenMw.Authenticate(http.HandlerFunc(frontendHandler.ResolveComment)))
	mux.Handle("DELETE /api/v1/review/comments/{commentID}/resolve", tokenMw.Authenticate(http.HandlerFunc(frontendHandler.UnresolveComment)))
	mux.Handle("POST /api/v1/review/comments/{commentID}/replies", tokenMw.Authenticate(http.HandlerFunc(frontendHandler.CreateReply)))
	mux.Handle("PUT /api/v1/review/comments/{commentID}/replies/{replyID}", tokenMw.Authenticate(http.HandlerFunc(frontendHandler.UpdateReply)))
	mux.Handle("DELETE /api/v1/review/comments/{commentID}/replies/{replyID}", tokenMw.Authenticate(http.HandlerFunc(frontendHandler.DeleteReply)))
	mux.Handle("POST /api/v1/review/response", tokenMw.Authenticate(http.HandlerFunc(frontendHandler.Respond)))

	// Admin endpoints (called by the CMS with X-Admin-Key)
	mux.Handle("POST /api/v1/admin/pages/{pageID}/shares", adminMw.Authenticate(http.HandlerFunc(adminHandler.CreateShare)))
	mux.Handle("GET /api/v1/admin/pages/{pageID}/shares", adminMw.Authenticate(http.HandlerFunc(adminHandler.ListShares)))
	mux.Handle("PUT /api/v1/admin/shares/{shareID}/expiry", adminMw.Authenticate(http.HandlerFunc(adminHandler.ExtendShare)))
	mux.Handle("POST /api/v1/admin/revisions/{revisionID}/requests", adminMw.Authenticate(http.HandlerFunc(adminHandler.SubmitRequest)))
	mux.Handle("GET /api/v1/admin/requests/{requestID}", adminMw.Authenticate(http.HandlerFunc(adminHandler.GetRequest)))
	mux.Handle("POST /api/v1/admin/requests/{requestID}/close", adminMw.Authenticate(http.HandlerFunc(adminHandler.CloseRequest)))
	mux.Handle("POST /api/v1/admin/requests/{requestID}/reopen", adminMw.Authenticate(http.HandlerFunc(adminHandler.ReopenRequest)))
	mux.Handle("GET /api/v1/admin/requests/{requestID}/responses", adminMw.Authenticate(http.HandlerFunc(adminHandler.ListResponses)))
	mux.Handle("GET /api/v1/admin/requests/{requestID}/awaiting", adminMw.Authenticate(http.HandlerFunc(adminHandler.AwaitingResponse)))
	mux.Handle("GET /api/v1/admin/revisions/{revisionID}/actions/{userID}", adminMw.Authenticate(http.HandlerFunc(adminHandler.LegalActions)))
	mux.Handle("POST /api/v1/admin/tasks", adminMw.Authenticate(http.HandlerFunc(adminHandler.CreateTask)))
	mux.Handle("POST /api/v1/admin/tasks/{taskID}/reviewers", adminMw.Authenticate(http.HandlerFunc(adminHandler.AddTaskReviewer)))
	mux.Handle("POST /api/v1/admin/revisions/{revisionID}/task-states", adminMw.Authenticate(http.HandlerFunc(adminHandler.StartTaskState)))
	mux.Handle("POST /api/v1/admin/task-states/{stateID}/action", adminMw.Authenticate(http.HandlerFunc(adminHandler.ExecuteTaskAction)))

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.HealthCheck(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, err := w.Write([]byte(`{"status":"unhealthy","database":"error"}`))
			if err != nil {
				slog.Error("Failed to write health check response", "error", err)
				return
			}
			return
		}
		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte(`{"status":"healthy","version":"` + cfg.App.Version + `"}`))
		if err != nil {
			slog.Error("Failed to write health check response", "error", err)
			return
		}
	})

	// Apply global middleware
	handler := middleware.LoggingMiddleware(
		middleware.SecurityHeaders(
			corsMw.Handler(
				rateLimiter.Limit(mux),
			),
		),
	)

	// Create server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.TimeoutRead,
		WriteTimeout: cfg.Server.TimeoutWrite,
		IdleTimeout:  cfg.Server.TimeoutIdle,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Server starting", "address", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Server shutting down...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped")
}
