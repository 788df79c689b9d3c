package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"examsolver/internal/app"
	"examsolver/internal/config"
	"examsolver/internal/handler"
	"examsolver/internal/repository/postgres"
	"examsolver/internal/router"
	"examsolver/internal/service"
	s3storage "examsolver/internal/storage/s3"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := postgres.NewDB(&cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	runRepo := postgres.NewRunRepo(db)

	s3Client, err := s3storage.NewS3Client(&cfg.S3)
	if err != nil {
		return fmt.Errorf("failed to initialize S3 client: %w", err)
	}

	solver, err := app.NewPipeline(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	emailSender, err := app.NewEmailSender(&cfg.Email)
	if err != nil {
		return err
	}

	runSvc := service.NewRunService(runRepo, s3Client, solver, emailSender, cfg)

	var authSvc service.AuthService
	if cfg.Auth.JWTSecret != "" {
		authSvc = service.NewAuthService(cfg.Auth)
	} else {
		log.Printf("WARNING: auth.jwt_secret is empty, API is unauthenticated")
	}

	runH := handler.NewRunHandler(runSvc)
	healthH := handler.NewHealthHandler(db)
	r := router.Setup(authSvc, cfg.CORS.AllowedOrigins, runH, healthH)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	worker := service.NewRunQueueWorker(runRepo, runSvc, service.RunQueueConfig{
		PollInterval: time.Duration(cfg.Queue.PollIntervalSecs) * time.Second,
		MaxAttempts:  cfg.Queue.MaxAttempts,
		Concurrency:  cfg.Queue.Concurrency,
		RunTimeout:   time.Duration(cfg.Queue.RunTimeoutMins) * time.Minute,
	})
	workerDone := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(workerDone)
	}()

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		stop()
		<-workerDone
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Printf("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
	<-workerDone
	return nil
}
