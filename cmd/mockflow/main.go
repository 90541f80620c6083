package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"chatflow-tutor/internal/config"
	"chatflow-tutor/internal/database"
	"chatflow-tutor/internal/messaging"
	"chatflow-tutor/internal/mockflow"
	"chatflow-tutor/internal/storage"
)

func main() {
	envFile := flag.String("env", "", "path to an env file to load before reading config")
	flag.Parse()

	if err := config.LoadEnvFile(*envFile); err != nil {
		log.Fatalf("%v", err)
	}

	cfg, err := config.LoadMockServerConfig()
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := os.MkdirAll(cfg.Root, os.ModePerm); err != nil {
		log.Fatalf("error creating root directory: %v", err)
	}

	f, err := config.SetupLogFile(filepath.Join(cfg.Root, "mockflow.log"), true)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer f.Close()

	slog.Info("starting mockflow", "root", cfg.Root, "port", cfg.Port, "public_url", cfg.PublicURL, "reply_delay", cfg.ReplyDelay)

	db, err := database.OpenSQLite(filepath.Join(cfg.Root, "db", "mockflow.db"))
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}

	store, err := storage.NewLocalProvider(filepath.Join(cfg.Root, "storage"))
	if err != nil {
		log.Fatalf("failed to create storage: %v", err)
	}

	queue := messaging.NewInMemoryQueue()
	replier := mockflow.NewReplier(db, queue, queue)

	service := mockflow.NewService(db, store, queue, cfg.PublicURL, cfg.ReplyDelay)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: mockflow.NewRouter(service),
	}

	slog.Info("starting replier")
	go replier.Start()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		slog.Info("shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}

		slog.Info("shutting down replier")
		replier.Stop()
	}()

	slog.Info("server started", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %d: %v\n", cfg.Port, err)
	}

	slog.Info("server stopped")
}
