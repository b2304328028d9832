package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/punchamoorthee/irrigationcal/internal/api"
	"github.com/punchamoorthee/irrigationcal/internal/config"
	"github.com/punchamoorthee/irrigationcal/internal/domain"
	"github.com/punchamoorthee/irrigationcal/internal/service"
	"github.com/punchamoorthee/irrigationcal/internal/store"
	"github.com/punchamoorthee/irrigationcal/internal/upstream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v\n"+
			"Set PORT, accountnum, accountname and tzoffset (a .env file works), e.g.\n"+
			"  PORT=3000\n  accountnum=12345,67890\n  accountname=Account 1,Account 2\n  tzoffset=-07:00", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	registry, err := domain.NewRegistry(cfg.AccountIDs, cfg.AccountNames)
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	names := make([]string, 0, registry.Len())
	for _, a := range registry.Accounts() {
		names = append(names, a.Name)
	}
	logger.Info("configuration validated", "accounts", registry.Len(), "names", strings.Join(names, ", "), "env", cfg.Env)

	// Initialize Layers
	client := upstream.NewClient(http.DefaultClient, cfg.UpstreamURL, logger)
	schedules := service.NewScheduleService(client, cfg.TZOffset, logger)
	cookies := store.NewCookieStore(cfg.Env == "production", logger)
	handler := api.NewHandler(registry, schedules, cookies, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(handler, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Irrigation Calendar Server running on http://localhost:%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	log.Println("Server stopped")
}
