package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"terramap/internal/config"
	"terramap/internal/defs"
	"terramap/internal/transport/ws"
)

func main() {
	var (
		addr         = flag.String("addr", ":8080", "http listen address")
		settingsPath = flag.String("settings", "", "path to settings.yaml (optional)")
		defsDir      = flag.String("defs", "", "definitions directory (default from settings)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[worldd] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*settingsPath)
	if err != nil {
		logger.Fatalf("load settings: %v", err)
	}
	dir := cfg.DefsDir
	if *defsDir != "" {
		dir = *defsDir
	}
	tables, err := defs.Load(dir)
	if err != nil {
		logger.Fatalf("load definitions from %s: %v", dir, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/decode", ws.NewServer(tables, logger).Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: *addr, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Printf("listening on %s", *addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	logger.Printf("bye")
}
