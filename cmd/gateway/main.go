package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc/health/grpc_health_v1"

	"todo/backend/internal/config"
	"todo/backend/internal/gateway"
	"todo/backend/internal/logging"
	"todo/backend/internal/rpc"
)

func main() {
	cfg, err := config.LoadGateway()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New("api", cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	conn, err := rpc.Dial(cfg.TodoAddr)
	if err != nil {
		logger.Error("failed to create todo client", "addr", cfg.TodoAddr, "err", err)
		os.Exit(1)
	}
	defer conn.Close()

	httpServer := gateway.NewHTTPServer(
		rpc.NewTodoServiceClient(conn),
		grpc_health_v1.NewHealthClient(conn),
		cfg.CORSOrigin,
		logger,
	)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("starting", "addr", cfg.Addr, "todo_addr", cfg.TodoAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "err", err)
	}
}
