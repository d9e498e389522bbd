package main

import (
	"context"
	"errors"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"todo/backend/internal/app"
	"todo/backend/internal/config"
	"todo/backend/internal/logging"
	"todo/backend/internal/rpc"
)

const healthInterval = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New("todo", cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := app.OpenRepository(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open repository", "storage", cfg.Storage, "err", err)
		os.Exit(1)
	}
	defer repo.Close()

	lis, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		logger.Error("failed to listen", "addr", cfg.Addr, "err", err)
		os.Exit(1)
	}

	service := app.New(repo, logger)
	healthServer := health.NewServer()
	server := grpc.NewServer()
	rpc.RegisterTodoServiceServer(server, service)
	grpc_health_v1.RegisterHealthServer(server, healthServer)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting", "addr", cfg.Addr, "storage", cfg.Storage)
		return server.Serve(lis)
	})
	g.Go(func() error {
		service.WatchHealth(gctx, healthServer, healthInterval)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		healthServer.Shutdown()

		stopped := make(chan struct{})
		go func() {
			server.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(cfg.ShutdownTimeout):
			logger.Warn("graceful stop timed out", "timeout", cfg.ShutdownTimeout)
			server.Stop()
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}
