package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/harshini-shah/dfs/internal/logger"
	"github.com/harshini-shah/dfs/internal/protocol/dfsrpc"
	"github.com/harshini-shah/dfs/internal/server"
	"github.com/harshini-shah/dfs/pkg/config"
	"github.com/harshini-shah/dfs/pkg/metrics"
	"github.com/harshini-shah/dfs/pkg/naming"
)

func main() {
	configPath := flag.String("config", "", "Path to the configuration file")
	logLevel := flag.String("log-level", "", "Override log level (DEBUG, INFO, WARN, ERROR)")
	dumpConfig := flag.Bool("dump-config", false, "Print the fully-defaulted configuration and exit")
	flag.Parse()

	if *dumpConfig {
		out, err := config.DumpYAML(config.Default())
		if err != nil {
			log.Fatalf("Failed to dump config: %v", err)
		}
		fmt.Print(out)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	logger.SetLevel(cfg.Logging.Level)

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}

	fmt.Println("DFS Naming Server")
	logger.Info("Log level set to: %s", cfg.Logging.Level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ns := naming.New(naming.Config{
		Replicator: naming.ReplicatorConfig{
			Workers:    cfg.Replication.Workers,
			QueueDepth: cfg.Replication.QueueDepth,
		},
	})

	serviceEndpoint := server.New("service",
		fmt.Sprintf(":%d", cfg.Server.ServicePort),
		dfsrpc.ProgramService, dfsrpc.ServiceHandler(ns))
	registrationEndpoint := server.New("registration",
		fmt.Sprintf(":%d", cfg.Server.RegistrationPort),
		dfsrpc.ProgramRegistration, dfsrpc.RegistrationHandler(ns))

	if err := serviceEndpoint.Listen(); err != nil {
		log.Fatalf("Failed to start service endpoint: %v", err)
	}
	if err := registrationEndpoint.Listen(); err != nil {
		log.Fatalf("Failed to start registration endpoint: %v", err)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return serviceEndpoint.Serve(groupCtx) })
	group.Go(func() error { return registrationEndpoint.Serve(groupCtx) })

	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics.ListenAddr)
	}

	// Wait for a shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("Received signal %v, shutting down", sig)
	case <-groupCtx.Done():
	}

	cancel()

	done := make(chan struct{})
	go func() {
		_ = group.Wait()
		ns.Stop()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("Naming server stopped")
	case <-time.After(cfg.Server.ShutdownTimeout):
		logger.Warn("Shutdown timed out after %s", cfg.Server.ShutdownTimeout)
	}
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	logger.Info("Metrics endpoint listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("Metrics endpoint failed: %v", err)
	}
}
