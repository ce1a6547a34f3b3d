package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthgrpc "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/nupi-ai/plugin-asr-local-april/internal/asr"
	"github.com/nupi-ai/plugin-asr-local-april/internal/config"
	"github.com/nupi-ai/plugin-asr-local-april/internal/engine"
	"github.com/nupi-ai/plugin-asr-local-april/internal/server"
)

// version is set at build time by GoReleaser via -ldflags.
var version = "dev"

// lazyASRServer returns Unavailable until the model is loaded and the real
// server is set.
type lazyASRServer struct {
	server atomic.Pointer[server.SpeechRecognitionServer]
}

func (l *lazyASRServer) setServer(srv server.SpeechRecognitionServer) {
	l.server.Store(&srv)
}

func (l *lazyASRServer) Recognize(stream server.RecognizeServer) error {
	srv := l.server.Load()
	if srv == nil {
		return status.Error(codes.Unavailable, "ASR service is initializing, please retry in a moment")
	}
	return (*srv).Recognize(stream)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Loader{}.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("starting adapter",
		"adapter", "asr-local-april",
		"version", version,
		"engine_config", cfg.Engine, // configured value, may be "auto"
		"listen_addr", cfg.ListenAddr,
		"model_path", cfg.ModelPath,
		"mode", cfg.Mode,
		"queue_ms", cfg.QueueMs,
	)

	// STEP 1: Bind port before loading the model.
	lis, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		logger.Error("failed to bind listener", "error", err)
		os.Exit(1)
	}
	defer lis.Close()
	logger.Info("listener bound, port ready", "addr", lis.Addr().String())

	// STEP 2: gRPC server with the lazy service wrapper.
	// Add 64KB headroom for protobuf overhead beyond PCM data.
	grpcServer := grpc.NewServer(
		grpc.MaxRecvMsgSize(server.MaxPCMChunkBytes + 64*1024),
	)
	healthServer := health.NewServer()
	healthgrpc.RegisterHealthServer(grpcServer, healthServer)

	healthServer.SetServingStatus("", healthgrpc.HealthCheckResponse_NOT_SERVING)
	healthServer.SetServingStatus(server.ServiceName, healthgrpc.HealthCheckResponse_NOT_SERVING)

	lazyService := &lazyASRServer{}
	server.RegisterSpeechRecognitionServer(grpcServer, lazyService)

	// STEP 3: Start serving in the background.
	serverErr := make(chan error, 1)
	go func() {
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			serverErr <- err
		}
	}()
	logger.Info("gRPC server started (NOT_SERVING while initializing)")

	// STEP 4: Pick the engine and load the shared model.
	eng, resolvedEngine, err := selectEngine(cfg, logger)
	if err != nil {
		logger.Error("engine selection failed, cannot start", "error", err)
		os.Exit(1)
	}
	model, err := asr.NewRuntime(eng, logger).LoadModel(cfg.ModelPath)
	if err != nil {
		logger.Error("model load failed, cannot start", "error", err)
		os.Exit(1)
	}
	defer model.Close()

	// STEP 5: Activate the real service.
	lazyService.setServer(server.New(cfg, logger, model))
	healthServer.SetServingStatus("", healthgrpc.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(server.ServiceName, healthgrpc.HealthCheckResponse_SERVING)
	logger.Info("adapter ready to serve requests",
		"engine", resolvedEngine,
		"model", model.Name(),
		"language", model.Language(),
		"sample_rate", model.SampleRate(),
	)

	// STEP 6: Graceful shutdown.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		logger.Info("shutdown requested, stopping gRPC server")
		healthServer.SetServingStatus(server.ServiceName, healthgrpc.HealthCheckResponse_NOT_SERVING)
		healthServer.SetServingStatus("", healthgrpc.HealthCheckResponse_NOT_SERVING)

		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()

		select {
		case <-stopped:
		case <-time.After(5 * time.Second):
			logger.Warn("graceful stop timed out, forcing stop")
			grpcServer.Stop()
		}
		close(shutdownDone)
	}()

	// STEP 7: Wait for server to finish or error.
	select {
	case err := <-serverErr:
		logger.Error("gRPC server terminated with error", "error", err)
		os.Exit(1)
	case <-shutdownDone:
	}

	logger.Info("adapter stopped")
}

// selectEngine resolves "auto" to the native engine when it is compiled in
// and loads, falling back to the stub only in dev mode.
func selectEngine(cfg config.Config, logger *slog.Logger) (engine.Engine, string, error) {
	resolved := cfg.Engine
	isAutoMode := resolved == config.EngineAuto
	if isAutoMode {
		if engine.NativeAvailable() {
			resolved = config.EngineApril
		} else {
			resolved = config.EngineStub
			logger.Warn("auto-detected engine: stub (native april not compiled in, build with -tags april for production)")
		}
	}

	switch resolved {
	case config.EngineApril:
		eng, err := engine.NewNativeEngine()
		if err == nil {
			logger.Info("engine ready", "type", config.EngineApril)
			return eng, resolved, nil
		}
		if isAutoMode && os.Getenv("NUPI_DEV_MODE") == "1" {
			logger.Warn("native engine load failed, falling back to stub engine (NUPI_DEV_MODE=1)",
				"error", err,
				"hint", "unset NUPI_DEV_MODE for production behavior")
			return engine.NewStubEngine(), config.EngineStub, nil
		}
		if isAutoMode {
			logger.Error("hint: set NUPI_DEV_MODE=1 to allow fallback to stub engine")
		}
		return nil, "", err
	default:
		logger.Warn("using stub engine, transcripts are deterministic and NOT based on speech content")
		return engine.NewStubEngine(), config.EngineStub, nil
	}
}

func newLogger(level string) *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return slog.New(handler)
}

func parseLevel(value string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
