package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/example/liveness-check/internal/classifier"
	"github.com/example/liveness-check/internal/detector"
	"github.com/example/liveness-check/internal/handlers"
	"github.com/example/liveness-check/internal/logging"
	"github.com/example/liveness-check/internal/usecase"
)

func main() {
	_ = godotenv.Load()

	logger, err := logging.NewLogger(os.Getenv("DEBUG") == "true")
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	// Both artifacts are required for every prediction; a missing one is
	// fatal at startup, not a condition to limp along with.
	cascadePath := getEnv("CASCADE_PATH", "models/facefinder")
	cascade, err := detector.NewFromFile(cascadePath)
	if err != nil {
		logger.Fatal("failed to load face cascade", zap.Error(err), zap.String("path", cascadePath))
	}

	modelPath := getEnv("MODEL_PATH", "models/liveness.onnx")
	clf, err := classifier.New(classifier.Config{
		ModelPath:     modelPath,
		SharedLibPath: os.Getenv("ONNX_SHARED_LIB"),
		PoolSize:      getEnvInt("SESSION_POOL_SIZE", 4),
	})
	if err != nil {
		logger.Fatal("failed to load liveness model", zap.Error(err), zap.String("path", modelPath))
	}
	defer clf.Close()

	uc := usecase.NewLivenessUseCase(cascade, clf, logger)

	r := gin.Default()
	handlers.RegisterRoutes(r, uc)

	addr := ":" + getEnv("PORT", "8080")
	server := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	logger.Info("liveness API listening", zap.String("addr", addr))
	if err := serveHTTPServer(server, 15*time.Second, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	var (
		sigCh       <-chan os.Signal
		stopSignals func()
	)

	if signalCh != nil {
		sigCh = signalCh
		stopSignals = func() {}
	} else {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		sigCh = ch
		stopSignals = func() {
			signal.Stop(ch)
		}
	}
	defer stopSignals()

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}
