package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/romanzh1/quizzr-srs/internal/config"
	"github.com/romanzh1/quizzr-srs/internal/handler"
	"github.com/romanzh1/quizzr-srs/internal/repository"
	"github.com/romanzh1/quizzr-srs/internal/service"
	"github.com/romanzh1/quizzr-srs/pkg/keylock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	lockPrefix      = "quizzr:lock:"
	shutdownTimeout = 10 * time.Second
)

func newLogger(production bool) (*zap.Logger, error) {
	zapConfig := zap.NewDevelopmentConfig()
	if production {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zapConfig.EncoderConfig.TimeKey = "timestamp"
	zapConfig.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.UTC().Format(time.RFC3339))
	}

	return zapConfig.Build()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.IsProduction())
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}

	zap.ReplaceGlobals(logger)
	zap.L().Info("logger initialized", zap.String("env", cfg.AppEnv))

	err = run(cfg)
	if err != nil {
		zap.L().Error("server stopped", zap.Error(err))
	}
	_ = logger.Sync()

	if err != nil {
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := repository.Open(repository.Dialect(cfg.DBDriver), cfg.DatabaseURL, cfg.DBMaxIdle, cfg.DBMaxOpen)
	if err != nil {
		return fmt.Errorf("open database (driver: %s): %w", cfg.DBDriver, err)
	}
	defer repo.Close()

	zap.L().Info("database opened", zap.String("dialect", string(repo.Dialect())))

	if err = repo.Up(ctx); err != nil {
		return err
	}

	var locker keylock.Locker = keylock.NewLocal()
	if cfg.RedisURL != "" {
		rdb, err := keylock.Dial(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()

		locker = keylock.NewRedis(rdb, lockPrefix, cfg.ReviewLockTTL)
		zap.L().Info("using redis review locks")
	}

	// background workers must stop before redis and the database are closed
	var wg sync.WaitGroup
	defer func() {
		stop()
		wg.Wait()
	}()

	svc := service.NewService(repo, locker, service.Options{ReviewsPerNewCard: cfg.ReviewsPerNewCard})

	if cfg.TelegramBotToken != "" {
		bot, err := handler.NewTelegramHandler(cfg.TelegramBotToken, svc, cfg.ReminderInterval)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			bot.Start(ctx)
		}()
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: handler.NewRouter(handler.RouterConfig{
			Handler:     handler.NewHTTPHandler(svc),
			CORSOrigins: cfg.CORSOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("http server started", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err = <-errCh:
		if err != nil {
			return fmt.Errorf("listen (addr: %s): %w", cfg.HTTPAddr, err)
		}
		return nil
	case <-ctx.Done():
	}

	zap.L().Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err = srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	return nil
}
