package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"chunkchat/internal/gateway/config"
	"chunkchat/internal/gateway/handler"
	"chunkchat/internal/gateway/server"
	"chunkchat/internal/gateway/service/presence"
	"chunkchat/internal/logging"
	"chunkchat/internal/metrics"
)

type App struct {
	server *server.Server
	log    *zap.Logger
	close  func() error
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	log, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return NewWithConfig(ctx, cfg, log)
}

// NewWithConfig wires the gateway from an already loaded config.
func NewWithConfig(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	log = logging.OrNop(log)

	// Dependencies
	m := metrics.New()
	deps, err := initReplyDeps(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	producer := deps.producer(m)
	presenceSvc := presence.New()

	chatHandler := handler.NewChatHandler(presenceSvc, producer, m, log)
	debugHandler := handler.NewDebugHandler(m, log)

	// Routing & Server
	mux := server.NewMux(chatHandler, debugHandler, m.Handler())
	srv := server.New(cfg.Port, mux, log)

	log.Info("gateway configured",
		zap.String("env", cfg.Env),
		zap.String("producer", producer.Name()),
		zap.String("scripts", deps.scriptBackend),
		zap.Bool("asset_presign", cfg.Asset.Enabled),
	)
	return &App{server: srv, log: log, close: deps.close}, nil
}

func (a *App) Logger() *zap.Logger { return a.log }

func (a *App) Start() error {
	return a.server.Start()
}

func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	if a.close != nil {
		if cerr := a.close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	_ = a.log.Sync()
	return err
}
