package app

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"chunkchat/internal/gateway/config"
	"chunkchat/internal/gateway/repository/asset"
	"chunkchat/internal/gateway/repository/script"
	"chunkchat/internal/gateway/service/reply"
	"chunkchat/internal/metrics"
)

type replyDeps struct {
	scripts       script.Store
	scriptBackend string
	assets        asset.Resolver
	gemini        reply.TextStreamer
	cfg           *config.Config
	log           *zap.Logger
	close         func() error
}

func initReplyDeps(ctx context.Context, cfg *config.Config, log *zap.Logger) (*replyDeps, error) {
	scripts := script.NewFromEnv(ctx, cfg.Reply.ScriptDSN, cfg.Reply.ScriptPath, log)
	assets, err := chooseAssetResolver(cfg, log)
	if err != nil {
		return nil, err
	}
	deps := &replyDeps{
		scripts:       scripts,
		scriptBackend: script.Describe(scripts),
		assets:        assets,
		cfg:           cfg,
		log:           log,
		close: func() error {
			if c, ok := scripts.(io.Closer); ok {
				return c.Close()
			}
			return nil
		},
	}
	if cfg.Gemini.Enabled() {
		streamer, err := reply.NewGeminiStreamer(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize gemini: %w", err)
		}
		deps.gemini = streamer
	}
	return deps, nil
}

// producer prefers the model when one is configured and replays scripts
// otherwise.
func (d *replyDeps) producer(m *metrics.Metrics) reply.Producer {
	var p reply.Producer
	if d.gemini != nil {
		p = reply.NewGeminiProducer(d.gemini, d.cfg.Gemini.Model)
	} else {
		p = reply.NewScriptProducer(d.scripts, d.assets, d.cfg.Reply.Script, d.cfg.Reply.ChunkDelay, d.log)
	}
	return reply.Instrument(p, m)
}

func chooseAssetResolver(cfg *config.Config, log *zap.Logger) (asset.Resolver, error) {
	if !cfg.Asset.Enabled {
		return asset.PassThrough{}, nil
	}
	r, err := asset.NewS3Resolver(asset.S3Config{
		Endpoint:  cfg.Asset.Endpoint,
		Region:    cfg.Asset.Region,
		AccessKey: cfg.Asset.AccessKey,
		SecretKey: cfg.Asset.SecretKey,
		Bucket:    cfg.Asset.Bucket,
		UseSSL:    cfg.Asset.UseSSL,
		Expiry:    cfg.Asset.URLExpiry,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize asset resolver: %w", err)
	}
	log.Info("asset resolver: s3", zap.String("bucket", cfg.Asset.Bucket), zap.String("endpoint", cfg.Asset.Endpoint))
	return r, nil
}
