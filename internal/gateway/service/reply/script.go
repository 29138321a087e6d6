package reply

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"chunkchat/internal/chunk"
	"chunkchat/internal/gateway/repository/asset"
	"chunkchat/internal/gateway/repository/script"
	"chunkchat/internal/logging"
)

// ScriptProducer replays a stored chunk script with a fixed pause between
// chunks. A message of the form "/<name>" selects the script <name> when it
// exists.
type ScriptProducer struct {
	store  script.Store
	assets asset.Resolver
	name   string
	delay  time.Duration
	log    *zap.Logger
}

func NewScriptProducer(store script.Store, assets asset.Resolver, defaultScript string, delay time.Duration, log *zap.Logger) *ScriptProducer {
	if assets == nil {
		assets = asset.PassThrough{}
	}
	return &ScriptProducer{
		store:  store,
		assets: assets,
		name:   defaultScript,
		delay:  delay,
		log:    logging.OrNop(log),
	}
}

func (p *ScriptProducer) Name() string { return "script" }

func (p *ScriptProducer) Stream(ctx context.Context, req Request, emit Emit) error {
	sc, err := p.pick(ctx, req.Text)
	if err != nil {
		return err
	}
	last := len(sc.Chunks) - 1
	for i, c := range sc.Chunks {
		if i > 0 && p.delay > 0 {
			if err := sleep(ctx, p.delay); err != nil {
				return err
			}
		}
		c, err = p.resolveAssets(ctx, c)
		if err != nil {
			return err
		}
		// Only the final chunk closes the message.
		c.IsComplete = i == last
		if err := emit(c); err != nil {
			return err
		}
	}
	return nil
}

func (p *ScriptProducer) pick(ctx context.Context, text string) (script.Script, error) {
	if name, ok := strings.CutPrefix(strings.TrimSpace(text), "/"); ok && name != "" {
		sc, err := p.store.Get(ctx, name)
		switch {
		case err == nil && len(sc.Chunks) > 0:
			return sc, nil
		case err == nil || errors.Is(err, script.ErrNotFound):
			p.log.Debug("requested script unusable; using default", zap.String("script", name))
		default:
			return script.Script{}, err
		}
	}
	sc, err := p.store.Get(ctx, p.name)
	if err != nil {
		return script.Script{}, fmt.Errorf("load reply script: %w", err)
	}
	if len(sc.Chunks) == 0 {
		return script.Script{}, fmt.Errorf("reply script %q is empty", sc.Name)
	}
	return sc, nil
}

func (p *ScriptProducer) resolveAssets(ctx context.Context, c chunk.Chunk) (chunk.Chunk, error) {
	c = c.Clone()
	if c.Type == chunk.KindImage && c.Invalid == "" {
		src, err := p.assets.Resolve(ctx, c.Text)
		if err != nil {
			return c, fmt.Errorf("resolve image: %w", err)
		}
		c.Text = src
	}
	if c.Metadata.Icon != nil && c.Metadata.Icon.URL != "" {
		src, err := p.assets.Resolve(ctx, c.Metadata.Icon.URL)
		if err != nil {
			return c, fmt.Errorf("resolve icon: %w", err)
		}
		c.Metadata.Icon.URL = src
	}
	return c, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
