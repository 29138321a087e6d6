package reply

import (
	"context"
	"errors"

	"chunkchat/internal/chunk"
	"chunkchat/internal/metrics"
)

// Instrumented counts the chunks and outcomes of another producer.
type Instrumented struct {
	next    Producer
	metrics *metrics.Metrics
}

func Instrument(next Producer, m *metrics.Metrics) Producer {
	if m == nil {
		return next
	}
	return &Instrumented{next: next, metrics: m}
}

func (p *Instrumented) Name() string { return p.next.Name() }

func (p *Instrumented) Stream(ctx context.Context, req Request, emit Emit) error {
	err := p.next.Stream(ctx, req, func(c chunk.Chunk) error {
		if err := emit(c); err != nil {
			return err
		}
		p.metrics.ChunksSent.WithLabelValues(c.TypeName()).Inc()
		return nil
	})
	p.metrics.Replies.WithLabelValues(p.next.Name(), outcome(err)).Inc()
	return err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "completed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "failed"
	}
}
