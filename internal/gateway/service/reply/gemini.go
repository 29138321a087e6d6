package reply

import (
	"context"
	"fmt"
	"iter"
	"strings"

	genai "google.golang.org/genai"

	"chunkchat/internal/chunk"
)

// TextStreamer yields a model's output as text deltas.
type TextStreamer interface {
	StreamText(ctx context.Context, prompt string) iter.Seq2[string, error]
}

type genaiStreamer struct {
	cli   *genai.Client
	model string
}

// NewGeminiStreamer wraps the official genai client.
func NewGeminiStreamer(ctx context.Context, apiKey, model string) (TextStreamer, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	return &genaiStreamer{cli: cli, model: model}, nil
}

func (g *genaiStreamer) StreamText(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for resp, err := range g.cli.Models.GenerateContentStream(ctx, g.model, genai.Text(prompt), nil) {
			if err != nil {
				yield("", err)
				return
			}
			if !yield(resp.Text(), nil) {
				return
			}
		}
	}
}

// GeminiProducer streams model output as text chunks, one per delta. The
// stream is read one delta ahead so the last chunk can carry IsComplete.
type GeminiProducer struct {
	streamer TextStreamer
	model    string
}

func NewGeminiProducer(streamer TextStreamer, model string) *GeminiProducer {
	return &GeminiProducer{streamer: streamer, model: model}
}

func (p *GeminiProducer) Name() string { return "gemini" }

func (p *GeminiProducer) Stream(ctx context.Context, req Request, emit Emit) error {
	prompt := strings.TrimSpace(req.Text)
	if prompt == "" {
		return fmt.Errorf("prompt is empty")
	}

	var pending *chunk.Chunk
	for delta, err := range p.streamer.StreamText(ctx, prompt) {
		if err != nil {
			return fmt.Errorf("gemini %s: %w", p.model, err)
		}
		if delta == "" {
			continue
		}
		if pending != nil {
			if err := emit(*pending); err != nil {
				return err
			}
		}
		c := chunk.Text(delta)
		pending = &c
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if pending == nil {
		empty := chunk.Text("No response.")
		empty.Metadata.Formatting = "italic"
		pending = &empty
	}
	return emit(pending.Complete())
}
