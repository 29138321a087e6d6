// Command chatcli is a terminal client for the chat gateway. Replies are
// reassembled from streamed chunks and printed as markdown.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"chunkchat/internal/chat"
	"chunkchat/internal/logging"
	"chunkchat/internal/transcript"
	"chunkchat/internal/transport/wsclient"
)

type options struct {
	url      string
	name     string
	logLevel string
	plain    bool
	width    int
}

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := options{}
	cmd := &cobra.Command{
		Use:          "chatcli",
		Short:        "Chat with the gateway from a terminal",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts)
		},
	}
	cmd.Flags().StringVar(&opts.url, "url", envOr("CHAT_URL", "ws://localhost:8081/ws/chat"), "gateway websocket url")
	cmd.Flags().StringVarP(&opts.name, "name", "n", os.Getenv("CHAT_NAME"), "display name")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "error", "log level written to stderr")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "print raw markdown without styling")
	cmd.Flags().IntVar(&opts.width, "width", 80, "word wrap width for styled output")
	return cmd
}

func run(ctx context.Context, opts options) error {
	name := strings.TrimSpace(opts.name)
	log, err := logging.New("production", opts.logLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("init terminal: %w", err)
	}
	defer rl.Close()

	if name == "" {
		rl.SetPrompt("name: ")
		line, err := rl.Readline()
		if err != nil {
			return nil
		}
		name = strings.TrimSpace(line)
		if name == "" {
			return errors.New("a display name is required")
		}
		rl.SetPrompt("> ")
	}

	renderer, err := newRenderer(opts.plain, opts.width)
	if err != nil {
		return fmt.Errorf("init renderer: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	client, err := wsclient.Dial(ctx, opts.url, wsclient.Options{Logger: log})
	if err != nil {
		return fmt.Errorf("connect %s: %w", opts.url, err)
	}
	defer client.Close()

	store := transcript.New()
	conv := chat.NewConversation(store, client, log)
	view := newPrinter(rl.Stdout(), renderer)

	viewDone := make(chan struct{})
	go func() {
		defer close(viewDone)
		view.Follow(ctx, store.Watch(ctx))
	}()
	go func() {
		if err := conv.Run(ctx, client.Events()); err != nil {
			log.Warn("conversation stopped", zap.Error(err))
		}
		// The server went away; unblock the prompt.
		cancel()
		_ = rl.Close()
	}()

	if err := conv.Join(ctx, name); err != nil {
		return err
	}

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				break
			}
			continue
		}
		if err != nil {
			break
		}
		if err := conv.Submit(ctx, line); err != nil {
			if ctx.Err() != nil {
				break
			}
			fmt.Fprintf(rl.Stderr(), "send failed: %v\n", err)
		}
	}

	cancel()
	<-viewDone
	view.Print(store.Entries())
	return nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
