// Package main is the interactive terminal client for the gateway.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/flexihub/assistant-gateway/internal/assistant"
	"github.com/flexihub/assistant-gateway/internal/channel"
	"github.com/flexihub/assistant-gateway/internal/chat"
	"github.com/flexihub/assistant-gateway/internal/config"
	natsclient "github.com/flexihub/assistant-gateway/internal/nats"
	"github.com/flexihub/assistant-gateway/internal/orchestrator"
	"github.com/flexihub/assistant-gateway/internal/registry"
	"github.com/flexihub/assistant-gateway/internal/tool"
	"github.com/flexihub/assistant-gateway/pkg/logger"
	"github.com/flexihub/assistant-gateway/pkg/tokens"
)

func main() {
	var (
		assistantID string
		userID      string
		verbose     bool
	)

	root := &cobra.Command{
		Use:   "chat",
		Short: "Interactive terminal chat against a hosted assistant",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), assistantID, userID, verbose)
		},
		SilenceUsage: true,
	}

	root.Flags().StringVar(&assistantID, "assistant", "", "assistant id (defaults to ASSISTANT_ID)")
	root.Flags().StringVar(&userID, "user", "", "user id for thread scoping (defaults to a generated id)")
	root.Flags().BoolVarP(&verbose, "verbose", "v", false, "human-readable debug logging")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, assistantID, userID string, verbose bool) error {
	cfg := config.Load()

	var (
		log *logger.Logger
		err error
	)
	if verbose {
		log, err = logger.NewDevelopment()
	} else {
		log, err = logger.New("error")
	}
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer log.Sync()

	if assistantID == "" {
		assistantID = cfg.AssistantID
	}
	if assistantID == "" {
		return fmt.Errorf("no assistant id: pass --assistant or set ASSISTANT_ID")
	}
	if cfg.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY must be set")
	}
	if userID == "" {
		if userID = cfg.UserIDOverride; userID == "" {
			userID = uuid.New().String()
		}
	}

	client, err := assistant.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
	if err != nil {
		return fmt.Errorf("create assistant client: %w", err)
	}
	reg := registry.New(client, log)

	truncator := tokens.NewTruncator(cfg.TokenizerModel)
	toolReg := tool.NewRegistry()
	tool.RegisterBuiltins(toolReg)
	executor := tool.NewExecutor(toolReg, truncator, cfg.ToolOutputMaxTokens, log)

	channels := []channel.Channel{channel.NewCLI(os.Stdout)}
	if cfg.ChannelEnabled("nats") {
		natsConn, err := natsclient.Connect(natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		defer natsConn.Close()
		channels = append(channels, channel.NewNATS(natsConn, cfg.NATSSubject))
	}
	publisher := channel.NewPublisher(channels, log)

	orch := orchestrator.New(client, reg, executor, publisher, log)
	controller := chat.New(reg, orch, assistantID, userID, os.Stdout, log)

	return controller.RunLoop(ctx, os.Stdin)
}
