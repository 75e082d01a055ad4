package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	clientrealtime "devrim/internal/client/realtime"
	"devrim/internal/client/rest"
	"devrim/internal/session"
)

var (
	apiURL   string
	apiToken string
)

var rootCmd = &cobra.Command{
	Use:   "devrimctl",
	Short: "Terminal client for DevRim chats",
	Long: `devrimctl talks to the DevRim chat API as one user.

Examples:
  devrimctl chats
  devrimctl start bob
  devrimctl send <chatId> "see you at 6"
  devrimctl pin <chatId> <messageId>
  devrimctl watch

The API url and bearer token come from --api/--token or DEVRIM_API_URL/DEVRIM_TOKEN.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(apiToken) == "" {
			return errors.New("a token is required: pass --token or set DEVRIM_TOKEN")
		}
		return nil
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", envOr("DEVRIM_API_URL", "http://localhost:8080"), "chat API base url")
	rootCmd.PersistentFlags().StringVar(&apiToken, "token", os.Getenv("DEVRIM_TOKEN"), "bearer token")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func cliLogger() *slog.Logger {
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelWarn, TimeFormat: time.Kitchen}))
}

// startSession opens a session. One-shot commands skip the push channel.
func startSession(ctx context.Context, live bool) (*session.Context, error) {
	logger := cliLogger()
	api := rest.New(apiURL, apiToken, rest.WithLogger(logger))
	opts := session.Options{Identity: api, API: api, Logger: logger}
	if live {
		opts.Transport = clientrealtime.New(apiURL, apiToken, logger)
	}
	return session.Start(ctx, opts)
}
