package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"chatflow-tutor/internal/chat"
	"chatflow-tutor/internal/chatflow"
	"chatflow-tutor/internal/config"
	"chatflow-tutor/internal/metrics"
	"chatflow-tutor/internal/session"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
)

// app holds what every subcommand needs. It is filled in by the root
// command's PersistentPreRunE and torn down in PersistentPostRun.
type app struct {
	cfg      config.ClientConfig
	client   *chatflow.Client
	store    session.Store
	sessions *session.Manager
	metrics  *metrics.Metrics

	logFile *os.File
	server  *http.Server
}

var current app

var rootCmd = &cobra.Command{
	Use:   "tutor",
	Short: "Terminal client for the AI Tutor chat flow",
	Long: `tutor talks to a chat-flow service: it keeps a session token across runs,
loads the conversation history, polls for replies from the bot or a live
agent and sends text and file attachments.`,
	Version:           fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) { teardown() },
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().String("env", "", "env file to load before reading config")
}

func setup(cmd *cobra.Command, args []string) error {
	envFile, err := cmd.Flags().GetString("env")
	if err != nil {
		return err
	}
	if err := config.LoadEnvFile(envFile); err != nil {
		return err
	}

	cfg, err := config.LoadClientConfig()
	if err != nil {
		return err
	}
	current.cfg = cfg

	if current.logFile, err = config.SetupLogFile(cfg.LogFile, false); err != nil {
		return err
	}

	current.client, err = chatflow.NewClient(cfg.BaseURL, cfg.Account, cfg.Timeout)
	if err != nil {
		return err
	}

	if current.store, err = openStore(cfg); err != nil {
		return err
	}
	current.sessions = session.NewManager(current.store, cfg.SessionTTL)

	current.metrics = metrics.New()
	if cfg.MetricsAddr != "" {
		current.server = &http.Server{Addr: cfg.MetricsAddr, Handler: current.metrics.Handler()}
		go func() {
			if err := current.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server stopped", "addr", cfg.MetricsAddr, "error", err)
			}
		}()
	}

	slog.Info("tutor configured", "base_url", cfg.BaseURL, "account", cfg.Account, "session_store", cfg.SessionStore)
	return nil
}

func openStore(cfg config.ClientConfig) (session.Store, error) {
	switch cfg.SessionStore {
	case config.StoreMemory:
		return session.NewMemoryStore(), nil
	case config.StorePebble:
		return session.OpenPebbleStore(filepath.Join(cfg.DataDir, "session"))
	default:
		return session.OpenSQLStore(filepath.Join(cfg.DataDir, "tutor.db"))
	}
}

func teardown() {
	if current.server != nil {
		if err := current.server.Close(); err != nil {
			slog.Error("error closing metrics server", "error", err)
		}
	}
	if current.store != nil {
		if err := current.store.Close(); err != nil {
			slog.Error("error closing session store", "error", err)
		}
	}
	if current.logFile != nil {
		current.logFile.Close()
	}
}

func newConversation(notifier chat.Notifier) *chat.Conversation {
	return chat.NewConversation(current.client, current.sessions, notifier, current.metrics, chat.Options{
		PollInterval:         current.cfg.PollInterval,
		SessionCheckInterval: current.cfg.SessionCheckInterval,
		HistoryPageSize:      current.cfg.HistoryPageSize,
	})
}
