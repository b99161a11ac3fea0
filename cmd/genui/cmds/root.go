// Package cmds implements the genui command line.
package cmds

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/sweetpotato0/genui/config"
	"github.com/sweetpotato0/genui/contrib/provider"
	"github.com/sweetpotato0/genui/conversation"
	"github.com/sweetpotato0/genui/conversation/store"
	"github.com/sweetpotato0/genui/model"
	"github.com/sweetpotato0/genui/pkg/logging"
	"github.com/sweetpotato0/genui/pkg/telemetry"
)

// ClientFactory builds the model client for the loaded configuration.
type ClientFactory func(ctx context.Context, cfg config.ModelConfig) (model.Client, error)

// app is the state shared by every subcommand. It is populated in the root
// command's PersistentPreRunE.
type app struct {
	newClient ClientFactory

	configPath string
	logLevel   string
	backend    string

	cfg      *config.Config
	logger   *slog.Logger
	repo     conversation.Repository
	manager  *conversation.Manager
	closers  []func() error
	shutdown func(context.Context) error
}

// NewRootCommand returns the genui command tree backed by real providers.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{newClient: provider.New})
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "genui",
		Short: "Chat with a model that answers in text or with UI capabilities",
		Long: `genui runs conversation turns against a language model. Each turn ends
with exactly one artifact: streamed text, the payload of a capability the
model selected, or an error.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close(cmd.Context())
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (default ./genui.yaml or $HOME/.genui/genui.yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")
	root.PersistentFlags().StringVar(&a.backend, "store", "", "history backend: memory, redis, postgres or mongo")

	root.AddCommand(newChatCommand(a), newHistoryCommand(a))
	return root
}

func (a *app) setup(ctx context.Context) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.backend != "" {
		cfg.Store.Backend = a.backend
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	a.logger = logging.New(os.Stderr, cfg.Log.Format, cfg.Log.Level)
	logging.SetLogger(a.logger)

	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "genui",
		Disable:     cfg.Telemetry.Disable,
		Exporter:    cfg.Telemetry.Exporter,
		Endpoint:    cfg.Telemetry.Endpoint,
		SampleRatio: cfg.Telemetry.SampleRatio,
		Logger:      a.logger,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	a.shutdown = shutdown

	if a.repo == nil {
		repo, closeRepo, err := store.Open(ctx, store.FromConfig(cfg.Store))
		if err != nil {
			return fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
		}
		a.repo = repo
		a.closers = append(a.closers, closeRepo)
	}

	policy, err := conversation.ParseBusyPolicy(cfg.BusyPolicy)
	if err != nil {
		return err
	}
	a.manager = conversation.NewManager(a.repo,
		conversation.WithBusyPolicy(policy),
		conversation.WithLogger(logging.WithComponent("conversation")),
	)
	return nil
}

func (a *app) close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if a.shutdown != nil {
		if err := a.shutdown(context.WithoutCancel(ctx)); err != nil {
			errs = append(errs, err)
		}
		a.shutdown = nil
	}
	return errors.Join(errs...)
}
