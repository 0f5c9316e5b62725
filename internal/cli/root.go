package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"table-ordering/internal/common/logger"
	"table-ordering/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	LogLevel   string

	cfg *config.Config
}

// NewRootCommand creates the table-ordering command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "table-ordering",
		Short: "Restaurant table ordering services",
		Long: `Dine-in ordering: staff open tables, customer devices order against a
table session, the kitchen hears batched alerts and staff settle bills.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to YAML config (default: search config.yaml, deploy/)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "debug|info|warn|error (overrides config)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewOrderServiceCommand(opts))
	cmd.AddCommand(NewKitchenWorkerCommand(opts))
	cmd.AddCommand(NewNotificationSubscriberCommand(opts))

	return cmd
}

func (o *RootOptions) load() error {
	path := o.ConfigPath
	if path == "" {
		path = config.FindConfig()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}
	lv, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	logger.SetLevel(lv)
	o.cfg = cfg
	return nil
}
