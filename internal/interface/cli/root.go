package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sotakimura/conductor/internal/app"
	"github.com/sotakimura/conductor/internal/app/config"
	infraConfig "github.com/sotakimura/conductor/internal/infra/config"
)

// globalConfig holds the loaded configuration for all commands
var globalConfig config.Config

func NewRoot() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conductor",
		Short: "Conductor orchestrates AI engine sessions over a structured record store",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load configuration before any command runs
			// Priority: setting.json > ENV > defaults
			paths := app.ResolvePaths("")

			cfg, err := infraConfig.LoadSettings(paths.Home)
			if err != nil {
				// Continue with defaults if loading fails
				cfg = config.NewAppConfig(
					paths.Home, "claude", nil, 900,
					false, false, "info", "default",
				)
			}
			globalConfig = cfg
			app.SetLogger(app.NewLogger(os.Stderr, cfg.StderrLevel()))
			return nil
		},
		RunE: func(c *cobra.Command, _ []string) error { return c.Help() },
	}
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newChatCmd())
	cmd.AddCommand(newWsCmd())
	cmd.AddCommand(newTruthCmd())
	cmd.AddCommand(newJournalCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}
