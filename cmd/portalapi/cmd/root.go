package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/qaportal/portal/cmd/portalapi/cmd/accounts"
	"github.com/qaportal/portal/cmd/portalapi/internal/config"
	"github.com/qaportal/portal/cmd/portalapi/internal/logging"
)

var (
	cfg        *config.Config
	logger     *slog.Logger
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "portalapi",
	Short: "Portal API server: browser sign-in broker and account administration",
	Long: `Portal API brokers browser sign-in against an external OpenID Connect provider,
provisions local accounts on first sight and manages their roles and approval.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configFile != "" {
			viper.SetConfigFile(configFile)
			if err := viper.ReadInConfig(); err != nil {
				return fmt.Errorf("failed to read config file: %w", err)
			}
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		logger = logging.New(cfg.LogFormat, cfg.Debug, nil)
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Path to a YAML config file")
	flags.String("db-url", "", "Database connection URL (env: PORTAL_DATABASE_URL)")
	flags.String("server-addr", "", "Server bind address (env: PORTAL_SERVER_ADDR)")
	flags.String("server-url", "", "Public base URL of this server (env: PORTAL_SERVER_URL)")
	flags.String("frontend-url", "", "Base URL of the browser client (env: PORTAL_FRONTEND_URL)")
	flags.Bool("debug", false, "Enable debug logging (env: PORTAL_DEBUG)")
	flags.String("log-format", "", "Log format: text or json (env: PORTAL_LOG_FORMAT)")

	for key, flag := range map[string]string{
		"database_url": "db-url",
		"server_addr":  "server-addr",
		"server_url":   "server-url",
		"frontend_url": "frontend-url",
		"debug":        "debug",
		"log_format":   "log-format",
	} {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}

	rootCmd.AddCommand(accounts.AccountsCmd)
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
