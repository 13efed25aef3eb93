package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/vksagar82/society-management-app-sub001/cmd/scopes"
	"github.com/vksagar82/society-management-app-sub001/cmd/users"
	"github.com/vksagar82/society-management-app-sub001/internal/config"
	"github.com/vksagar82/society-management-app-sub001/internal/logging"
)

const serviceName = "societyapi"

var (
	cfg        *config.Config
	logger     *zap.Logger
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "societyapi",
	Short: "Society management API server",
	Long: `societyapi serves the multi-tenant society management API: accounts,
membership approval, scoped authorization, issues and the audit trail.`,
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
		logger, err = logging.New(cfg.Log.Level, cfg.Log.Format, serviceName)
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}
		users.Configure(cfg, logger)
		scopes.Configure(cfg, logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a config file (yaml, json or toml)")
	rootCmd.PersistentFlags().String("db-url", "", "Database connection URL (env: SOCIETY_DATABASE_URL)")
	rootCmd.PersistentFlags().String("server-addr", "", "Server bind address (env: SOCIETY_SERVER_ADDR)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging (env: SOCIETY_DEBUG)")

	_ = viper.BindPFlag("database_url", rootCmd.PersistentFlags().Lookup("db-url"))
	_ = viper.BindPFlag("server_addr", rootCmd.PersistentFlags().Lookup("server-addr"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	rootCmd.AddCommand(users.UsersCmd)
	rootCmd.AddCommand(scopes.ScopesCmd)
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
