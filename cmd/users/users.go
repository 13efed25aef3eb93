package users

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vksagar82/society-management-app-sub001/internal/config"
)

var (
	cfg    *config.Config
	logger *zap.Logger
)

// Configure hands the loaded configuration and logger to the subcommands.
func Configure(c *config.Config, l *zap.Logger) {
	cfg, logger = c, l
}

// UsersCmd is the parent command for user management operations
var UsersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage users",
	Long:  `Commands for managing users directly from the server, e.g. seeding the first developer.`,
}

func init() {
	createCmd.Flags().StringVar(&emailFlag, "email", "", "Email address of the user")
	createCmd.Flags().StringVar(&fullNameFlag, "full-name", "", "Full name of the user")
	createCmd.Flags().StringVar(&passwordFlag, "password", "", "Password for the user (use --stdin to avoid shell history)")
	createCmd.Flags().StringVar(&globalRoleFlag, "global-role", "", "Global role to grant: developer, admin, manager or member")
	createCmd.Flags().BoolVar(&stdinFlag, "stdin", false, "Read password from stdin instead of --password flag")

	UsersCmd.AddCommand(createCmd)
}
