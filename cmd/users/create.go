package users

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vksagar82/society-management-app-sub001/cmd/cmdutil"
	"github.com/vksagar82/society-management-app-sub001/internal/services/accounts"
)

var (
	emailFlag      string
	fullNameFlag   string
	passwordFlag   string
	globalRoleFlag string
	stdinFlag      bool
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an active user, optionally with a global role",
	RunE: func(cmd *cobra.Command, args []string) error {
		if emailFlag == "" {
			return fmt.Errorf("--email flag is required")
		}
		if fullNameFlag == "" {
			return fmt.Errorf("--full-name flag is required")
		}

		password := passwordFlag
		if stdinFlag {
			scanner := bufio.NewScanner(os.Stdin)
			fmt.Fprint(cmd.ErrOrStderr(), "Enter password: ")
			if scanner.Scan() {
				password = scanner.Text()
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
		}
		if password == "" {
			return fmt.Errorf("password is required (use --password or --stdin)")
		}

		app, err := cmdutil.NewApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := app.Close(ctx); err != nil {
				logger.Warn("cleanup failed", zap.Error(err))
			}
		}()

		user, err := app.Accounts.CreateUser(cmd.Context(), accounts.CreateUserInput{
			Email:      emailFlag,
			Password:   password,
			FullName:   fullNameFlag,
			GlobalRole: globalRoleFlag,
		})
		if err != nil {
			return fmt.Errorf("create user: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Created user %s (%s)\n", user.Email, user.ID)
		if globalRoleFlag != "" {
			fmt.Fprintf(out, "Global role: %s\n", globalRoleFlag)
		}
		return nil
	},
}
