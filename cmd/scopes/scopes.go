// Package scopes holds the CLI commands for inspecting the scope catalog.
package scopes

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vksagar82/society-management-app-sub001/cmd/cmdutil"
	"github.com/vksagar82/society-management-app-sub001/internal/auth"
	"github.com/vksagar82/society-management-app-sub001/internal/config"
	"github.com/vksagar82/society-management-app-sub001/internal/db/bunx"
	"github.com/vksagar82/society-management-app-sub001/internal/repository"
	"github.com/vksagar82/society-management-app-sub001/internal/services/iam"
	scopesvc "github.com/vksagar82/society-management-app-sub001/internal/services/scopes"
)

var (
	cfg    *config.Config
	logger *zap.Logger

	societyFlag string
)

// Configure hands the loaded configuration and logger to the subcommands.
func Configure(c *config.Config, l *zap.Logger) {
	cfg, logger = c, l
}

// ScopesCmd is the parent command for scope catalog operations.
var ScopesCmd = &cobra.Command{
	Use:   "scopes",
	Short: "Inspect the scope catalog and overrides",
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every scope with the effective grant per role",
	Long: `Prints the scope catalog resolved against the built-in defaults and the
stored overrides. With --society the society's overrides are applied on top
of the system tier.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := cmdutil.OpenDB(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer bunx.Close(db)

		defaults, err := auth.NewDefaultTable()
		if err != nil {
			return fmt.Errorf("build default scope table: %w", err)
		}
		records := repository.NewBunScopeRecordRepository(db)
		stored, err := records.ListAll(cmd.Context())
		if err != nil {
			return fmt.Errorf("list scope records: %w", err)
		}
		relevant := stored[:0]
		for _, r := range stored {
			if r.SocietyID == nil || (societyFlag != "" && *r.SocietyID == societyFlag) {
				relevant = append(relevant, r)
			}
		}

		listing, err := scopesvc.Resolve(defaults, societyFlag, relevant)
		if err != nil {
			return err
		}
		logger.Debug("resolved scope listing", zap.Int("scopes", len(listing.Scopes)), zap.Int("records", len(listing.Records)))

		roles := []auth.Role{auth.RoleMember, auth.RoleManager, auth.RoleAdmin}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SCOPE\tMEMBER\tMANAGER\tADMIN\tNOTES")
		sort.Slice(listing.Scopes, func(i, j int) bool { return listing.Scopes[i].Name < listing.Scopes[j].Name })
		for _, s := range listing.Scopes {
			cells := make([]string, 0, len(roles))
			for _, role := range roles {
				cells = append(cells, describe(s.Roles[role]))
			}
			note := ""
			if s.DeveloperOnly {
				note = "developer only"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Name, strings.Join(cells, "\t"), note)
		}
		return tw.Flush()
	},
}

func describe(rs scopesvc.RoleState) string {
	mark := "-"
	if rs.Effective {
		mark = "yes"
	}
	if rs.Source != "" && rs.Source != iam.TierDefault {
		mark += " (" + rs.Source + ")"
	}
	return mark
}

func init() {
	listCmd.Flags().StringVar(&societyFlag, "society", "", "Apply this society's overrides")
	ScopesCmd.AddCommand(listCmd)
}
