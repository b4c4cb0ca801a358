package accounts

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/qaportal/portal/cmd/portalapi/cmd/cmdutil"
	"github.com/qaportal/portal/cmd/portalapi/internal/config"
)

// AccountsCmd is the parent command for account administration. Changes made
// here are recorded with the system as the actor.
var AccountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage provisioned accounts",
	Long:  `Commands for listing accounts and changing their role or approval directly from the server.`,
}

func init() {
	AccountsCmd.AddCommand(listCmd)
	AccountsCmd.AddCommand(setRoleCmd)
	AccountsCmd.AddCommand(setApprovalCmd)
}

func openService() (*cmdutil.IAMServiceBundle, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cmdutil.NewIAMServiceBundle(cfg, slog.Default())
}

func parseAccountID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid account id %q", arg)
	}
	return id, nil
}
