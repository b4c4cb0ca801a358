package accounts

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qaportal/portal/cmd/portalapi/internal/services/iam"
)

var setRoleCmd = &cobra.Command{
	Use:   "set-role [account-id] [role]",
	Short: "Assign a role to an account",
	Long: `Appends a role assignment for the account. The role is a name
(default_user, User, Admin, super_admin) or its ordinal (1-4).`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		accountID, err := parseAccountID(args[0])
		if err != nil {
			return err
		}
		role, err := iam.ParseRole(args[1])
		if err != nil {
			return err
		}

		bundle, err := openService()
		if err != nil {
			return err
		}
		defer bundle.Close()

		view, err := bundle.Service.AssignRole(cmd.Context(), nil, accountID, role)
		if err != nil {
			return fmt.Errorf("failed to assign role: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Assigned role %s to %s (account %d)\n", view.Role, view.Email, view.ID)
		return nil
	},
}
