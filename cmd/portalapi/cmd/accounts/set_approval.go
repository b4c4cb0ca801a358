package accounts

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qaportal/portal/cmd/portalapi/internal/db/models"
)

var setApprovalCmd = &cobra.Command{
	Use:   "set-approval [account-id] [status]",
	Short: "Set an account's approval status (Pending, Approved or Rejected)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		accountID, err := parseAccountID(args[0])
		if err != nil {
			return err
		}

		bundle, err := openService()
		if err != nil {
			return err
		}
		defer bundle.Close()

		view, err := bundle.Service.SetApprovalStatus(cmd.Context(), nil, accountID, models.ApprovalStatus(args[1]))
		if err != nil {
			return fmt.Errorf("failed to set approval: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Approval of %s (account %d) is now %s\n", view.Email, view.ID, view.ApprovalStatus)
		return nil
	},
}
