package accounts

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts with their effective role and approval",
	RunE: func(cmd *cobra.Command, args []string) error {
		bundle, err := openService()
		if err != nil {
			return err
		}
		defer bundle.Close()

		views, err := bundle.Service.ListAccounts(cmd.Context(), nil)
		if err != nil {
			return fmt.Errorf("failed to list accounts: %w", err)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tEMAIL\tNAME\tROLE\tAPPROVAL\tACTIVE\tCREATED_AT\tLAST_LOGIN_AT")
		for _, v := range views {
			lastLogin := "-"
			if v.LastLoginAt != nil {
				lastLogin = *v.LastLoginAt
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%t\t%s\t%s\n",
				v.ID,
				v.Email,
				v.DisplayName,
				v.Role,
				v.ApprovalStatus,
				v.IsActive,
				v.CreatedAt,
				lastLogin,
			)
		}
		return w.Flush()
	},
}
