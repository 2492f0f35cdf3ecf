package cmd

import (
	"github.com/spf13/cobra"

	"github.com/stableminer/stableminer/services/wallet"
	"github.com/stableminer/stableminer/state"
)

func nodeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Locate and inspect Ergo nodes.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "scan",
		Short: "Probe the usual local node ports and print the first node that answers.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc := wallet.NewService(state.NewSessions(0), httpClients(), nil, "")
			return printJSON(cmd.OutOrStdout(), svc.Scan(cmd.Context()))
		},
	})

	return cmd
}
