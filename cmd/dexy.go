package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/stableminer/stableminer/dexy"
	"github.com/stableminer/stableminer/erg"
)

var ErrNoWalletAddress = errors.New("node wallet has no addresses")

func dexyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dexy",
		Short: "Inspect the Dexy protocol and mint through the configured node wallet.",
	}

	cmd.AddCommand(dexyStatusCommand())
	cmd.AddCommand(dexyQuoteCommand())
	cmd.AddCommand(dexyMintCommand())

	return cmd
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// walletAccount resolves the account headless commands act for: the
// --address flag, else the node wallet's first address.
func walletAccount(ctx context.Context, node *erg.ErgNode, address string) (dexy.Account, error) {
	account := dexy.Account{
		Address: address,
		Network: viper.GetString("ergo_node.network"),
	}
	if account.Address != "" {
		return account, nil
	}

	addresses, err := node.WalletAddresses(ctx)
	if err != nil {
		return account, fmt.Errorf("error getting wallet addresses - %w", err)
	}
	if len(addresses) == 0 {
		return account, ErrNoWalletAddress
	}
	account.Address = addresses[0]
	return account, nil
}

func dexyStatusCommand() *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the current protocol state and both mint channels.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			node, err := newNode()
			if err != nil {
				return err
			}
			account, err := walletAccount(cmd.Context(), node, address)
			if err != nil {
				return err
			}

			resp, err := dexy.NewService(nil, nil).Status(cmd.Context(), node, account)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "wallet address to report (default: first node wallet address)")

	return cmd
}

func dexyQuoteCommand() *cobra.Command {
	var ergAmount, mode string

	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a mint for an ERG amount without submitting anything.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			node, err := newNode()
			if err != nil {
				return err
			}
			account := dexy.Account{Network: viper.GetString("ergo_node.network")}

			resp, err := dexy.NewService(nil, nil).Quote(cmd.Context(), node, account, ergAmount, mode)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringVar(&ergAmount, "erg", "", "ERG to spend, e.g. 10 or 2.5")
	cmd.Flags().StringVar(&mode, "mode", "auto", "free, arbitrage or auto")
	_ = cmd.MarkFlagRequired("erg")

	return cmd
}

func dexyMintCommand() *cobra.Command {
	var ergAmount, mode, address string

	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Build, sign and broadcast a mint through the node wallet.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			node, err := newNode()
			if err != nil {
				return err
			}
			account, err := walletAccount(cmd.Context(), node, address)
			if err != nil {
				return err
			}

			b, err := connectBackends(cmd.Context())
			if err != nil {
				return err
			}
			defer b.close()

			resp, err := dexy.NewService(b.guard, b.notifier()).Mint(cmd.Context(), node, account, ergAmount, mode)
			if err != nil {
				zap.L().Debug("mint failed", zap.Error(err))
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringVar(&ergAmount, "erg", "", "ERG to spend, e.g. 10 or 2.5")
	cmd.Flags().StringVar(&mode, "mode", "auto", "free, arbitrage or auto")
	cmd.Flags().StringVar(&address, "address", "", "address receiving the minted tokens (default: first node wallet address)")
	_ = cmd.MarkFlagRequired("erg")

	return cmd
}
