package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/stableminer/stableminer/controller"
	"github.com/stableminer/stableminer/dexy"
	"github.com/stableminer/stableminer/erg"
	httpsrv "github.com/stableminer/stableminer/http"
	"github.com/stableminer/stableminer/logger"
	"github.com/stableminer/stableminer/services/wallet"
	"github.com/stableminer/stableminer/state"
)

// serveCommand runs the HTTP API the browser UI talks to.
func serveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API for wallet connection, Dexy status, quotes and mints.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer logger.Flush()
			log := zap.L()

			b, err := connectBackends(context.Background())
			if err != nil {
				log.Error("failed to connect backends", zap.Error(err))
				return err
			}
			defer b.close()

			clients := httpClients()
			explorer, err := erg.NewExplorer(clients.Read, viper.GetString("explorer.mainnet"), viper.GetString("explorer.testnet"))
			if err != nil {
				return err
			}

			router := controller.NewRouter(controller.Services{
				Wallets:       wallet.NewService(state.NewSessions(state.DefaultSessionIdle), clients, explorer, viper.GetString("ergo_node.url")),
				Dexy:          dexy.NewService(b.guard, b.notifier()),
				Notifs:        b.notifs,
				RatePerSecond: viper.GetFloat64("ratelimit.per_second"),
			})
			server := controller.NewServer(router, viper.GetInt("server.port"))

			server.Start()
			log.Info("service started...", zap.Int("port", viper.GetInt("server.port")))

			httpsrv.WaitForSignal(server)
			return nil
		},
	}

	cmd.Flags().Int("port", 0, "HTTP listen port")
	_ = viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))

	return cmd
}
