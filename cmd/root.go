package cmd

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v9"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/stableminer/stableminer/config"
	"github.com/stableminer/stableminer/dexy"
	"github.com/stableminer/stableminer/erg"
	"github.com/stableminer/stableminer/logger"
	"github.com/stableminer/stableminer/services/notif"
	"github.com/stableminer/stableminer/state"
)

var cfgFile string

// Execute runs the root command.
func Execute() error {
	return RootCommand().Execute()
}

// RootCommand is the core component for every stableminer command.
func RootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   config.Application,
		Short: config.ApplicationFull,
		Long: `
Mint Dexy stablecoins on Ergo through a local node wallet, either from the
command line or through the bundled HTTP API.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.Load(cfgFile); err != nil {
				return err
			}
			logger.Initialize(config.Application)
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default ./stableminer.yaml)")
	flags.String("node", "", "Ergo node URL")
	flags.String("api-key", "", "Ergo node API key")
	flags.String("network", "", "mainnet or testnet")
	flags.String("log-level", "", "debug, info, warn or error")
	_ = viper.BindPFlag("ergo_node.url", flags.Lookup("node"))
	_ = viper.BindPFlag("ergo_node.api_key", flags.Lookup("api-key"))
	_ = viper.BindPFlag("ergo_node.network", flags.Lookup("network"))
	_ = viper.BindPFlag("logging.level", flags.Lookup("log-level"))

	cmd.AddCommand(serveCommand())
	cmd.AddCommand(dexyCommand())
	cmd.AddCommand(nodeCommand())

	return cmd
}

func httpClients() erg.HTTPClients {
	return erg.NewHTTPClients(viper.GetDuration("ergo_node.timeout"), viper.GetInt("ergo_node.retry_max"))
}

func newNode() (*erg.ErgNode, error) {
	if err := config.RequireNodeAccess(); err != nil {
		return nil, err
	}
	return erg.NewErgNode(httpClients(), viper.GetString("ergo_node.url"), viper.GetString("ergo_node.api_key"))
}

// connectRedis returns nil when redis.addr is unset.
func connectRedis(ctx context.Context) (*redis.Client, error) {
	addr := viper.GetString("redis.addr")
	if addr == "" {
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: viper.GetString("redis.password"),
		DB:       viper.GetInt("redis.db"),
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis db %s - %w", addr, err)
	}
	return rdb, nil
}

// connectNATS returns nil when nats.endpoint is unset.
func connectNATS() (*nats.Conn, error) {
	endpoint := viper.GetString("nats.endpoint")
	if endpoint == "" {
		return nil, nil
	}
	nc, err := nats.Connect(endpoint, nats.Name(config.Application))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats server %s - %w", endpoint, err)
	}
	return nc, nil
}

// backends wires the optional shared mint lock and notification publisher.
type backends struct {
	rdb    *redis.Client
	nc     *nats.Conn
	guard  *state.MintGuard
	notifs *notif.Service
}

func connectBackends(ctx context.Context) (*backends, error) {
	log := zap.L()
	b := &backends{}

	var err error
	if b.rdb, err = connectRedis(ctx); err != nil {
		return nil, err
	}
	b.guard = state.NewMintGuard(b.rdb, viper.GetDuration("redis.lock_ttl"))

	if b.nc, err = connectNATS(); err != nil {
		b.close()
		return nil, err
	}
	if b.nc != nil {
		if b.notifs, err = notif.NewService(b.nc, b.rdb, viper.GetString("nats.notif_mints_subj")); err != nil {
			b.close()
			return nil, fmt.Errorf("failed to create notif service - %w", err)
		}
	} else {
		log.Debug("nats.endpoint not set, mint notifications disabled")
	}

	return b, nil
}

func (b *backends) close() {
	if b.notifs != nil {
		b.notifs.Stop()
	}
	if b.nc != nil {
		b.nc.Close()
	}
	if b.rdb != nil {
		_ = b.rdb.Close()
	}
}

// notifier avoids handing dexy a typed nil.
func (b *backends) notifier() dexy.Notifier {
	if b.notifs == nil {
		return nil
	}
	return b.notifs
}
