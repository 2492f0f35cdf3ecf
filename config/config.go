package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/stableminer/stableminer/erg"
	"github.com/stableminer/stableminer/logger"
)

const (
	Application     = "stableminer"
	ApplicationFull = "StableMiner Dexy mint client"

	EnvPrefix = "STABLEMINER"
)

var (
	ErrMissingNodeApiKey = errors.New("config ergo_node.api_key is missing")
	ErrInvalidNetwork    = errors.New("config ergo_node.network must be mainnet or testnet")
)

// Load reads cfgFile when given, otherwise stableminer.yaml from the working
// directory or $HOME/.stableminer. Environment variables use the
// STABLEMINER_ prefix with dots replaced by underscores.
func Load(cfgFile string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(Application)
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/." + Application)
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config - %w", err)
		}
	}

	SetDefaults()
	return nil
}

func SetDefaults() {
	SetLoggingDefaults()
	SetNodeDefaults()
	SetExplorerDefaults()
	SetServerDefaults()
	SetMessagingDefaults()
}

// SetLoggingDefaults applies logging.level. An unknown level falls back to
// info.
func SetLoggingDefaults() {
	viper.SetDefault("logging.level", "info")
	logger.SetLevel(viper.GetString("logging.level"))
}

func SetNodeDefaults() {
	viper.SetDefault("ergo_node.url", "http://127.0.0.1:9053")
	viper.SetDefault("ergo_node.network", "mainnet")
	viper.SetDefault("ergo_node.timeout", "10s")
	viper.SetDefault("ergo_node.retry_max", 2)
}

func SetExplorerDefaults() {
	viper.SetDefault("explorer.mainnet", erg.MainnetExplorer)
	viper.SetDefault("explorer.testnet", erg.TestnetExplorer)
}

func SetServerDefaults() {
	viper.SetDefault("server.port", 4310)
	viper.SetDefault("ratelimit.per_second", 2.0)
}

func SetMessagingDefaults() {
	viper.SetDefault("nats.notif_mints_subj", "notif.mints")
	viper.SetDefault("redis.lock_ttl", "2m")
}

// RequireNodeAccess checks the settings the headless commands need to reach
// a node wallet.
func RequireNodeAccess() error {
	if viper.GetString("ergo_node.api_key") == "" {
		zap.L().Error("required config is absent", zap.Error(ErrMissingNodeApiKey))
		return ErrMissingNodeApiKey
	}
	switch viper.GetString("ergo_node.network") {
	case "mainnet", "testnet":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidNetwork, viper.GetString("ergo_node.network"))
	}
	return nil
}
