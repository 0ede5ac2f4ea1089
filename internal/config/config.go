// Package config loads HubConfig from Cobra flags, CHAOSC_* environment
// variables, and an optional YAML file, via github.com/spf13/viper bound to
// the command's flag set — the pairing onyx-and-iris/xair-cli uses for its
// own spf13/cobra-driven CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/oschub/chaosc/internal/resolve"
)

// HubConfig is the hub's immutable-after-startup configuration: the shared
// secret, bind address, initial subscription file, and address-family
// mode.
type HubConfig struct {
	Secret           string
	BindHost         string
	BindPort         int
	SubscriptionFile string
	SavePath         string
	Mode             resolve.Mode
	MaxPacketSize    int
	LogLevel         string
}

const envPrefix = "CHAOSC"

// RegisterFlags adds the hub's configuration flags to cmd, with the
// defaults Viper falls back to when neither a flag nor an environment
// variable nor a config file sets the value.
func RegisterFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("secret", "", "shared secret required to authenticate control requests")
	flags.String("bind-host", "::", "address to bind the hub's UDP socket to")
	flags.Int("bind-port", 9001, "port to bind the hub's UDP socket to")
	flags.String("subscription-file", "", "subscription file to load at startup")
	flags.String("save-path", "", "path /save writes to; defaults to a dated file under ~/.chaosc")
	flags.Bool("ipv4-only", false, "resolve and bind IPv4 only instead of dual-stack")
	flags.Int("max-packet-size", 16<<20, "maximum OSC datagram size in bytes")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
}

// Load builds a HubConfig from cmd's bound flags, environment variables
// prefixed CHAOSC_, and an optional config file at $CHAOSC_CONFIG or
// ~/.config/chaosc/chaosc.yaml.
func Load(cmd *cobra.Command) (HubConfig, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return HubConfig{}, fmt.Errorf("config: binding flags: %w", err)
	}

	if err := loadConfigFile(v); err != nil {
		return HubConfig{}, err
	}

	mode := resolve.DualStack
	if v.GetBool("ipv4-only") {
		mode = resolve.IPv4Only
	}

	return HubConfig{
		Secret:           v.GetString("secret"),
		BindHost:         v.GetString("bind-host"),
		BindPort:         v.GetInt("bind-port"),
		SubscriptionFile: v.GetString("subscription-file"),
		SavePath:         v.GetString("save-path"),
		Mode:             mode,
		MaxPacketSize:    v.GetInt("max-packet-size"),
		LogLevel:         v.GetString("log-level"),
	}, nil
}

// loadConfigFile reads an optional YAML config file into v. A missing file
// is not an error, matching the hub's general "absent optional input" policy.
func loadConfigFile(v *viper.Viper) error {
	path := os.Getenv(envPrefix + "_CONFIG")
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		path = filepath.Join(home, ".config", "chaosc", "chaosc.yaml")
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("config: reading %s: %w", path, err)
	}
	return nil
}
