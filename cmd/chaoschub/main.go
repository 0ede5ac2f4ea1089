// Command chaoschub runs the OSC multi-unicast gateway: it binds a UDP
// socket, loads any configured subscription file, and serves forever,
// forwarding traffic to subscribers and answering the reserved control
// addresses. Grounded on chaosc.py's main()/Chaosc.__init__/serve_forever.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/oschub/chaosc/internal/config"
	"github.com/oschub/chaosc/internal/control"
	"github.com/oschub/chaosc/internal/hub"
	"github.com/oschub/chaosc/internal/persist"
	"github.com/oschub/chaosc/internal/registry"
	"github.com/oschub/chaosc/internal/resolve"
)

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chaoschub",
		Short: "chaoschub is a multi-unicast OSC gateway",
		RunE:  run,
	}
	config.RegisterFlags(cmd)
	return cmd
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cmd)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := log.New(os.Stderr)
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Warn("invalid log level, defaulting to info", "level", cfg.LogLevel)
		level = log.InfoLevel
	}
	logger.SetLevel(level)

	reg := registry.New()

	if cfg.SubscriptionFile != "" {
		loadSubscriptions(cfg, reg, logger)
	}

	dispatcher := &control.Dispatcher{
		Secret:   cfg.Secret,
		Registry: reg,
		Mode:     cfg.Mode,
		SavePath: cfg.SavePath,
		DefaultPath: func() (string, error) {
			return persist.DefaultPath(time.Now())
		},
		Logger: logger,
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	h, err := hub.New(ctx, hub.Config{
		BindHost:      cfg.BindHost,
		BindPort:      cfg.BindPort,
		Mode:          cfg.Mode,
		MaxPacketSize: cfg.MaxPacketSize,
	}, reg, dispatcher, logger)
	if err != nil {
		return fmt.Errorf("starting hub: %w", err)
	}
	defer h.Close()

	logger.Info("chaoschub listening", "addr", h.LocalAddr())
	if err := h.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("hub run loop: %w", err)
	}
	logger.Info("chaoschub shutting down")
	return nil
}

// loadSubscriptions loads the configured subscription file into reg at
// startup. A missing file loads nothing and is not logged; per-line parse
// errors are logged and skipped, never fatal, matching chaosc.py's
// __load_subscriptions.
func loadSubscriptions(cfg config.HubConfig, reg *registry.Registry, logger *log.Logger) {
	subs, err := persist.Load(cfg.SubscriptionFile, func(line string, err error) {
		logger.Error("skipping malformed subscription line", "line", line, "err", err)
	})
	if err != nil {
		logger.Error("failed to load subscription file", "path", cfg.SubscriptionFile, "err", err)
		return
	}

	for _, sub := range subs {
		key := subscriptionKey(cfg, sub)
		rec := registry.Record{Label: sub.Label, OriginalHost: sub.Host, OriginalPort: sub.Port}
		if err := reg.Subscribe(key, rec); err != nil {
			logger.Error("subscription from file failed", "host", sub.Host, "port", sub.Port, "label", sub.Label, "reason", err)
			continue
		}
		logger.Info("subscribed from file", "host", sub.Host, "port", sub.Port, "label", sub.Label)
	}
}

func subscriptionKey(cfg config.HubConfig, sub persist.Subscription) registry.Key {
	addr, err := resolve.Resolve(context.Background(), sub.Host, sub.Port, cfg.Mode)
	if err != nil {
		return registry.LiteralKey(sub.Host, sub.Port)
	}
	return registry.ResolvedKey(addr)
}
