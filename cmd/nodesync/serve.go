package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/vango-dev/nodesync/internal/config"
	"github.com/vango-dev/nodesync/internal/errors"
	"github.com/vango-dev/nodesync/pkg/filter"
	"github.com/vango-dev/nodesync/pkg/rpc"
	"github.com/vango-dev/nodesync/pkg/server"
	"github.com/vango-dev/nodesync/pkg/state"
)

// defaultFilter is used for the demo form when the config sets none.
const defaultFilter = `key in ["name", "email"]`

func serveCmd() *cobra.Command {
	var (
		configPath string
		address    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the server with a demo form UI",
		Long: `Start the HTTP and websocket server.

Every new UI gets a signup form whose properties the client may write as
allowed by the configured filter expression, a text input synchronized on
its change event, and a submit button.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if address != "" {
				cfg.Server.Address = address
			}
			srv, err := buildServer(cmd.Context(), cfg, newLogger(cfg, os.Stderr))
			if err != nil {
				return err
			}
			if err := srv.Run(); err != nil {
				return errors.New("N301").Wrap(err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to "+config.ConfigFileName)
	cmd.Flags().StringVarP(&address, "address", "a", "", "Listen address (overrides the config)")
	return cmd
}

func buildServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*server.Server, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	expr := cfg.Filter
	if expr == "" {
		expr = defaultFilter
	}
	f, err := filter.Compile(expr)
	if err != nil {
		return nil, errors.New("N302").Wrap(err)
	}

	store, err := openStore(ctx, cfg.Snapshot)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := rpc.NewMetrics(
		rpc.WithNamespace(cfg.Metrics.Namespace),
		rpc.WithRegistry(registry),
	)

	sc := server.DefaultConfig().
		WithAddress(cfg.Server.Address).
		WithIdleTimeout(cfg.Server.IdleTimeout).
		WithMaxUIs(cfg.Server.MaxUIs).
		WithFactory(demoFactory(f, logger)).
		WithDispatcher(rpc.NewDispatcher(rpc.WithLogger(logger), rpc.WithMetrics(metrics))).
		WithGatherer(registry).
		WithLogger(logger)
	if store != nil {
		sc.WithStore(store)
	}
	if cfg.Server.MaxMessageSize > 0 {
		sc.MaxMessageSize = cfg.Server.MaxMessageSize
	}

	logger.Info("configured",
		"address", sc.Address,
		"filter", f.String(),
		"snapshot_backend", cfg.Snapshot.Backend)
	return server.New(sc), nil
}

type signupForm struct{}

// demoFactory builds the demo tree:
//
//	root
//	└── form (signupForm)  name, email, submitted
//	    ├── input          value, synchronized on change
//	    └── button         click increments form.submitted
func demoFactory(f *filter.Filter, logger *slog.Logger) server.UIFactory {
	return func(tree *state.Tree) error {
		form := state.NewComponentElement("form", signupForm{})
		if err := state.AppendChild(tree.Root(), form); err != nil {
			return err
		}
		pm := form.PropertyMap()
		pm.SetUpdateFromClientFilter(f.UpdateFilter())
		for _, p := range []struct {
			key   string
			value any
		}{{"name", ""}, {"email", ""}, {"submitted", 0}} {
			if err := pm.SetProperty(p.key, p.value); err != nil {
				return err
			}
		}

		input := state.NewElement("input")
		if err := state.AppendChild(form, input); err != nil {
			return err
		}
		if err := input.PropertyMap().SetProperty("value", ""); err != nil {
			return err
		}
		state.AddPropertyChangeListener(input, "value", "change", func(e state.PropertyChangeEvent) {
			logger.Debug("input changed", "node", e.Node.ID(), "value", e.Value, "client", e.UserOriginated)
		})

		button := state.NewElement("button")
		if err := state.AppendChild(form, button); err != nil {
			return err
		}
		button.Listeners().AddEventListener("click", func(state.DomEvent) {
			_ = pm.SetProperty("submitted", count(pm.Property("submitted"))+1)
			logger.Info("form submitted", "name", pm.Property("name"), "email", pm.Property("email"))
		})
		return nil
	}
}

// count reads a counter that may have come back from a snapshot as float64.
func count(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}
