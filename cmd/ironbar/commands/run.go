package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/A-Cloud-Ninja/ironbar/pkg/config"
	"github.com/A-Cloud-Ninja/ironbar/pkg/dynamic"
	"github.com/A-Cloud-Ninja/ironbar/pkg/ironvar"
	"github.com/A-Cloud-Ninja/ironbar/pkg/script"
	"github.com/A-Cloud-Ninja/ironbar/pkg/telemetry"
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Render every label of a bar configuration",
		Long: `Load a bar configuration and subscribe to each of its labels. Every render
is printed as NAME<TAB>TEXT until interrupted.`,
		Example: `  ironbar run -c ~/.config/ironbar/bar.yaml`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			return runBar(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}

	return cmd
}

// runBar subscribes every label and blocks until ctx is done.
func runBar(ctx context.Context, cfg *config.Config, out io.Writer) error {
	tel, err := telemetry.NewTelemetry(cfg.Telemetry(version))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Flush(shutdownCtx); err != nil {
			tel.Logger.Warnf("failed to flush spans: %v", err)
		}
		if err := tel.Shutdown(shutdownCtx); err != nil {
			tel.Logger.WithError(err).Warn("telemetry shutdown failed")
		}
	}()

	if err := tel.StartMetricsServer(); err != nil {
		return err
	}

	logger := tel.Logger.NewComponentLogger("bar")

	opts := dynamic.Options{
		Runner: script.NewRunner(
			script.WithShell(cfg.Shell),
			script.WithEnv(cfg.Env...),
			script.WithLogger(tel.Logger.Zerolog()),
		),
		Telemetry: tel,
	}

	if cfg.Variables.Enabled {
		store, closeStore, err := openVariables(ctx, cfg.Variables, tel.Logger)
		if err != nil {
			return err
		}
		defer closeStore()
		opts.Variables = store
	}

	engine, err := dynamic.NewEngine(opts)
	if err != nil {
		return err
	}
	defer engine.Close()

	// callbacks share the engine's loop, so writes to out never interleave
	for _, label := range cfg.Labels {
		name := label.Name
		_, err := engine.Subscribe(ctx, label.Label, func(render string) bool {
			fmt.Fprintf(out, "%s\t%s\n", name, render)
			return true
		})
		if err != nil {
			return fmt.Errorf("label %s: %w", name, err)
		}
		logger.WithField("label", name).Debug("subscribed label")
	}

	logger.Infof("rendering %d labels", len(cfg.Labels))
	<-ctx.Done()
	return nil
}

// openVariables builds the variable store: saved state first, then initial
// values, then file sources.
func openVariables(ctx context.Context, cfg config.VariablesConfig, logger *telemetry.Logger) (*ironvar.Store, func(), error) {
	opts := ironvar.Options{
		Strict: cfg.Strict,
		Logger: logger.NewComponentLogger("ironvar").Zerolog(),
	}

	closeStore := func() {}
	if cfg.StatePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.StatePath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create state directory: %w", err)
		}
		db, err := ironvar.OpenSQLiteStore(ctx, cfg.StatePath)
		if err != nil {
			return nil, nil, err
		}
		opts.Persister = db
		closeStore = func() { _ = db.Close() }
	}

	store := ironvar.NewStore(opts)
	if err := store.Restore(ctx); err != nil {
		closeStore()
		return nil, nil, err
	}

	for name, value := range cfg.Initial {
		if err := store.Set(ctx, name, value); err != nil {
			closeStore()
			return nil, nil, err
		}
	}

	for _, f := range cfg.Files {
		if err := store.WatchFile(ctx, f.Name, f.Path); err != nil {
			closeStore()
			return nil, nil, err
		}
	}

	return store, closeStore, nil
}
