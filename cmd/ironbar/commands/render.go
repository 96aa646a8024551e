package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/A-Cloud-Ninja/ironbar/pkg/dynamic"
	"github.com/A-Cloud-Ninja/ironbar/pkg/ironvar"
	"github.com/A-Cloud-Ninja/ironbar/pkg/script"
	"github.com/A-Cloud-Ninja/ironbar/pkg/telemetry"
)

func newRenderCommand() *cobra.Command {
	var (
		vars       []string
		env        []string
		noVars     bool
		shell      string
		maxRenders int
	)

	cmd := &cobra.Command{
		Use:   "render TEMPLATE",
		Short: "Print every render of a template",
		Long: `Subscribe to a template and print each render on its own line until
interrupted. Templates without dynamic segments print once and exit.`,
		Example: `  # Clock updated every second
  ironbar render '{{1000:date +%T}}'

  # Stop after three renders
  ironbar render --max-renders 3 '{{watch:seq 1 10}}'

  # Variables given on the command line
  ironbar render --var user=me 'hello #user'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			logger := telemetry.NewLoggerFrom(log.Logger)
			tel := telemetry.NewNop()
			tel.Logger = logger

			opts := dynamic.Options{
				Runner: script.NewRunner(
					script.WithShell(shell),
					script.WithEnv(env...),
					script.WithLogger(log.Logger),
				),
				Telemetry: tel,
			}

			if !noVars {
				store := ironvar.NewStore(ironvar.Options{Logger: log.Logger})
				for _, kv := range vars {
					name, value, ok := strings.Cut(kv, "=")
					if !ok {
						return fmt.Errorf("invalid --var %q, expected name=value", kv)
					}
					if err := store.Set(ctx, name, value); err != nil {
						return err
					}
				}
				opts.Variables = store
			} else if len(vars) > 0 {
				return fmt.Errorf("--var cannot be used with --no-vars")
			}

			engine, err := dynamic.NewEngine(opts)
			if err != nil {
				return err
			}
			defer engine.Close()

			tmpl, err := engine.Compile(args[0])
			if err != nil {
				return err
			}

			limit := maxRenders
			if tmpl.Dynamic() == 0 {
				limit = 1
			}

			out := cmd.OutOrStdout()
			count := 0
			h, err := engine.SubscribeTemplate(ctx, tmpl, func(render string) bool {
				fmt.Fprintln(out, render)
				count++
				return limit <= 0 || count < limit
			})
			if err != nil {
				return err
			}

			<-h.Done()
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&vars, "var", nil, "set a variable (name=value), repeatable")
	cmd.Flags().StringArrayVar(&env, "env", nil, "extra command environment (KEY=value), repeatable")
	cmd.Flags().BoolVar(&noVars, "no-vars", false, "treat #name as plain text")
	cmd.Flags().StringVar(&shell, "shell", script.DefaultShell, "shell used to run commands")
	cmd.Flags().IntVarP(&maxRenders, "max-renders", "n", 0, "exit after this many renders (0 = unlimited)")

	return cmd
}
