package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/focusd/internal/batch"
	"github.com/fyrsmithlabs/focusd/internal/batchfile"
)

func newRunCmd(flags *rootFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Apply a batch file",
		Long: `Validate, order and apply the batch in a JSON, YAML or TOML file.
Use "-" to read JSON from stdin.

The command exits non-zero when the batch is rejected or ends in failed
status.

Examples:
  focusd run weekly-review.yaml
  focusd run --json - < batch.json
  focusd run --bridge memory batch.toml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := batchfile.Load(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), flags, func(ctx context.Context, a *app) error {
				res, execErr := a.orch.Execute(ctx, req)
				if res == nil {
					return execErr
				}
				if asJSON {
					if err := writeJSON(cmd, res); err != nil {
						return err
					}
				} else {
					renderResult(cmd.OutOrStdout(), res)
				}
				if execErr != nil {
					return execErr
				}
				if res.IsError() {
					return fmt.Errorf("batch %s %s", res.BatchID, res.Status)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	return cmd
}

func newPlanCmd(flags *rootFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "plan <file>",
		Short: "Show the execution order of a batch file without applying it",
		Long: `Validate a batch file and print the order its operations would run in.
Nothing is sent to OmniFocus.

Examples:
  focusd plan weekly-review.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := batchfile.Load(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), flags, func(ctx context.Context, a *app) error {
				plan, err := a.orch.Plan(ctx, req)
				if err != nil {
					if be, ok := batch.AsError(err); ok {
						renderError(cmd.ErrOrStderr(), be)
					}
					return err
				}
				if asJSON {
					return writeJSON(cmd, plan)
				}
				renderPlan(cmd.OutOrStdout(), plan)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the plan as JSON")
	return cmd
}

func newStatusCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check whether the automation bridge can reach OmniFocus",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), flags, func(ctx context.Context, a *app) error {
				st, err := a.orch.Status(ctx)
				if err != nil {
					return err
				}
				renderStatus(cmd.OutOrStdout(), st)
				if !st.Available {
					return fmt.Errorf("bridge %s unavailable", st.Kind)
				}
				return nil
			})
		},
	}
}

// withApp wires the application for the duration of fn.
func withApp(ctx context.Context, flags *rootFlags, fn func(context.Context, *app) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, flags)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())
	return fn(ctx, a)
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
