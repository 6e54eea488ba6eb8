package main

import (
	"context"
	"fmt"

	"github.com/dalemusser/chimeo/internal/app/bootstrap"
	"github.com/dalemusser/chimeo/internal/app/system/limits"
	"github.com/spf13/cobra"
)

var sweepBatch int

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Expire lapsed trials that no timer caught",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if sweepBatch <= 0 {
			return fmt.Errorf("--batch must be positive")
		}
		return withApp(cmd, func(ctx context.Context, a *bootstrap.App) error {
			res, err := a.Services.Trials.Sweep(ctx, int64(sweepBatch))
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]int{
				"checked": res.Checked,
				"expired": res.Expired,
				"failed":  res.Failed,
			})
		})
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Provision trials for approved requests that have no account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *bootstrap.App) error {
			res, err := a.Services.Console.Reconcile(ctx)
			if err != nil {
				return err
			}
			if len(res.Failed) > 0 {
				_ = printJSON(cmd, res)
				return fmt.Errorf("%d approval(s) could not be repaired", len(res.Failed))
			}
			return printJSON(cmd, res)
		})
	},
}

var checkCmd = &cobra.Command{
	Use:   "check <email>",
	Short: "Expire one account's trial if it has lapsed and print its entitlements",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		email := args[0]
		return withApp(cmd, func(ctx context.Context, a *bootstrap.App) error {
			expired, err := a.Services.Trials.CheckExpiration(ctx, email)
			if err != nil {
				return err
			}
			acct, err := a.Services.Trials.Account(ctx, email)
			if err != nil {
				return err
			}
			ent, err := a.Services.Trials.Entitlements(ctx, email)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{
				"expiredNow":   expired,
				"account":      acct,
				"entitlements": ent,
			})
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print request and trial counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *bootstrap.App) error {
			stats, err := a.Services.Console.Stats(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd, stats)
		})
	},
}

func init() {
	sweepCmd.Flags().IntVar(&sweepBatch, "batch", limits.MaxSweepBatch, "maximum accounts to check")
}
