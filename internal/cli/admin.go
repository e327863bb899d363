package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"finassist/internal/backend"
	"finassist/internal/core"
	"finassist/internal/services"
)

// StoreOpener opens the data backend for one admin command.
type StoreOpener func(ctx context.Context) (*backend.BackendResult, error)

// NewAdminCommand creates the finassist-admin root command with all
// subcommands registered.
func NewAdminCommand(open StoreOpener, now func() time.Time) *cobra.Command {
	if now == nil {
		now = time.Now
	}
	rootCmd := &cobra.Command{
		Use:   "finassist-admin",
		Short: "Maintenance tasks for the FinAssist data store",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newMigrateCommand(open),
		newReconcileCommand(open, now),
		newResetBudgetsCommand(open, now),
	)
	return rootCmd
}

func withStore(ctx context.Context, open StoreOpener, fn func(res *backend.BackendResult) error) (err error) {
	res, err := open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if res.Cleanup != nil {
			err = errors.Join(err, res.Cleanup())
		}
	}()
	return fn(res)
}

func newMigrateCommand(open StoreOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations and indexes to the configured backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Opening a backend applies its migrations.
			return withStore(cmd.Context(), open, func(res *backend.BackendResult) error {
				if err := res.Store.Ping(cmd.Context()); err != nil {
					return fmt.Errorf("ping store: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date")
				return nil
			})
		},
	}
}

func newReconcileCommand(open StoreOpener, now func() time.Time) *cobra.Command {
	var (
		owner    string
		category string
		year     int
		month    int
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Recompute budget spend from the stored expenses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if year == 0 {
				year = now().UTC().Year()
			}
			if month == 0 {
				month = int(now().UTC().Month())
			}
			return withStore(cmd.Context(), open, func(res *backend.BackendResult) error {
				rec := services.NewReconciler(res.Store, res.Store)
				out := cmd.OutOrStdout()

				if category == "" {
					n, err := rec.ReconcileMonth(cmd.Context(), owner, year, month)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Reconciled %d budgets for %s %d/%d\n", n, owner, month, year)
					return nil
				}

				c, err := core.ParseCategory(category)
				if err != nil {
					return fmt.Errorf("category %q: %w", category, err)
				}
				b := core.Bucket{Owner: owner, Category: c, Month: month, Year: year}
				found, err := rec.Sync(cmd.Context(), b)
				if err != nil {
					return err
				}
				if !found {
					fmt.Fprintf(out, "No budget for %s\n", b)
					return nil
				}
				fmt.Fprintf(out, "Reconciled %s\n", b)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "budget owner (required)")
	_ = cmd.MarkFlagRequired("owner")
	cmd.Flags().StringVar(&category, "category", "", "reconcile a single category")
	cmd.Flags().IntVar(&year, "year", 0, "year (default current)")
	cmd.Flags().IntVar(&month, "month", 0, "month 1-12 (default current)")
	return cmd
}

func newResetBudgetsCommand(open StoreOpener, now func() time.Time) *cobra.Command {
	var (
		owner               string
		fromYear, fromMonth int
		toYear, toMonth     int
	)

	cmd := &cobra.Command{
		Use:   "reset-budgets",
		Short: "Copy one month's active budgets into another month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cur := now().UTC()
			if toYear == 0 {
				toYear = cur.Year()
			}
			if toMonth == 0 {
				toMonth = int(cur.Month())
			}
			if fromYear == 0 && fromMonth == 0 {
				fromYear, fromMonth = core.PreviousMonth(toYear, toMonth)
			}
			return withStore(cmd.Context(), open, func(res *backend.BackendResult) error {
				svc := services.NewBudgetService(res.Store, services.NewReconciler(res.Store, res.Store))
				created, err := svc.ResetBudgets(cmd.Context(), owner, fromYear, fromMonth, toYear, toMonth)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %d budgets for %d/%d\n", len(created), toMonth, toYear)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "budget owner (required)")
	_ = cmd.MarkFlagRequired("owner")
	cmd.Flags().IntVar(&fromYear, "from-year", 0, "source year (default previous month)")
	cmd.Flags().IntVar(&fromMonth, "from-month", 0, "source month (default previous month)")
	cmd.Flags().IntVar(&toYear, "to-year", 0, "target year (default current)")
	cmd.Flags().IntVar(&toMonth, "to-month", 0, "target month (default current)")
	return cmd
}
