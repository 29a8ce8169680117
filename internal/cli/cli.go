package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/Additional-Code/tableside/internal/app"
	"github.com/Additional-Code/tableside/internal/entity"
	"github.com/Additional-Code/tableside/internal/migration"
	"github.com/Additional-Code/tableside/internal/repository/journal"
	"github.com/Additional-Code/tableside/internal/seeder"
)

const stopTimeout = 10 * time.Second

// NewRootCommand builds the root tableside CLI command.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "tableside",
		Short:         "Restaurant ordering service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newStartCmd())
	root.AddCommand(newWorkerCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newMenuCmd())
	root.AddCommand(newJournalCmd())

	return root
}

// Execute runs the tableside CLI until it finishes or the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return err
	}
	return nil
}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "start",
		Aliases: []string{"run"},
		Short:   "Run the HTTP API, live feed and event relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUntilDone(cmd.Context(), app.Module)
		},
	}
}

func newWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Manage background workers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Consume order events and journal them",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUntilDone(cmd.Context(), app.Worker)
		},
	})
	return cmd
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the order journal schema",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			var mig *migration.Migrator
			opts := fx.Options(app.Migrate, fx.Populate(&mig))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				if err := mig.Up(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	}

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Rollback migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			all, _ := cmd.Flags().GetBool("all")
			var mig *migration.Migrator
			opts := fx.Options(app.Migrate, fx.Populate(&mig))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				if err := mig.Down(ctx, steps, all); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations rolled back")
				return nil
			})
		},
	}
	downCmd.Flags().Int("steps", 1, "Number of migration steps to rollback")
	downCmd.Flags().Bool("all", false, "Rollback all applied migrations")

	cmd.AddCommand(upCmd, downCmd)
	return cmd
}

func newMenuCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Print the default menu seeded at startup",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printMenu(cmd.OutOrStdout(), seeder.DefaultMenu())
		},
	}
}

func newJournalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show journaled order events",
		RunE: func(cmd *cobra.Command, args []string) error {
			orderID, _ := cmd.Flags().GetString("order")
			limit, _ := cmd.Flags().GetInt("limit")

			var repo *journal.Repository
			opts := fx.Options(app.Journal, fx.Populate(&repo))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				var (
					events []entity.OrderEvent
					err    error
				)
				if orderID != "" {
					events, err = repo.ListByOrder(ctx, orderID)
				} else {
					events, err = repo.Recent(ctx, limit)
				}
				if err != nil {
					return err
				}
				return printEvents(cmd.OutOrStdout(), events)
			})
		},
	}
	cmd.Flags().String("order", "", "Only show events of this order id")
	cmd.Flags().Int("limit", 50, "Number of recent events to show")
	return cmd
}

func printMenu(w io.Writer, items []entity.MenuItem) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPRICE\tAVAILABLE")
	for _, item := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\n", item.ID, item.Name, item.Category, item.Price.StringFixed(2), item.Available)
	}
	return tw.Flush()
}

func printEvents(w io.Writer, events []entity.OrderEvent) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tAT\tEVENT\tORDER\tNUMBER\tSTATUS\tTOTAL")
	for _, ev := range events {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\t%s\n",
			ev.ID, ev.OccurredAt.Format(time.RFC3339), ev.Kind, ev.OrderID, ev.OrderNumber, ev.Status, ev.Total)
	}
	return tw.Flush()
}

func runUntilDone(ctx context.Context, opts fx.Option) error {
	application := fx.New(opts)
	if err := application.Start(ctx); err != nil {
		return err
	}

	exitCode := 0
	select {
	case <-ctx.Done():
	case sig := <-application.Wait():
		exitCode = sig.ExitCode
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := application.Stop(stopCtx); err != nil {
		return err
	}
	if exitCode != 0 {
		return fmt.Errorf("shut down with exit code %d", exitCode)
	}
	return nil
}

func runWithApp(ctx context.Context, opts fx.Option, fn func(context.Context) error) error {
	application := fx.New(opts, fx.NopLogger)
	if err := application.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		_ = application.Stop(stopCtx)
	}()
	return fn(ctx)
}
