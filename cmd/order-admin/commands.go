package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/vasiliy-maslov/order-maintenance/internal/db"
	"github.com/vasiliy-maslov/order-maintenance/internal/order"
	"github.com/vasiliy-maslov/order-maintenance/internal/reconcile"
	"github.com/vasiliy-maslov/order-maintenance/internal/report"
	"github.com/vasiliy-maslov/order-maintenance/internal/seed"
)

func init() {
	// fix-statuses
	var fixDryRun, fixStats bool
	fixCmd := &cobra.Command{
		Use:   "fix-statuses",
		Short: "Map legacy and unknown order statuses to canonical values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if fixStats {
				return runStats(cmd.Context())
			}
			return withRepository(cmd.Context(), func(repo *order.PostgresRepository, console *report.Console) error {
				_, err := newNormalizer(repo, console).Run(cmd.Context(), fixDryRun)
				return err
			})
		},
	}
	fixCmd.Flags().BoolVar(&fixDryRun, "dry-run", false, "Show what would change without writing")
	fixCmd.Flags().BoolVar(&fixStats, "stats", false, "Only show the stored status distribution")
	fixCmd.MarkFlagsMutuallyExclusive("dry-run", "stats")
	rootCmd.AddCommand(fixCmd)

	// populate-history
	rootCmd.AddCommand(&cobra.Command{
		Use:   "populate-history",
		Short: "Create a status history entry for every order that has none",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepository(cmd.Context(), func(repo *order.PostgresRepository, console *report.Console) error {
				_, err := newSynthesizer(repo, console).Run(cmd.Context())
				return err
			})
		},
	})

	// reconcile
	rootCmd.AddCommand(&cobra.Command{
		Use:   "reconcile",
		Short: "Run fix-statuses and then populate-history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepository(cmd.Context(), func(repo *order.PostgresRepository, console *report.Console) error {
				if _, err := newNormalizer(repo, console).Run(cmd.Context(), false); err != nil {
					return err
				}
				_, err := newSynthesizer(repo, console).Run(cmd.Context())
				return err
			})
		},
	})

	// stats
	rootCmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show order status distribution and history coverage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd.Context())
		},
	})

	// migrate
	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			applied, err := db.ApplyMigrations(cfg.Postgres)
			if err != nil {
				return err
			}
			if applied {
				fmt.Println("Migrations applied.")
			} else {
				fmt.Println("Database is up to date.")
			}
			return nil
		},
	})

	// seed
	opts := seed.DefaultOptions()
	var seedValue uint64
	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert synthetic orders into a scratch database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var rnd *rand.Rand
			if cmd.Flags().Changed("seed") {
				rnd = rand.New(rand.NewPCG(seedValue, seedValue))
			}
			return withRepository(cmd.Context(), func(repo *order.PostgresRepository, console *report.Console) error {
				result, err := seed.NewGenerator(repo, rnd).Run(cmd.Context(), opts)
				if err != nil {
					return err
				}
				console.Table([]string{"Orders", "Legacy", "Garbage", "With history"}, [][]string{{
					strconv.Itoa(result.Orders),
					strconv.Itoa(result.Legacy),
					strconv.Itoa(result.Garbage),
					strconv.Itoa(result.WithHistory),
				}})
				return nil
			})
		},
	}
	seedCmd.Flags().IntVar(&opts.Count, "count", opts.Count, "Number of orders to create")
	seedCmd.Flags().IntVar(&opts.Users, "users", opts.Users, "Number of distinct customers")
	seedCmd.Flags().Float64Var(&opts.LegacyShare, "legacy-share", opts.LegacyShare, "Share of orders stored with a legacy status alias")
	seedCmd.Flags().Float64Var(&opts.GarbageShare, "garbage-share", opts.GarbageShare, "Share of orders stored with an unrecognizable status")
	seedCmd.Flags().Float64Var(&opts.HistoryShare, "history-share", opts.HistoryShare, "Share of orders created with a full status history")
	seedCmd.Flags().Uint64Var(&seedValue, "seed", 0, "Random seed for reproducible data")
	rootCmd.AddCommand(seedCmd)
}

func newConsole() *report.Console {
	return report.NewConsole(log.Logger, os.Stdout, verbose)
}

func newNormalizer(repo reconcile.Store, console *report.Console) *reconcile.Normalizer {
	return reconcile.NewNormalizer(repo, console).WithBatchSize(cfg.Maintenance.BatchSize)
}

func newSynthesizer(repo reconcile.Store, console *report.Console) *reconcile.HistorySynthesizer {
	return reconcile.NewHistorySynthesizer(repo, console).
		WithBatchSize(cfg.Maintenance.BatchSize).
		WithComment(cfg.Maintenance.HistoryComment)
}

func withRepository(ctx context.Context, fn func(repo *order.PostgresRepository, console *report.Console) error) error {
	pg, err := db.New(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer pg.Close()

	return fn(order.NewRepository(pg.Pool), newConsole())
}

func runStats(ctx context.Context) error {
	conn, err := db.ConnectReadOnly(cfg.Postgres)
	if err != nil {
		return err
	}
	defer conn.Close()

	snap, err := report.NewStatsRepository(conn).Snapshot(ctx)
	if err != nil {
		return err
	}

	console := newConsole()
	rows := make([][]string, 0, len(snap.Statuses))
	for _, s := range snap.Statuses {
		rows = append(rows, []string{string(s.Status), strconv.Itoa(s.Total), s.Resolution.String(), string(s.Target)})
	}
	console.Table([]string{"Stored status", "Orders", "Kind", "Maps to"}, rows)
	fmt.Println()
	console.Table([]string{"Orders", "Non-canonical", "Unknown", "Without history", "History entries"}, [][]string{{
		strconv.Itoa(snap.Orders),
		strconv.Itoa(snap.NonCanonical),
		strconv.Itoa(snap.Unknown),
		strconv.Itoa(snap.WithoutHistory),
		strconv.Itoa(snap.HistoryEntries),
	}})
	return nil
}
