package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"example.com/ai-meal-planner/backend/internal/database"
	"example.com/ai-meal-planner/backend/internal/repository"
	"example.com/ai-meal-planner/backend/migrations"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Fill missing recipes in plans tagged needs_detail",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		core, cleanup, err := openCore(cmd.Context(), logger)
		if err != nil {
			return err
		}
		defer cleanup()

		bar := progressbar.Default(-1, "backfilling recipes")
		core.Backfiller.OnItem = func() {
			_ = bar.Add(1)
		}

		report, err := core.Lifecycle.Backfill(cmd.Context(), viper.GetInt("limit"))
		_ = bar.Finish()
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "plans: %d, failed: %d, meals filled: %d\n", report.Plans, report.PlansFailed, report.Meals)
		return nil
	},
}

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Rebuild the shopping list of an active plan",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := uuid.Parse(viper.GetString("user-id"))
		if err != nil {
			return fmt.Errorf("invalid --user-id: %w", err)
		}
		planID, err := uuid.Parse(viper.GetString("plan-id"))
		if err != nil {
			return fmt.Errorf("invalid --plan-id: %w", err)
		}

		logger := newLogger()
		core, cleanup, err := openCore(cmd.Context(), logger)
		if err != nil {
			return err
		}
		defer cleanup()

		list, err := core.Lifecycle.RebuildShoppingList(cmd.Context(), userID, planID)
		if err != nil {
			return err
		}

		for i, item := range list.Items {
			mark := " "
			if item.Checked {
				mark = "x"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%3d [%s] %s %s (%s)\n", i, mark, item.Ingredient, item.Amount, item.Category)
		}
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		_, db, err := openDB(cmd.Context(), logger)
		if err != nil {
			return err
		}
		defer db.Close()

		applied, err := database.Migrate(cmd.Context(), db, migrations.FS, logger)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "applied %d migrations\n", applied)
		return nil
	},
}

var cleanupTokensCmd = &cobra.Command{
	Use:   "cleanup-tokens",
	Short: "Delete refresh tokens that expired before the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		retention := viper.GetDuration("retention")
		if retention < 0 {
			return fmt.Errorf("retention must not be negative")
		}

		logger := newLogger()
		_, db, err := openDB(cmd.Context(), logger)
		if err != nil {
			return err
		}
		defer db.Close()

		deleted, err := repository.NewRefreshTokenRepository(db).DeleteExpired(cmd.Context(), time.Now().Add(-retention))
		if err != nil {
			return err
		}

		logger.Info("refresh tokens removed", slog.Int64("deleted", deleted))
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d refresh tokens\n", deleted)
		return nil
	},
}

func init() {
	backfillCmd.Flags().Int("limit", 20, "Maximum number of plans to process")
	aggregateCmd.Flags().String("user-id", "", "Owner of the plan")
	aggregateCmd.Flags().String("plan-id", "", "Active plan to re-aggregate")
	cleanupTokensCmd.Flags().Duration("retention", 7*24*time.Hour, "Keep tokens that expired within this window")

	for _, cmd := range []*cobra.Command{backfillCmd, aggregateCmd, cleanupTokensCmd} {
		_ = viper.BindPFlags(cmd.Flags())
	}
}
