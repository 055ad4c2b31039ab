package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"example.com/ai-meal-planner/backend/internal/config"
	"example.com/ai-meal-planner/backend/internal/database"
	"example.com/ai-meal-planner/backend/internal/server"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "plannerctl",
	Short: "Maintenance tool for the meal planner backend",
	Long: `plannerctl runs maintenance jobs against the meal planner database:
recipe backfill, shopping list re-aggregation, schema migrations and refresh token cleanup.
Service settings come from the same environment as the server; command flags can also be
set with PLANNERCTL_* variables or a config file.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.plannerctl.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")
	_ = viper.BindPFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(backfillCmd, aggregateCmd, migrateCmd, cleanupTokensCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".plannerctl")
	}

	viper.SetEnvPrefix("PLANNERCTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// openDB загружает конфиг сервиса и открывает пул соединений.
func openDB(ctx context.Context, logger *slog.Logger) (config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}

	db, err := database.Open(ctx, cfg.Database, logger)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, db, nil
}

// openCore дополнительно поднимает AI-клиент и жизненный цикл планов.
func openCore(ctx context.Context, logger *slog.Logger) (*server.Core, func(), error) {
	cfg, db, err := openDB(ctx, logger)
	if err != nil {
		return nil, nil, err
	}

	core, err := server.NewCore(ctx, cfg, logger, db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	cleanup := func() {
		if err := core.Close(context.Background()); err != nil {
			logger.Warn("close core", slog.String("error", err.Error()))
		}
		db.Close()
	}
	return core, cleanup, nil
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
