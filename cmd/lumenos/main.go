package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lumenlab/lumenos/internal/api"
	"github.com/lumenlab/lumenos/internal/aura"
	"github.com/lumenlab/lumenos/internal/config"
	"github.com/lumenlab/lumenos/internal/logger"
	"github.com/lumenlab/lumenos/internal/metrics"
	"github.com/lumenlab/lumenos/internal/models"
	"github.com/lumenlab/lumenos/internal/notify"
	"github.com/lumenlab/lumenos/internal/oracle"
	"github.com/lumenlab/lumenos/internal/reminder"
	"github.com/lumenlab/lumenos/internal/storage"
	"github.com/lumenlab/lumenos/internal/streak"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:          "lumenos",
	Short:        "Personal operating system core: entries, streaks, aura checks, and the decision oracle",
	SilenceUsage: true,
	PersistentPreRunE: func(*cobra.Command, []string) error {
		// .env keeps local secrets like the bot token out of config files.
		_ = godotenv.Load()
		return nil
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		return serve(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server and the reminder loop",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return serve(cmd.Context())
	},
}

var streakCmd = &cobra.Command{
	Use:   "streak [kind]",
	Short: "Print streaks from the configured store",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := ""
		if len(args) == 1 {
			kind = args[0]
		}
		return printStreaks(cmd.Context(), kind)
	},
}

var (
	auraTES    float64
	auraVTR    float64
	auraPAI    float64
	auraPreset string
)

var auraCmd = &cobra.Command{
	Use:   "aura <action>",
	Short: "Validate an action's metric estimates without starting the server",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return printAuraDecision(args[0])
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"path to config file (optional; defaults plus LUMENOS_* env vars apply without one)")

	auraCmd.Flags().Float64Var(&auraTES, "tes", 0, "trust-entropy score estimate (0..1)")
	auraCmd.Flags().Float64Var(&auraVTR, "vtr", 0, "value-transfer ratio estimate (0..10)")
	auraCmd.Flags().Float64Var(&auraPAI, "pai", 0, "purpose-alignment index estimate (0..1)")
	auraCmd.Flags().StringVar(&auraPreset, "preset", "", "threshold preset (defaults to the configured one)")

	rootCmd.AddCommand(serveCmd, streakCmd, auraCmd)
}

// loadConfig reads and validates configuration for every subcommand.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func serve(parent context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)

	preset := aura.Preset(cfg.Aura.DefaultPreset)
	thresholds, err := preset.Thresholds()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	loc, err := time.LoadLocation(cfg.Streak.Timezone)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, storage.Options{
		Driver:          cfg.Storage.Driver,
		Path:            cfg.Storage.Path,
		DSN:             cfg.Storage.DSN,
		MaxCheckHistory: cfg.Storage.MaxCheckHistory,
		MaxDrawHistory:  cfg.Storage.MaxDrawHistory,
	})
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	analyzer := streak.New(loc, nil)
	evaluator := aura.NewEvaluator(thresholds, nil)
	orc := oracle.New(nil, nil)
	m := metrics.New()

	handler := api.NewHandler(store, analyzer, evaluator, orc, m, api.Config{
		DefaultPreset:  preset,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimitRPS:   cfg.Server.RateLimitRPS,
		RateLimitBurst: cfg.Server.RateLimitBurst,
		RequestTimeout: cfg.Server.RequestTimeout,
	})

	switch {
	case cfg.Reminder.Enabled && cfg.Telegram.Enabled:
		client, err := notify.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID,
			cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelay)
		if err != nil {
			return fmt.Errorf("failed to create telegram client: %w", err)
		}
		go client.ListenForCommands(ctx)
		rem := reminder.New(store, analyzer, client, m, reminder.Config{
			CheckInterval: cfg.Reminder.CheckInterval,
			AtRiskHour:    cfg.Reminder.AtRiskHour,
			DigestHour:    cfg.Reminder.DigestHour,
		}, nil)
		go rem.Run(ctx)
	case cfg.Reminder.Enabled:
		logger.Info("Reminders configured but Telegram is disabled; not starting the loop")
	}

	server := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening on %s", server.Addr)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

func printStreaks(ctx context.Context, kindArg string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)

	loc, err := time.LoadLocation(cfg.Streak.Timezone)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	kinds := models.AllEntryKinds()
	if kindArg != "" {
		kind := models.EntryKind(kindArg)
		if !kind.Known() {
			return fmt.Errorf("unknown entry kind %q", kindArg)
		}
		kinds = []models.EntryKind{kind}
	}

	store, err := storage.Open(ctx, storage.Options{
		Driver:          cfg.Storage.Driver,
		Path:            cfg.Storage.Path,
		DSN:             cfg.Storage.DSN,
		MaxCheckHistory: cfg.Storage.MaxCheckHistory,
		MaxDrawHistory:  cfg.Storage.MaxDrawHistory,
	})
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	analyzer := streak.New(loc, nil)
	fmt.Printf("%-15s %8s %8s %13s %s\n", "KIND", "CURRENT", "LONGEST", "ACTIVE TODAY", "LAST ACTIVE")
	for _, kind := range kinds {
		times, err := store.EntryTimes(ctx, kind)
		if err != nil {
			return err
		}
		res, err := analyzer.Compute(times)
		if err != nil {
			return err
		}
		active := "no"
		if res.ActiveToday {
			active = "yes"
		}
		last := "-"
		if !res.LastActive.IsZero() {
			last = res.LastActive.In(loc).Format(time.RFC3339)
		}
		fmt.Printf("%-15s %8d %8d %13s %s\n", kind, res.Current, res.Longest, active, last)
	}
	return nil
}

func printAuraDecision(action string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)

	presetName := cfg.Aura.DefaultPreset
	if auraPreset != "" {
		presetName = auraPreset
	}
	thresholds, err := aura.Preset(presetName).Thresholds()
	if err != nil {
		return err
	}
	defaults, err := aura.Preset(cfg.Aura.DefaultPreset).Thresholds()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	evaluator := aura.NewEvaluator(defaults, nil)
	decision := evaluator.FilterDecision(action, models.Metrics{
		TES: auraTES,
		VTR: auraVTR,
		PAI: auraPAI,
	}, thresholds)

	out, err := json.MarshalIndent(decision, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
