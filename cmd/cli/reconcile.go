package cmd

import (
	"context"
	"log"
	"time"

	"personalfinancedss/internal/config"
	"personalfinancedss/internal/module/predictor/clock"
	"personalfinancedss/internal/module/predictor/priors"
	"personalfinancedss/internal/module/predictor/repository"
	"personalfinancedss/internal/module/predictor/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run one weekly anniversary reconciliation sweep",
	Long:  `Sweeps every Predictor State and applies a WEEKLY_TICK event to pairs due for their anniversary, then exits. Intended for an out-of-band cron invocation alongside (or instead of) the in-process scheduler.`,
	Run: func(cmd *cobra.Command, args []string) {
		runReconcile()
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile() {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	log.Println("🔁 Running weekly anniversary reconciliation sweep...")

	db, err := connectDB()
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}

	cfg := config.Load()
	redisClient := config.NewRedisClient(cfg, logger)

	states := repository.NewStateRepository(db)
	eventLog := repository.NewEventLogRepository(db)
	forecasts := repository.NewForecastRepository(db)
	idempotent := repository.NewRedisIdempotencyStore(redisClient)

	svc := service.New(
		states,
		eventLog,
		forecasts,
		idempotent,
		priors.NewTable(),
		clock.NewRealClock(),
		logger,
		service.Config{
			StaleWindow: time.Duration(cfg.Predictor.StaleWindowHours) * time.Hour,
			Deadline:    time.Duration(cfg.Predictor.EventDeadlineMS) * time.Millisecond,
			IdemTTL:     time.Duration(cfg.Predictor.IdempotencyTTLHours) * time.Hour,
		},
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	report, err := svc.RunWeeklyTick(ctx, time.Now().UTC())
	if err != nil {
		log.Fatalf("❌ Reconciliation sweep failed: %v", err)
	}

	log.Printf("✅ Reconciliation sweep complete: considered=%d ticked=%d skipped=%d errored=%d",
		report.Considered, report.Ticked, report.Skipped, report.Errored)
	for _, e := range report.Errors {
		log.Printf("   - %s", e)
	}
}
