package predictor

import (
	"context"
	"strconv"
	"time"

	"personalfinancedss/internal/config"
	"personalfinancedss/internal/module/predictor/clock"
	"personalfinancedss/internal/module/predictor/handler"
	"personalfinancedss/internal/module/predictor/priors"
	"personalfinancedss/internal/module/predictor/repository"
	"personalfinancedss/internal/module/predictor/service"

	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides the Consumption Cycle Predictor's dependencies,
// wired as a single per-module fx.Module (repository -> service ->
// handler, bound as interfaces via fx.Annotate/fx.As).
var Module = fx.Module("predictor",
	fx.Provide(
		priors.NewTable,
		clock.NewRealClock,

		fx.Annotate(
			repository.NewStateRepository,
			fx.As(new(repository.StateRepository)),
		),
		fx.Annotate(
			repository.NewEventLogRepository,
			fx.As(new(repository.EventLogRepository)),
		),
		fx.Annotate(
			repository.NewForecastRepository,
			fx.As(new(repository.ForecastRepository)),
		),
		fx.Annotate(
			repository.NewRedisIdempotencyStore,
			fx.As(new(repository.IdempotencyStore)),
		),

		newServiceConfig,
		fx.Annotate(
			newService,
			fx.As(new(service.Service)),
		),

		handler.NewHandler,
	),
	fx.Invoke(registerLifecycle),
)

func newServiceConfig(cfg *config.Config) service.Config {
	return service.Config{
		StaleWindow: time.Duration(cfg.Predictor.StaleWindowHours) * time.Hour,
		Deadline:    time.Duration(cfg.Predictor.EventDeadlineMS) * time.Millisecond,
		IdemTTL:     time.Duration(cfg.Predictor.IdempotencyTTLHours) * time.Hour,
	}
}

func newService(
	states repository.StateRepository,
	eventLog repository.EventLogRepository,
	forecasts repository.ForecastRepository,
	idempotent repository.IdempotencyStore,
	priorTable priors.Table,
	clk clock.Clock,
	logger *zap.Logger,
	cfg service.Config,
) service.Service {
	return service.New(states, eventLog, forecasts, idempotent, priorTable, clk, logger, cfg)
}

// reconcileScheduler wraps a cron job that triggers the Weekly
// Anniversary Reconciler at the configured UTC hour, grounded on the
// notification module's scheduler_service.go (cron.WithSeconds, Start/Stop
// lifecycle, logged entry count).
type reconcileScheduler struct {
	cron   *cron.Cron
	svc    service.Reconciler
	clk    clock.Clock
	logger *zap.Logger
}

func newReconcileScheduler(cfg *config.Config, svc service.Service, clk clock.Clock, logger *zap.Logger) *reconcileScheduler {
	return &reconcileScheduler{
		cron:   cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC)),
		svc:    svc,
		clk:    clk,
		logger: logger,
	}
}

func (r *reconcileScheduler) start(cfg *config.Config) {
	spec := "0 0 " + strconv.Itoa(cfg.Predictor.ReconcileHourUTC) + " * * *"
	if _, err := r.cron.AddFunc(spec, r.runSweep); err != nil {
		r.logger.Error("failed to schedule weekly reconciliation sweep", zap.Error(err), zap.String("spec", spec))
		return
	}
	r.cron.Start()
	r.logger.Info("weekly reconciliation scheduler started",
		zap.Int("reconcile_hour_utc", cfg.Predictor.ReconcileHourUTC),
		zap.Int("total_jobs", len(r.cron.Entries())),
	)
}

func (r *reconcileScheduler) stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}

func (r *reconcileScheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	report, err := r.svc.RunWeeklyTick(ctx, r.clk.Now())
	if err != nil {
		r.logger.Error("weekly reconciliation sweep failed", zap.Error(err))
		return
	}
	r.logger.Info("weekly reconciliation sweep ran",
		zap.Int("considered", report.Considered),
		zap.Int("ticked", report.Ticked),
		zap.Int("skipped", report.Skipped),
		zap.Int("errored", report.Errored),
	)
}

type lifecycleDeps struct {
	fx.In

	LC     fx.Lifecycle
	Cfg    *config.Config
	Svc    service.Service
	Clock  clock.Clock
	Logger *zap.Logger
}

// registerLifecycle wires the deferred-write retry queue and the weekly
// reconciliation cron job into fx's Start/Stop hooks.
func registerLifecycle(deps lifecycleDeps) {
	retryable, ok := deps.Svc.(interface {
		StartRetryLoop()
		StopRetryLoop()
	})

	scheduler := newReconcileScheduler(deps.Cfg, deps.Svc, deps.Clock, deps.Logger)

	deps.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if ok {
				retryable.StartRetryLoop()
			}
			scheduler.start(deps.Cfg)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if ok {
				retryable.StopRetryLoop()
			}
			scheduler.stop()
			return nil
		},
	})
}
