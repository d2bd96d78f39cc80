// internal/monitor/scheduler.go
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler drives the monitor service on a fixed interval. Cycles never
// overlap: when one runs past the interval, the next tick is skipped and
// logged instead of queued.
type Scheduler struct {
	cron     *cron.Cron
	service  *Service
	interval time.Duration
	logger   *zap.Logger
}

func NewScheduler(service *Service, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		service:  service,
		interval: interval,
		logger:   logger.Named("scheduler"),
	}
}

// Start registers the cycle job and begins ticking. The first cycle runs
// immediately rather than waiting a full interval; it shares the
// skip-if-still-running guard with the scheduled ticks, so even a first
// cycle that outlives the interval cannot overlap the next one.
func (s *Scheduler) Start(ctx context.Context) error {
	job := s.cycleJob(ctx)

	if _, err := s.cron.AddJob(fmt.Sprintf("@every %s", s.interval), job); err != nil {
		return fmt.Errorf("failed to schedule monitor cycle: %w", err)
	}

	go job.Run()

	s.cron.Start()
	s.logger.Info("Scheduler started", zap.Duration("interval", s.interval))
	return nil
}

// cycleJob wraps one cycle run in the no-overlap guard.
func (s *Scheduler) cycleJob(ctx context.Context) cron.Job {
	run := cron.FuncJob(func() {
		if err := s.service.RunCycle(ctx); err != nil {
			s.logger.Error("Monitor cycle failed", zap.Error(err))
		}
	})
	return cron.NewChain(cron.SkipIfStillRunning(cronLogger{s.logger})).Then(run)
}

// Stop halts ticking and waits for a running cycle to finish.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info("Scheduler stopped")
}

// cronLogger adapts zap to the cron logger interface so skipped ticks show
// up in the sentinel's own logs.
type cronLogger struct {
	zap *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.zap.Sugar().Infow(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.zap.Sugar().Errorw(msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
