package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"auction-settlement/internal/domain"
	"auction-settlement/pkg/logger"
)

// SettlementScheduler runs settlement cycles on a fixed cadence. Cycles are
// skipped while a previous one is still running and while this instance is
// not the elected leader, so one store never has two concurrent settlers.
//
// An out-of-order bid is an integrity violation: the scheduler stops
// scheduling and reports it on Fatal instead of retrying, because retrying
// cannot make the condition go away.
type SettlementScheduler struct {
	cron       *cron.Cron
	engine     *SettlementEngine
	election   domain.LeaderElection
	instanceID string
	interval   time.Duration
	log        logger.Logger
	fatal      chan error
}

func NewSettlementScheduler(engine *SettlementEngine, election domain.LeaderElection,
	instanceID string, interval time.Duration, log logger.Logger) *SettlementScheduler {
	cl := &cronLogger{log: log}
	return &SettlementScheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cl)),
		),
		engine:     engine,
		election:   election,
		instanceID: instanceID,
		interval:   interval,
		log:        log,
		fatal:      make(chan error, 1),
	}
}

func (s *SettlementScheduler) Start(ctx context.Context) error {
	s.log.Info("Starting settlement scheduler", "interval", s.interval.String())

	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		s.runCycle(ctx)
	})
	if err != nil {
		return fmt.Errorf("schedule settlement cycle: %w", err)
	}

	s.cron.Start()
	return nil
}

func (s *SettlementScheduler) Stop() error {
	s.log.Info("Stopping settlement scheduler")
	s.cron.Stop()
	return nil
}

// Fatal delivers the error that permanently stopped the scheduler.
func (s *SettlementScheduler) Fatal() <-chan error {
	return s.fatal
}

func (s *SettlementScheduler) runCycle(ctx context.Context) {
	isLeader, err := s.election.IsLeader(ctx, s.instanceID)
	if err != nil {
		s.log.Error("Failed to check leadership", "error", err)
		return
	}
	if !isLeader {
		s.log.Debug("Skipping settlement cycle, not the leader", "instance_id", s.instanceID)
		return
	}

	if err := s.engine.RunCycle(ctx); err != nil {
		if errors.Is(err, domain.ErrOutOfOrderBid) {
			s.log.Error("Integrity violation, settlement stopped", "error", err)
			s.cron.Stop()
			select {
			case s.fatal <- err:
			default:
			}
			return
		}
		// Transient failure, the next tick retries.
		s.log.Error("Settlement cycle failed", "error", err)
	}
}

// cronLogger adapts logger.Logger to the cron library's logging interface.
type cronLogger struct {
	log logger.Logger
}

func (c *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug(msg, keysAndValues...)
}

func (c *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error(msg, append(keysAndValues, "error", err)...)
}
