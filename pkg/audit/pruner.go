package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"umbra-hq/umbra/pkg/telemetry/metrics"
)

// PrunerConfig contains retention configuration for the pruner.
type PrunerConfig struct {
	// MaxAge is how long records are kept. 0 disables age-based pruning.
	MaxAge time.Duration

	// Schedule is a cron expression for pruning runs.
	// Example: "0 3 * * *" (daily at 03:00). Empty disables scheduling;
	// Prune can still be called directly.
	Schedule string
}

// DefaultPrunerConfig returns the default retention configuration.
func DefaultPrunerConfig() *PrunerConfig {
	return &PrunerConfig{
		MaxAge:   720 * time.Hour,
		Schedule: "0 3 * * *",
	}
}

// Pruner enforces the retention policy on audit records, either on demand
// or on a cron schedule.
type Pruner struct {
	storage   Storage
	config    *PrunerConfig
	collector *metrics.Collector
	cron      *cron.Cron
	logger    *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewPruner creates a retention pruner. The collector is optional.
func NewPruner(storage Storage, config *PrunerConfig, collector *metrics.Collector, logger *slog.Logger) *Pruner {
	if config == nil {
		config = DefaultPrunerConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{
		storage:   storage,
		config:    config,
		collector: collector,
		cron:      cron.New(),
		logger:    logger.With("component", "audit.retention"),
	}
}

// Prune deletes records older than the retention period and returns
// how many were deleted.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	if p.config.MaxAge <= 0 {
		p.logger.Debug("retention max age not set, skipping prune")
		return 0, nil
	}

	cutoff := time.Now().Add(-p.config.MaxAge)

	deleted, err := p.storage.Prune(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune audit records: %w", err)
	}

	if p.collector != nil && deleted > 0 {
		p.collector.RecordAuditPruned(deleted)
	}

	if deleted > 0 {
		p.logger.Info("audit records pruned",
			"deleted_count", deleted,
			"max_age", p.config.MaxAge,
		)
	} else {
		p.logger.Debug("no audit records pruned", "max_age", p.config.MaxAge)
	}

	return deleted, nil
}

// Start begins scheduled pruning. It validates the cron expression, runs
// Prune on each tick, and stops when ctx is canceled. An empty schedule
// is a no-op.
func (p *Pruner) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.config.Schedule == "" {
		p.logger.Info("prune schedule not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(p.config.Schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", p.config.Schedule, err)
	}

	_, err := p.cron.AddFunc(p.config.Schedule, func() {
		if _, err := p.Prune(ctx); err != nil {
			p.logger.Error("scheduled pruning failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule pruning: %w", err)
	}

	p.cron.Start()
	p.running = true

	p.logger.Info("audit retention scheduler started",
		"schedule", p.config.Schedule,
		"max_age", p.config.MaxAge,
	)

	go func() {
		<-ctx.Done()
		p.Stop()
	}()

	return nil
}

// Stop stops the scheduler and waits for a running prune to finish.
func (p *Pruner) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	<-p.cron.Stop().Done()
	p.running = false
	p.logger.Info("audit retention scheduler stopped")
}

// IsRunning reports whether the scheduler is active.
func (p *Pruner) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// NextPruning returns the next scheduled pruning time, or nil when the
// scheduler is idle.
func (p *Pruner) NextPruning() *time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()

	entries := p.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
