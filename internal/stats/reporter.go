// Package stats periodically samples the gateway's liveness state into the
// Prometheus gauges and logs a one-line summary. It wraps gocron so the
// sampling interval is managed like any other scheduled job.
package stats

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/causerie-app/causerie/internal/gateway"
	"github.com/causerie-app/causerie/internal/metrics"
)

// Reporter refreshes gateway gauges on a fixed interval.
type Reporter struct {
	cron    gocron.Scheduler
	gw      *gateway.Gateway
	set     *metrics.Set
	logger  *zap.Logger
	every   time.Duration
}

// New creates a Reporter sampling every `every` interval. Call Start to
// begin sampling.
func New(gw *gateway.Gateway, set *metrics.Set, every time.Duration, logger *zap.Logger) (*Reporter, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("stats: creating scheduler: %w", err)
	}

	return &Reporter{
		cron:   s,
		gw:     gw,
		set:    set,
		logger: logger.Named("stats"),
		every:  every,
	}, nil
}

// Start schedules the sampling job and starts the underlying scheduler.
func (r *Reporter) Start() error {
	_, err := r.cron.NewJob(
		gocron.DurationJob(r.every),
		gocron.NewTask(r.sample),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("stats: scheduling sampler: %w", err)
	}

	r.cron.Start()
	r.logger.Info("stats reporter started", zap.Duration("interval", r.every))
	return nil
}

// Stop shuts the scheduler down, waiting for a running sample to complete.
func (r *Reporter) Stop() error {
	if err := r.cron.Shutdown(); err != nil {
		return fmt.Errorf("stats: shutdown: %w", err)
	}
	r.logger.Info("stats reporter stopped")
	return nil
}

// sample reads the gateway counts into the gauges and logs them.
func (r *Reporter) sample() {
	conns := r.gw.ConnectionCount()
	users := r.gw.PresenceCount()
	rooms := r.gw.RoomCount()

	r.set.ConnectionsActive.Set(float64(conns))
	r.set.OnlineUsers.Set(float64(users))
	r.set.RoomsActive.Set(float64(rooms))

	r.logger.Debug("gateway stats",
		zap.Int("connections", conns),
		zap.Int("online_users", users),
		zap.Int("rooms", rooms),
	)
}
