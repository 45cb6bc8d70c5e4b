package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/MrSnakeDoc/tripsync/internal/bookings"
	"github.com/MrSnakeDoc/tripsync/internal/logger"
)

// Refresher is the part of the bookings cache the scheduler drives.
type Refresher interface {
	Refresh(ctx context.Context, force bool) bookings.RefreshResult
}

// BookingsRefresher refreshes bookings on a cron schedule and on demand.
// Scheduled runs respect the fetch window, manual ones force a fetch.
type BookingsRefresher struct {
	cache         Refresher
	logger        logger.Logger
	schedule      string
	cron          *cron.Cron
	stopCh        chan struct{}
	manualTrigger chan struct{}
}

// NewBookingsRefresher creates a refresher. schedule is a cron spec such
// as "@every 5m" or "*/10 * * * *".
func NewBookingsRefresher(
	cache Refresher,
	log logger.Logger,
	schedule string,
	manualTrigger chan struct{},
) *BookingsRefresher {
	return &BookingsRefresher{
		cache:         cache,
		logger:        log,
		schedule:      schedule,
		cron:          cron.New(),
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start refreshes once, then schedules the periodic refresh and listens
// for manual triggers until Stop or ctx is done.
func (br *BookingsRefresher) Start(ctx context.Context) error {
	if _, err := br.cron.AddFunc(br.schedule, func() { br.Refresh(ctx, false) }); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", br.schedule, err)
	}

	// Refresh immediately on start
	br.Refresh(ctx, false)

	br.cron.Start()
	go func() {
		for {
			select {
			case <-br.manualTrigger:
				br.logger.Info("manual bookings refresh triggered")
				br.Refresh(ctx, true)
			case <-br.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	br.logger.Info("bookings refresher started", logger.String("schedule", br.schedule))
	return nil
}

// Stop stops the schedule and waits for a running refresh to finish.
func (br *BookingsRefresher) Stop() {
	close(br.stopCh)
	<-br.cron.Stop().Done()
}

// Refresh runs one refresh and logs its outcome.
func (br *BookingsRefresher) Refresh(ctx context.Context, force bool) bookings.RefreshResult {
	res := br.cache.Refresh(ctx, force)

	fields := []logger.Field{
		logger.String("source", res.Source.String()),
		logger.Int("count", res.Count),
		logger.Bool("force", force),
	}
	if res.Err != nil {
		br.logger.Warn("bookings refresh degraded", append(fields, logger.Error(res.Err))...)
	} else {
		br.logger.Debug("bookings refresh done", fields...)
	}
	return res
}
