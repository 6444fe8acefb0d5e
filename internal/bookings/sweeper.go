package bookings

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"tripgo/pkg/logger"
)

// Sweeper periodically expires overdue payment holds
type Sweeper struct {
	service  Service
	interval time.Duration
	done     chan struct{}
	running  atomic.Bool
}

// NewSweeper creates a new expiration sweeper
func NewSweeper(service Service, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 1 * time.Minute
	}
	return &Sweeper{
		service:  service,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start starts the sweep loop. A sweep runs immediately on startup to catch
// holds that went overdue while the process was down.
func (s *Sweeper) Start(ctx context.Context) {
	log.Printf("Starting expiration sweeper with %v interval", s.interval)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.sweep(ctx)

		for {
			select {
			case <-ticker.C:
				s.sweep(ctx)
			case <-s.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the sweep loop
func (s *Sweeper) Stop() {
	log.Println("Stopping expiration sweeper...")
	close(s.done)
}

// sweep runs one expiration pass. A pass that outlives the ticker interval is
// not overlapped by the next tick.
func (s *Sweeper) sweep(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		log.Println("Skipping expiration sweep: previous sweep still running")
		return
	}
	defer s.running.Store(false)

	start := time.Now()
	processed, err := s.service.ProcessExpiredBookings(ctx)
	if err != nil {
		log.Printf("Error processing expired bookings: %v", err)
		return
	}

	if processed > 0 {
		logger.GetDefault().LogExpirationSweep(ctx, processed, time.Since(start))
	}
}

// Status returns the sweeper's configuration for the ops endpoint
func (s *Sweeper) Status() map[string]interface{} {
	return map[string]interface{}{
		"interval": s.interval.String(),
		"running":  s.running.Load(),
	}
}
