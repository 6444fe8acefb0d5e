package bookings

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingService struct {
	Service
	sweeps atomic.Int32
	block  chan struct{}
}

func (c *countingService) ProcessExpiredBookings(ctx context.Context) (int, error) {
	c.sweeps.Add(1)
	if c.block != nil {
		<-c.block
	}
	return 0, nil
}

func TestSweeper_RunsOnStartAndTicks(t *testing.T) {
	svc := &countingService{}
	sweeper := NewSweeper(svc, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper.Start(ctx)
	defer sweeper.Stop()

	assert.Eventually(t, func() bool {
		return svc.sweeps.Load() >= 3
	}, time.Second, 5*time.Millisecond, "expected the startup sweep plus ticker sweeps")
}

func TestSweeper_StopHaltsTicks(t *testing.T) {
	svc := &countingService{}
	sweeper := NewSweeper(svc, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper.Start(ctx)

	assert.Eventually(t, func() bool {
		return svc.sweeps.Load() >= 1
	}, time.Second, 5*time.Millisecond)

	sweeper.Stop()
	after := svc.sweeps.Load()

	time.Sleep(100 * time.Millisecond)
	assert.LessOrEqual(t, svc.sweeps.Load(), after+1)
}

func TestSweeper_SkipsOverlappingSweep(t *testing.T) {
	svc := &countingService{block: make(chan struct{})}
	sweeper := NewSweeper(svc, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper.Start(ctx)
	defer sweeper.Stop()

	// Several intervals pass while the first sweep is stuck; none may overlap it.
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(1), svc.sweeps.Load())

	close(svc.block)
}

func TestSweeper_DefaultInterval(t *testing.T) {
	sweeper := NewSweeper(&countingService{}, 0)
	assert.Equal(t, time.Minute, sweeper.interval)
}
