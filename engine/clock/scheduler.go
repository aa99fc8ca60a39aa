package clock

import (
	"context"
	"sync"
	"time"
)

// Scheduler paces a clock's Run loop.
type Scheduler interface {
	// Wait blocks until the next frame is due.
	//
	// Parameters:
	//   - ctx: aborts the wait
	//
	// Returns:
	//   - bool: false when no further frame will be released
	Wait(ctx context.Context) bool

	// Stop releases the scheduler's resources. It is safe to call more than once.
	Stop()
}

type tickerScheduler struct {
	once   *sync.Once
	ticker *time.Ticker
}

var _ Scheduler = &tickerScheduler{}

// NewTickerScheduler releases frames at a fixed rate. The first frame is released
// immediately. A slow frame delays the next one, missed frames are not replayed.
//
// Parameters:
//   - fps: frames per second, values below 1 are treated as 60
//
// Returns:
//   - Scheduler: the ticker scheduler
func NewTickerScheduler(fps int) Scheduler {
	if fps < 1 {
		fps = 60
	}
	return &tickerScheduler{
		once:   &sync.Once{},
		ticker: time.NewTicker(time.Second / time.Duration(fps)),
	}
}

func (s *tickerScheduler) Wait(ctx context.Context) bool {
	first := false
	s.once.Do(func() { first = true })
	if first {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-s.ticker.C:
		return true
	}
}

func (s *tickerScheduler) Stop() {
	s.ticker.Stop()
}

type maxFrames struct {
	mu        *sync.Mutex
	remaining uint64
	inner     Scheduler
}

var _ Scheduler = &maxFrames{}

// MaxFrames wraps inner so that at most n frames are released.
//
// Parameters:
//   - n: the frame budget
//   - inner: the scheduler that paces the released frames
//
// Returns:
//   - Scheduler: the bounded scheduler
func MaxFrames(n uint64, inner Scheduler) Scheduler {
	return &maxFrames{
		mu:        &sync.Mutex{},
		remaining: n,
		inner:     inner,
	}
}

func (s *maxFrames) Wait(ctx context.Context) bool {
	s.mu.Lock()
	if s.remaining == 0 {
		s.mu.Unlock()
		return false
	}
	s.remaining--
	s.mu.Unlock()
	return s.inner.Wait(ctx)
}

func (s *maxFrames) Stop() {
	s.inner.Stop()
}

// Immediate releases frames as fast as the loop can step. Tests pair it with MaxFrames.
type Immediate struct{}

var _ Scheduler = Immediate{}

func (Immediate) Wait(ctx context.Context) bool {
	return ctx.Err() == nil
}

func (Immediate) Stop() {}
