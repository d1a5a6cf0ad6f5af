package viewer

import (
	"context"
	"time"
)

// FrameHandler is called once per frame with the time since the previous
// frame.
type FrameHandler interface {
	OnFrame(delta time.Duration)
}

type FrameHandlerFunc func(delta time.Duration)

func (f FrameHandlerFunc) OnFrame(delta time.Duration) { f(delta) }

// Scheduler drives a FrameHandler until ctx is done.
type Scheduler interface {
	Run(ctx context.Context, h FrameHandler) error
}

// TickerScheduler drives frames at a fixed interval.
type TickerScheduler struct {
	Interval time.Duration
}

// NewTickerScheduler returns a scheduler running at fps frames per second;
// fps <= 0 falls back to 60.
func NewTickerScheduler(fps int) *TickerScheduler {
	if fps <= 0 {
		fps = 60
	}
	return &TickerScheduler{Interval: time.Second / time.Duration(fps)}
}

// Run blocks until ctx is cancelled and returns nil. Frames are never
// delivered concurrently.
func (s *TickerScheduler) Run(ctx context.Context, h FrameHandler) error {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Second / 60
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			h.OnFrame(now.Sub(last))
			last = now
		}
	}
}
