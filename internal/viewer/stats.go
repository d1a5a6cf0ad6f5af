package viewer

import "time"

// statsWindow is the number of frames averaged for FPS.
const statsWindow = 120

// Stats keeps a rolling window of frame times. Not safe for concurrent use;
// Context guards it.
type Stats struct {
	samples [statsWindow]time.Duration
	next    int
	filled  int
	frames  uint64
}

type StatsSnapshot struct {
	Frames       uint64        `json:"frames"`
	FPS          float64       `json:"fps"`
	FrameTime    time.Duration `json:"frameTime"`
	MaxFrameTime time.Duration `json:"maxFrameTime"`
}

func NewStats() *Stats {
	return &Stats{}
}

// Record adds one frame. Non-positive deltas count as frames but are not
// sampled.
func (s *Stats) Record(delta time.Duration) {
	s.frames++
	if delta <= 0 {
		return
	}
	s.samples[s.next] = delta
	s.next = (s.next + 1) % statsWindow
	if s.filled < statsWindow {
		s.filled++
	}
}

func (s *Stats) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{Frames: s.frames}
	if s.filled == 0 {
		return snap
	}
	var total time.Duration
	for i := 0; i < s.filled; i++ {
		d := s.samples[i]
		total += d
		if d > snap.MaxFrameTime {
			snap.MaxFrameTime = d
		}
	}
	snap.FrameTime = total / time.Duration(s.filled)
	snap.FPS = float64(s.filled) / total.Seconds()
	return snap
}
