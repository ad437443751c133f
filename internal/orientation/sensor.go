// Package orientation produces a live (pitch, roll) pair at a fixed
// small interval. The pair feeds the level-indicator overlay in the
// presentation layer; this core only publishes the latest reading.
package orientation

import (
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/oselz/viewfinder/internal/logger"
)

// DefaultInterval matches a typical device-motion update rate.
const DefaultInterval = 100 * time.Millisecond

// Source yields one attitude reading per tick.
type Source func(elapsed time.Duration) (pitch, roll float64)

// SimulatedSource drifts slowly around level, enough for the UI to have
// something to render without real motion hardware.
func SimulatedSource(elapsed time.Duration) (pitch, roll float64) {
	t := elapsed.Seconds()
	return 2 * math.Sin(t/5), 3 * math.Sin(t/7)
}

// Publisher receives attitude updates. *state.Store satisfies it.
type Publisher interface {
	SetOrientation(pitch, roll float64)
}

// Sensor polls a Source on a clock ticker and publishes each reading.
type Sensor struct {
	pub      Publisher
	src      Source
	clk      clock.Clock
	interval time.Duration

	mu      sync.Mutex
	started bool
	done    chan struct{}
}

// NewSensor creates a sensor; a nil source selects SimulatedSource and
// a nil clk the real clock.
func NewSensor(pub Publisher, src Source, clk clock.Clock, interval time.Duration) *Sensor {
	if src == nil {
		src = SimulatedSource
	}
	if clk == nil {
		clk = clock.New()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sensor{pub: pub, src: src, clk: clk, interval: interval}
}

// Start begins polling. Idempotent.
func (s *Sensor) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.done = make(chan struct{})
	go s.run(s.done)
	logger.WithComponent("orientation").Debug().
		Dur("interval", s.interval).
		Msg("Orientation sensor started")
}

// Stop halts polling. Idempotent.
func (s *Sensor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.started = false
	close(s.done)
}

func (s *Sensor) run(done chan struct{}) {
	start := s.clk.Now()
	ticker := s.clk.Ticker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case now := <-ticker.C:
			pitch, roll := s.src(now.Sub(start))
			s.pub.SetOrientation(pitch, roll)
		}
	}
}
