// Package pipeline dispatches streamed frames to the enabled analyses
// without ever blocking the producer.
//
// Backpressure is a single-slot mailbox per analysis kind: a new frame
// overwrites an unconsumed one and the overwrite is counted as a drop.
// At most one frame is in flight per kind; correctness wants the newest
// frame, never accumulated latency.
package pipeline

import (
	"image"
	"sync"
	"sync/atomic"

	"github.com/oselz/viewfinder/internal/analysis"
	"github.com/oselz/viewfinder/internal/camera"
	"github.com/oselz/viewfinder/internal/logger"
)

// Publisher receives analysis results. *state.Store satisfies it.
type Publisher interface {
	SetHistogram(h []float64)
	SetPeaking(img *image.RGBA)
}

// Stats is a snapshot of the coordinator's drop counters.
type Stats struct {
	FramesIn       uint64 `json:"frames_in"`
	HistogramDrops uint64 `json:"histogram_drops"`
	PeakingDrops   uint64 `json:"peaking_drops"`
}

// mailbox is a single-slot, overwrite-on-write frame buffer.
type mailbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	frame  *camera.Frame
	drops  uint64
	closed bool
}

func newMailbox() *mailbox {
	m := &mailbox{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// put overwrites the slot and wakes the worker. Never blocks.
func (m *mailbox) put(f *camera.Frame) {
	m.mu.Lock()
	if m.frame != nil {
		atomic.AddUint64(&m.drops, 1)
	}
	m.frame = f
	m.cond.Signal()
	m.mu.Unlock()
}

// take blocks until a frame is available or the mailbox is closed; a nil
// return means shutdown.
func (m *mailbox) take() *camera.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	for m.frame == nil && !m.closed {
		m.cond.Wait()
	}
	f := m.frame
	m.frame = nil
	return f
}

func (m *mailbox) close() {
	m.mu.Lock()
	m.closed = true
	m.frame = nil
	m.cond.Broadcast()
	m.mu.Unlock()
}

// Coordinator owns the per-frame dispatch and the two analysis workers.
type Coordinator struct {
	pub     Publisher
	peakCfg analysis.PeakingOptions

	histOn atomic.Bool
	peakOn atomic.Bool

	// peakEpoch invalidates in-flight peaking work: a worker only
	// publishes if the epoch it started under is still current, so a
	// disable can never be followed by a stale overlay. pubMu makes the
	// worker's check-and-publish and the disable's bump-and-clear
	// mutually exclusive; without it the worker could pass the check,
	// lose the CPU to the clear, and then publish the stale overlay.
	peakEpoch atomic.Uint64
	pubMu     sync.Mutex

	framesIn uint64

	histBox *mailbox
	peakBox *mailbox

	mu      sync.Mutex
	started bool
	wg      sync.WaitGroup
}

// NewCoordinator creates a coordinator publishing into pub.
func NewCoordinator(pub Publisher, peakCfg analysis.PeakingOptions) *Coordinator {
	return &Coordinator{
		pub:     pub,
		peakCfg: peakCfg,
		histBox: newMailbox(),
		peakBox: newMailbox(),
	}
}

// Start launches one worker goroutine per analysis kind. Idempotent.
func (c *Coordinator) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return
	}
	c.started = true

	c.wg.Add(2)
	go c.histogramWorker()
	go c.peakingWorker()
	logger.WithComponent("pipeline").Debug().Msg("Analysis workers started")
}

// Stop shuts the workers down and waits for them. Idempotent.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	c.started = false
	c.mu.Unlock()

	c.histBox.close()
	c.peakBox.close()
	c.wg.Wait()

	c.histBox = newMailbox()
	c.peakBox = newMailbox()
}

// OnFrame feeds one frame to the enabled analyses. Non-blocking; called
// from the streaming goroutine for every delivered frame. With neither
// analysis enabled it is a cheap no-op.
func (c *Coordinator) OnFrame(f *camera.Frame) {
	hist, peak := c.histOn.Load(), c.peakOn.Load()
	if !hist && !peak {
		return
	}
	atomic.AddUint64(&c.framesIn, 1)
	if hist {
		c.histBox.put(f)
	}
	if peak {
		c.peakBox.put(f)
	}
}

// SetEnablement gates the per-frame work. Turning peaking off publishes
// an explicit cleared overlay so the presentation layer never composites
// a stale frame.
func (c *Coordinator) SetEnablement(histogram, peaking bool) {
	c.histOn.Store(histogram)

	wasPeaking := c.peakOn.Swap(peaking)
	if wasPeaking && !peaking {
		c.pubMu.Lock()
		c.peakEpoch.Add(1)
		c.pub.SetPeaking(nil)
		c.pubMu.Unlock()
	}
}

// Enabled reports the current analysis enablement.
func (c *Coordinator) Enabled() (histogram, peaking bool) {
	return c.histOn.Load(), c.peakOn.Load()
}

// Stats returns the frame and drop counters.
func (c *Coordinator) Stats() Stats {
	return Stats{
		FramesIn:       atomic.LoadUint64(&c.framesIn),
		HistogramDrops: atomic.LoadUint64(&c.histBox.drops),
		PeakingDrops:   atomic.LoadUint64(&c.peakBox.drops),
	}
}

func (c *Coordinator) histogramWorker() {
	defer c.wg.Done()
	for {
		f := c.histBox.take()
		if f == nil {
			return
		}
		if !c.histOn.Load() {
			continue
		}
		c.pub.SetHistogram(analysis.Histogram(f))
	}
}

func (c *Coordinator) peakingWorker() {
	defer c.wg.Done()
	for {
		f := c.peakBox.take()
		if f == nil {
			return
		}
		epoch := c.peakEpoch.Load()
		if !c.peakOn.Load() {
			continue
		}
		overlay := analysis.Peak(f, c.peakCfg)
		// Publish only if no disable happened while we were computing.
		c.pubMu.Lock()
		if c.peakOn.Load() && c.peakEpoch.Load() == epoch {
			c.pub.SetPeaking(overlay)
		}
		c.pubMu.Unlock()
	}
}
