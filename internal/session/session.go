// Package session owns the lifecycle of the whole pipeline and the one
// control queue every device mutation runs on.
//
// The queue is a single goroutine consuming submitted operations in
// FIFO order; serialization is the correctness mechanism that keeps a
// lens switch from interleaving with an exposure update on the old
// device. The streaming goroutine that feeds frames to the pipeline
// never blocks on the control queue.
package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"github.com/oselz/viewfinder/internal/camera"
	"github.com/oselz/viewfinder/internal/capture"
	"github.com/oselz/viewfinder/internal/control"
	"github.com/oselz/viewfinder/internal/logger"
	"github.com/oselz/viewfinder/internal/pipeline"
	"github.com/oselz/viewfinder/internal/state"
)

const (
	opQueueDepth   = 64
	captureTimeout = 10 * time.Second
)

// FrameSink receives every streamed frame for live-view purposes. Offer
// must never block.
type FrameSink interface {
	Offer(f *camera.Frame)
}

// Controller runs the control queue and owns session start/stop.
type Controller struct {
	log    *zerolog.Logger
	store  *state.Store
	facade *control.Facade
	pipe   *pipeline.Coordinator
	capt   *capture.Coordinator
	live   FrameSink

	defaultPos   camera.Position
	defaultClass camera.FocalClass

	ops  chan func()
	quit chan struct{}

	// Control-goroutine-owned; never touched elsewhere.
	running    bool
	streamStop chan struct{}
	streamDone chan struct{}
}

// Options wires the controller's collaborators.
type Options struct {
	Store        *state.Store
	Facade       *control.Facade
	Pipeline     *pipeline.Coordinator
	Capture      *capture.Coordinator
	Live         FrameSink // optional
	DefaultPos   camera.Position
	DefaultClass camera.FocalClass
}

// NewController creates the controller and launches the control queue.
func NewController(opts Options) *Controller {
	c := &Controller{
		log:          logger.WithComponent("session"),
		store:        opts.Store,
		facade:       opts.Facade,
		pipe:         opts.Pipeline,
		capt:         opts.Capture,
		live:         opts.Live,
		defaultPos:   opts.DefaultPos,
		defaultClass: opts.DefaultClass,
		ops:          make(chan func(), opQueueDepth),
		quit:         make(chan struct{}),
	}
	go c.controlLoop()
	return c
}

// Do submits an operation to the control queue. Operations execute in
// submission order. Must not be called from within an operation.
func (c *Controller) Do(fn func()) {
	select {
	case c.ops <- fn:
	case <-c.quit:
	}
}

// doWait submits an operation and blocks until it has executed.
func (c *Controller) doWait(fn func()) {
	done := make(chan struct{})
	c.Do(func() {
		defer close(done)
		fn()
	})
	select {
	case <-done:
	case <-c.quit:
	}
}

func (c *Controller) controlLoop() {
	for {
		select {
		case <-c.quit:
			return
		case fn := <-c.ops:
			fn()
		}
	}
}

// Start brings the session up: selects the default device, starts the
// analysis workers, and begins streaming. Idempotent; starting a
// running session is a no-op.
func (c *Controller) Start() {
	c.doWait(c.startLocked)
}

func (c *Controller) startLocked() {
	if c.running {
		c.log.Debug().Msg("Start ignored: session already running")
		return
	}

	if c.facade.Device() == nil {
		c.facade.SelectDevice(c.defaultPos, c.defaultClass)
	}
	if c.facade.Device() == nil {
		c.log.Error().Msg("Session not started: no capture device available")
		return
	}

	c.pipe.Start()
	c.startStream(c.facade.Device())
	c.running = true
	c.store.SetRunning(true)
	c.log.Info().Msg("Session started")
}

// Stop tears the session down. Idempotent; stopping a stopped session
// is a no-op.
func (c *Controller) Stop() {
	c.doWait(c.stopLocked)
}

func (c *Controller) stopLocked() {
	if !c.running {
		c.log.Debug().Msg("Stop ignored: session not running")
		return
	}

	c.stopStream()
	c.pipe.Stop()

	var err error
	err = multierr.Append(err, c.facade.Close())
	if err != nil {
		c.log.Warn().Err(err).Msg("Session teardown reported errors")
	}

	c.running = false
	c.store.SetRunning(false)
	c.log.Info().Msg("Session stopped")
}

// Shutdown stops the session and terminates the control queue.
func (c *Controller) Shutdown() {
	c.Stop()
	close(c.quit)
}

// startStream launches the streaming goroutine bound to dev. Control
// queue only.
func (c *Controller) startStream(dev camera.Device) {
	stop := make(chan struct{})
	done := make(chan struct{})
	c.streamStop = stop
	c.streamDone = done

	go func() {
		defer close(done)
		frames := dev.Frames()
		for {
			select {
			case <-stop:
				return
			case f, ok := <-frames:
				if !ok {
					return
				}
				c.pipe.OnFrame(f)
				if c.live != nil {
					c.live.Offer(f)
				}
			}
		}
	}()
}

// stopStream halts the streaming goroutine and waits for it. Control
// queue only.
func (c *Controller) stopStream() {
	if c.streamStop == nil {
		return
	}
	close(c.streamStop)
	<-c.streamDone
	c.streamStop = nil
	c.streamDone = nil
}

// SelectDevice swaps the active device, rebinding the stream when the
// session is running.
func (c *Controller) SelectDevice(pos camera.Position, class camera.FocalClass) {
	c.Do(func() { c.selectDeviceLocked(pos, class) })
}

// selectDeviceLocked swaps the device, rebinding the stream when the
// session is running. Runs on the control queue.
func (c *Controller) selectDeviceLocked(pos camera.Position, class camera.FocalClass) {
	if c.running {
		c.stopStream()
	}
	c.facade.SelectDevice(pos, class)
	if c.running {
		if dev := c.facade.Device(); dev != nil {
			c.startStream(dev)
		}
	}
}

// ToggleFrontBack switches between the front and back camera groups,
// keeping the current focal class request (the fallback policy applies
// if the other position lacks it). The target is computed on the control
// queue so back-to-back toggles each observe the previous one's result.
func (c *Controller) ToggleFrontBack() {
	c.Do(func() {
		snap := c.store.Snapshot()
		pos := camera.PositionFront
		if snap.Position == camera.PositionFront {
			pos = camera.PositionBack
		}
		class := snap.LensClass
		if class == "" {
			class = c.defaultClass
		}
		c.selectDeviceLocked(pos, class)
	})
}

// SetExposure forwards to the facade on the control queue.
func (c *Controller) SetExposure(iso, shutterSeconds float64) {
	c.Do(func() { c.facade.SetExposure(iso, shutterSeconds) })
}

// SetFocus forwards to the facade on the control queue.
func (c *Controller) SetFocus(position float64) {
	c.Do(func() { c.facade.SetFocus(position) })
}

// FocusExposeAt forwards to the facade on the control queue.
func (c *Controller) FocusExposeAt(x, y float64) {
	c.Do(func() { c.facade.FocusExposeAt(x, y) })
}

// SetWhiteBalance forwards to the facade on the control queue.
func (c *Controller) SetWhiteBalance(kelvin float64) {
	c.Do(func() { c.facade.SetWhiteBalance(kelvin) })
}

// ResetWhiteBalance forwards to the facade on the control queue.
func (c *Controller) ResetWhiteBalance() {
	c.Do(func() { c.facade.ResetWhiteBalance() })
}

// SetExposureBias forwards to the facade on the control queue.
func (c *Controller) SetExposureBias(ev float64) {
	c.Do(func() { c.facade.SetExposureBias(ev) })
}

// SetAutoMode forwards to the facade on the control queue.
func (c *Controller) SetAutoMode() {
	c.Do(func() { c.facade.SetAutoMode() })
}

// SetAnalysisEnablement gates the per-frame analyses. Routed through
// the control queue so enablement changes order with device swaps.
func (c *Controller) SetAnalysisEnablement(histogram, peaking bool) {
	c.Do(func() {
		c.pipe.SetEnablement(histogram, peaking)
		c.store.SetEnablement(histogram, peaking)
	})
}

// CapturePhoto issues a one-shot still capture. Fire and forget: a
// failure is logged, never surfaced, never retried.
func (c *Controller) CapturePhoto() {
	c.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), captureTimeout)
		defer cancel()
		id, err := c.capt.Capture(ctx, c.facade.Device())
		if err != nil {
			c.log.Error().Err(err).Msg("Still capture failed")
			return
		}
		c.log.Info().Str("asset", id).Msg("Photo saved to library")
	})
}

// PipelineStats exposes the frame pipeline's drop counters.
func (c *Controller) PipelineStats() pipeline.Stats {
	return c.pipe.Stats()
}
