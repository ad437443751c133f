// Package gst implements a capture backend over a GStreamer pipeline,
// reading real camera hardware through v4l2src (or videotestsrc when no
// device path is configured). Frames are converted to RGBA in the
// pipeline and pulled by polling the appsink, which avoids CGO callback
// instability.
//
// V4L2 exposes no portable manual-exposure surface through this
// pipeline, so the profile reports collapsed bounds and every control
// returns camera.ErrUnsupported; the facade keeps published state
// authoritative regardless.
package gst

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/oselz/viewfinder/internal/camera"
	"github.com/oselz/viewfinder/internal/logger"
)

// Options configures the GStreamer backend.
type Options struct {
	// DevicePath is the v4l2 device node, e.g. /dev/video0. Empty selects
	// videotestsrc.
	DevicePath string
	Width      int
	Height     int
	FPS        int
}

func (o *Options) defaults() {
	if o.Width <= 0 {
		o.Width = 1280
	}
	if o.Height <= 0 {
		o.Height = 720
	}
	if o.FPS <= 0 {
		o.FPS = 30
	}
}

// Opener opens GStreamer-backed devices.
type Opener struct {
	opts Options
}

// NewOpener creates a GStreamer device opener.
func NewOpener(opts Options) *Opener {
	opts.defaults()
	return &Opener{opts: opts}
}

// Name implements camera.Opener.
func (o *Opener) Name() string { return "gst" }

// Open implements camera.Opener. Only the back wide device exists; other
// classes resolve through the caller's fallback path.
func (o *Opener) Open(pos camera.Position, class camera.FocalClass) (camera.Device, error) {
	if pos != camera.PositionBack {
		return nil, camera.ErrNotFound
	}
	if class != camera.ClassWide {
		return nil, camera.ErrClassUnavailable
	}

	d := &Device{
		opts:   o.opts,
		frames: make(chan *camera.Frame, 1),
		done:   make(chan struct{}),
	}
	if err := d.start(); err != nil {
		return nil, err
	}
	return d, nil
}

// Device wraps one running GStreamer pipeline.
type Device struct {
	opts Options

	pipeline *gst.Pipeline
	appsink  *app.Sink

	frames chan *camera.Frame
	done   chan struct{}

	mu     sync.Mutex
	closed bool
	seq    uint64
}

func (d *Device) start() error {
	log := logger.WithComponent("camera-gst")

	gst.Init(nil)

	src := "videotestsrc is-live=true pattern=smpte"
	if d.opts.DevicePath != "" {
		src = fmt.Sprintf("v4l2src device=%s do-timestamp=true", d.opts.DevicePath)
	}

	// Polling mode (emit-signals=false, drop=true) keeps the appsink from
	// buffering a backlog: the device itself drops, matching the pipeline
	// coordinator's latest-frame-only policy.
	pipelineStr := fmt.Sprintf(
		"%s ! videoconvert ! videoscale ! videorate ! "+
			"video/x-raw,format=RGBA,width=%d,height=%d,framerate=%d/1 ! "+
			"appsink name=sink emit-signals=false max-buffers=2 drop=true",
		src, d.opts.Width, d.opts.Height, d.opts.FPS,
	)

	log.Debug().Str("pipeline", pipelineStr).Msg("Creating GStreamer pipeline")

	pipeline, err := gst.NewPipelineFromString(pipelineStr)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	d.pipeline = pipeline

	sinkElement, err := pipeline.GetElementByName("sink")
	if err != nil {
		return fmt.Errorf("failed to get appsink: %w", err)
	}
	d.appsink = app.SinkFromElement(sinkElement)

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		return fmt.Errorf("failed to start pipeline: %w", err)
	}

	go d.pollSamples()

	log.Info().
		Str("device", d.opts.DevicePath).
		Int("width", d.opts.Width).
		Int("height", d.opts.Height).
		Msg("GStreamer device opened")
	return nil
}

// pollSamples pulls samples off the appsink and forwards them as frames.
func (d *Device) pollSamples() {
	interval := time.Second / time.Duration(d.opts.FPS*2)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.done:
			close(d.frames)
			return
		case <-ticker.C:
			sample := d.appsink.TryPullSample(time.Millisecond)
			if sample == nil {
				continue
			}
			f := d.sampleToFrame(sample)
			if f == nil {
				continue
			}
			select {
			case d.frames <- f:
			default:
				// Consumer is behind; drop rather than queue.
			}
		}
	}
}

func (d *Device) sampleToFrame(sample *gst.Sample) *camera.Frame {
	buffer := sample.GetBuffer()
	if buffer == nil {
		return nil
	}

	mapInfo := buffer.Map(gst.MapRead)
	if mapInfo == nil {
		return nil
	}
	defer buffer.Unmap()

	data := mapInfo.Bytes()
	expected := d.opts.Width * d.opts.Height * 4
	if len(data) < expected {
		return nil
	}

	// Copy out: GStreamer reuses the buffer after Unmap.
	pix := make([]uint8, expected)
	copy(pix, data[:expected])

	d.mu.Lock()
	d.seq++
	seq := d.seq
	d.mu.Unlock()

	return &camera.Frame{
		Pix:       pix,
		Width:     d.opts.Width,
		Height:    d.opts.Height,
		Seq:       seq,
		Timestamp: time.Now(),
	}
}

// Profile implements camera.Device.
func (d *Device) Profile() camera.Profile {
	name := d.opts.DevicePath
	if name == "" {
		name = "videotestsrc"
	}
	return camera.Profile{
		Name:        name,
		Position:    camera.PositionBack,
		Class:       camera.ClassWide,
		MinISO:      100,
		MaxISO:      100,
		MinShutter:  time.Second / time.Duration(d.opts.FPS),
		MaxShutter:  time.Second / time.Duration(d.opts.FPS),
		MinEV:       0,
		MaxEV:       0,
		MaxWBGain:   1,
		StillWidth:  d.opts.Width,
		StillHeight: d.opts.Height,
	}
}

// Frames implements camera.Device.
func (d *Device) Frames() <-chan *camera.Frame { return d.frames }

// ApplyExposure implements camera.Device.
func (d *Device) ApplyExposure(float64, time.Duration) error { return camera.ErrUnsupported }

// ApplyFocus implements camera.Device.
func (d *Device) ApplyFocus(float64) error { return camera.ErrUnsupported }

// ApplyWhiteBalanceGains implements camera.Device.
func (d *Device) ApplyWhiteBalanceGains(camera.Gains) error { return camera.ErrUnsupported }

// ApplyExposureBias implements camera.Device.
func (d *Device) ApplyExposureBias(float64) error { return camera.ErrUnsupported }

// ApplyAutoWhiteBalance implements camera.Device.
func (d *Device) ApplyAutoWhiteBalance() error { return camera.ErrUnsupported }

// ApplyAuto implements camera.Device.
func (d *Device) ApplyAuto() error { return camera.ErrUnsupported }

// FocusExposeAt implements camera.Device.
func (d *Device) FocusExposeAt(float64, float64) error { return camera.ErrUnsupported }

// Still implements camera.Device by waiting for the next streamed frame.
func (d *Device) Still(ctx context.Context) (image.Image, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case f, ok := <-d.frames:
		if !ok {
			return nil, fmt.Errorf("device closed")
		}
		return f.RGBA(), nil
	}
}

// Close implements camera.Device.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	close(d.done)

	if d.pipeline != nil {
		d.pipeline.SetState(gst.StateNull)
		d.pipeline.Unref()
		d.pipeline = nil
	}
	logger.WithComponent("camera-gst").Info().Msg("GStreamer device closed")
	return nil
}
