// Package sim provides a simulated capture backend with full manual
// control support. It is the default backend on machines without camera
// hardware and the backend used by the package tests.
package sim

import (
	"context"
	"image"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/oselz/viewfinder/internal/camera"
	"github.com/oselz/viewfinder/internal/logger"
)

// Options configures the simulated backend.
type Options struct {
	Width  int
	Height int
	FPS    int

	// Clock drives the frame ticker; tests inject a mock.
	Clock clock.Clock
}

func (o *Options) defaults() {
	if o.Width <= 0 {
		o.Width = 640
	}
	if o.Height <= 0 {
		o.Height = 480
	}
	if o.FPS <= 0 {
		o.FPS = 60
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
}

// Opener opens simulated devices. The back position carries all three
// focal classes; the front carries only the wide class, which exercises
// the wide-angle fallback path.
type Opener struct {
	opts     Options
	profiles map[camera.Position]map[camera.FocalClass]camera.Profile
}

// NewOpener creates a simulated device opener.
func NewOpener(opts Options) *Opener {
	opts.defaults()
	return &Opener{
		opts: opts,
		profiles: map[camera.Position]map[camera.FocalClass]camera.Profile{
			camera.PositionBack: {
				camera.ClassUltraWide: backProfile("sim-back-ultrawide", camera.ClassUltraWide, 2700),
				camera.ClassWide:      backProfile("sim-back-wide", camera.ClassWide, 3200),
				camera.ClassTelephoto: backProfile("sim-back-tele", camera.ClassTelephoto, 1600),
			},
			camera.PositionFront: {
				camera.ClassWide: {
					Name:        "sim-front-wide",
					Position:    camera.PositionFront,
					Class:       camera.ClassWide,
					MinISO:      20,
					MaxISO:      2016,
					MinShutter:  time.Second / 8000,
					MaxShutter:  time.Second / 3,
					MinEV:       -6,
					MaxEV:       6,
					MaxWBGain:   4,
					StillWidth:  3088,
					StillHeight: 2316,
				},
			},
		},
	}
}

func backProfile(name string, class camera.FocalClass, maxISO float64) camera.Profile {
	return camera.Profile{
		Name:        name,
		Position:    camera.PositionBack,
		Class:       class,
		MinISO:      32,
		MaxISO:      maxISO,
		MinShutter:  time.Second / 16000,
		MaxShutter:  time.Second,
		MinEV:       -8,
		MaxEV:       8,
		MaxWBGain:   4,
		StillWidth:  4032,
		StillHeight: 3024,
	}
}

// SetProfile replaces the profile for a position/class pair. Intended for
// tests that need specific bounds.
func (o *Opener) SetProfile(p camera.Profile) {
	classes, ok := o.profiles[p.Position]
	if !ok {
		classes = map[camera.FocalClass]camera.Profile{}
		o.profiles[p.Position] = classes
	}
	classes[p.Class] = p
}

// Name implements camera.Opener.
func (o *Opener) Name() string { return "sim" }

// Open implements camera.Opener.
func (o *Opener) Open(pos camera.Position, class camera.FocalClass) (camera.Device, error) {
	classes, ok := o.profiles[pos]
	if !ok {
		return nil, camera.ErrNotFound
	}
	profile, ok := classes[class]
	if !ok {
		return nil, camera.ErrClassUnavailable
	}

	d := &Device{
		profile: profile,
		clk:     o.opts.Clock,
		width:   o.opts.Width,
		height:  o.opts.Height,
		fps:     o.opts.FPS,
		frames:  make(chan *camera.Frame, 1),
		done:    make(chan struct{}),
	}
	go d.run()
	return d, nil
}

// Device is one simulated camera. Applied control values are recorded so
// tests can assert what reached the "hardware".
type Device struct {
	profile camera.Profile
	clk     clock.Clock
	width   int
	height  int
	fps     int

	frames chan *camera.Frame
	done   chan struct{}

	mu      sync.Mutex
	closed  bool
	seq     uint64
	applied Applied
}

// Applied is the last set of control values the device accepted.
type Applied struct {
	ISO      float64
	Shutter  time.Duration
	Focus    float64
	Gains    camera.Gains
	EV       float64
	Auto     bool
	AutoWB   bool
	PointX   float64
	PointY   float64
	HasPoint bool
}

// Profile implements camera.Device.
func (d *Device) Profile() camera.Profile { return d.profile }

// Frames implements camera.Device.
func (d *Device) Frames() <-chan *camera.Frame { return d.frames }

func (d *Device) run() {
	ticker := d.clk.Ticker(time.Second / time.Duration(d.fps))
	defer ticker.Stop()
	for {
		select {
		case <-d.done:
			close(d.frames)
			return
		case now := <-ticker.C:
			f := d.synthesize(now)
			select {
			case d.frames <- f:
			default:
				// Consumer is behind; drop rather than queue.
			}
		}
	}
}

// synthesize renders a moving diagonal gradient so histogram and edge
// analysis both have signal to work with.
func (d *Device) synthesize(now time.Time) *camera.Frame {
	d.mu.Lock()
	d.seq++
	seq := d.seq
	d.mu.Unlock()

	pix := make([]uint8, d.width*d.height*4)
	phase := int(seq) % 256
	for y := 0; y < d.height; y++ {
		row := y * d.width * 4
		for x := 0; x < d.width; x++ {
			v := uint8((x + y + phase) & 0xff)
			i := row + x*4
			pix[i] = v
			pix[i+1] = v
			pix[i+2] = v
			pix[i+3] = 0xff
		}
	}
	return &camera.Frame{
		Pix:       pix,
		Width:     d.width,
		Height:    d.height,
		Seq:       seq,
		Timestamp: now,
	}
}

// ApplyExposure implements camera.Device.
func (d *Device) ApplyExposure(iso float64, shutter time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.applied.ISO = iso
	d.applied.Shutter = shutter
	d.applied.Auto = false
	return nil
}

// ApplyFocus implements camera.Device.
func (d *Device) ApplyFocus(position float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.applied.Focus = position
	return nil
}

// ApplyWhiteBalanceGains implements camera.Device.
func (d *Device) ApplyWhiteBalanceGains(g camera.Gains) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.applied.Gains = g
	return nil
}

// ApplyExposureBias implements camera.Device. Bias only has an effect
// under continuous auto exposure, so applying it switches the device
// into that mode, the same as real hardware.
func (d *Device) ApplyExposureBias(ev float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.applied.EV = ev
	d.applied.Auto = true
	return nil
}

// ApplyAutoWhiteBalance implements camera.Device.
func (d *Device) ApplyAutoWhiteBalance() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.applied.AutoWB = true
	return nil
}

// ApplyAuto implements camera.Device.
func (d *Device) ApplyAuto() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.applied.Auto = true
	return nil
}

// FocusExposeAt implements camera.Device.
func (d *Device) FocusExposeAt(x, y float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.applied.PointX = x
	d.applied.PointY = y
	d.applied.HasPoint = true
	return nil
}

// Still implements camera.Device. The simulated sensor is deep, so it
// returns a 16-bit image at the profile's still resolution.
func (d *Device) Still(ctx context.Context) (image.Image, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	w, h := d.profile.StillWidth, d.profile.StillHeight
	img := image.NewRGBA64(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		fy := float64(y) / float64(h)
		for x := 0; x < w; x++ {
			fx := float64(x) / float64(w)
			v := uint16(0.5 * (1 + math.Sin(8*math.Pi*(fx+fy))) * math.MaxUint16)
			i := img.PixOffset(x, y)
			img.Pix[i] = uint8(v >> 8)
			img.Pix[i+1] = uint8(v)
			img.Pix[i+2] = uint8(v >> 8)
			img.Pix[i+3] = uint8(v)
			img.Pix[i+4] = uint8(v >> 8)
			img.Pix[i+5] = uint8(v)
			img.Pix[i+6] = 0xff
			img.Pix[i+7] = 0xff
		}
	}
	return img, nil
}

// LastApplied returns the last control values the device accepted.
func (d *Device) LastApplied() Applied {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.applied
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
	logger.WithComponent("camera-sim").Debug().
		Str("device", d.profile.Name).
		Msg("Simulated device closed")
	return nil
}
