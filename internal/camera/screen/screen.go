// Package screen implements a capture backend over an X11 root-window
// grab. It exists for development on machines without a camera: the live
// pipeline, analyses, and API all run against real pixel data.
//
// The backend has no manual controls. Its profile reports equal min and
// max on every bound, which makes each control a passthrough, and all
// Apply methods return camera.ErrUnsupported.
package screen

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/oselz/viewfinder/internal/camera"
	"github.com/oselz/viewfinder/internal/logger"
)

// Options configures the screen backend.
type Options struct {
	FPS int
}

// Opener opens the screen device. Only the back position with the wide
// class exists; any other class resolves through the fallback path.
type Opener struct {
	fps int
}

// NewOpener creates a screen-capture opener.
func NewOpener(opts Options) *Opener {
	fps := opts.FPS
	if fps <= 0 {
		fps = 15
	}
	return &Opener{fps: fps}
}

// Name implements camera.Opener.
func (o *Opener) Name() string { return "screen" }

// Open implements camera.Opener.
func (o *Opener) Open(pos camera.Position, class camera.FocalClass) (camera.Device, error) {
	if pos != camera.PositionBack {
		return nil, camera.ErrNotFound
	}
	if class != camera.ClassWide {
		return nil, camera.ErrClassUnavailable
	}

	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	setup := xproto.Setup(conn)
	scr := setup.DefaultScreen(conn)

	d := &Device{
		conn:   conn,
		root:   scr.Root,
		width:  int(scr.WidthInPixels),
		height: int(scr.HeightInPixels),
		fps:    o.fps,
		frames: make(chan *camera.Frame, 1),
		done:   make(chan struct{}),
	}
	go d.run()

	logger.WithComponent("camera-screen").Info().
		Int("width", d.width).
		Int("height", d.height).
		Int("fps", d.fps).
		Msg("Screen device opened")
	return d, nil
}

// Device streams root-window grabs as frames.
type Device struct {
	conn   *xgb.Conn
	root   xproto.Window
	width  int
	height int
	fps    int

	frames chan *camera.Frame
	done   chan struct{}

	mu     sync.Mutex
	closed bool
	seq    uint64
}

// Profile implements camera.Device. Every bound collapses to a single
// value, so downstream clamping passes requests through untouched.
func (d *Device) Profile() camera.Profile {
	return camera.Profile{
		Name:        "screen",
		Position:    camera.PositionBack,
		Class:       camera.ClassWide,
		MinISO:      100,
		MaxISO:      100,
		MinShutter:  time.Second / 60,
		MaxShutter:  time.Second / 60,
		MinEV:       0,
		MaxEV:       0,
		MaxWBGain:   1,
		StillWidth:  d.width,
		StillHeight: d.height,
	}
}

// Frames implements camera.Device.
func (d *Device) Frames() <-chan *camera.Frame { return d.frames }

func (d *Device) run() {
	ticker := time.NewTicker(time.Second / time.Duration(d.fps))
	defer ticker.Stop()
	log := logger.WithComponent("camera-screen")

	for {
		select {
		case <-d.done:
			close(d.frames)
			return
		case now := <-ticker.C:
			f, err := d.grab(now)
			if err != nil {
				log.Debug().Err(err).Msg("Root grab failed, skipping frame")
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

// grab pulls one root-window image and converts BGRA to RGBA.
func (d *Device) grab(now time.Time) (*camera.Frame, error) {
	reply, err := xproto.GetImage(
		d.conn,
		xproto.ImageFormatZPixmap,
		xproto.Drawable(d.root),
		0, 0,
		uint16(d.width), uint16(d.height),
		0xffffffff,
	).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get root image: %w", err)
	}

	data := reply.Data
	if len(data) < d.width*d.height*4 {
		return nil, fmt.Errorf("short image data: got %d bytes", len(data))
	}

	pix := make([]uint8, d.width*d.height*4)
	for i := 0; i < d.width*d.height*4; i += 4 {
		pix[i] = data[i+2]
		pix[i+1] = data[i+1]
		pix[i+2] = data[i]
		pix[i+3] = 0xff
	}

	d.mu.Lock()
	d.seq++
	seq := d.seq
	d.mu.Unlock()

	return &camera.Frame{
		Pix:       pix,
		Width:     d.width,
		Height:    d.height,
		Seq:       seq,
		Timestamp: now,
	}, nil
}

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

// Still implements camera.Device with a one-shot root grab.
func (d *Device) Still(ctx context.Context) (image.Image, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f, err := d.grab(time.Now())
	if err != nil {
		return nil, err
	}
	return f.RGBA(), nil
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
	d.conn.Close()
	return nil
}
