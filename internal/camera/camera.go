// Package camera defines the frame model and the capture-device boundary.
//
// A Device is one physical (or simulated) camera: it reports a Profile of
// hardware bounds, delivers a continuous stream of frames, and accepts
// manual control requests. Backends that do not implement a given control
// return ErrUnsupported; callers are expected to skip the hardware call
// and keep their published state authoritative.
package camera

import (
	"context"
	"errors"
	"image"
	"time"
)

var (
	// ErrNotFound is returned by an Opener when no device of the requested
	// position exists at all.
	ErrNotFound = errors.New("camera: no device for position")

	// ErrClassUnavailable is returned by an Opener when the position exists
	// but the requested focal class does not. Callers fall back to the
	// default wide-angle device.
	ErrClassUnavailable = errors.New("camera: focal class unavailable")

	// ErrUnsupported is returned by control methods the backend cannot
	// perform. It is not a failure of the device.
	ErrUnsupported = errors.New("camera: control not supported")
)

// Position selects the front or back camera group.
type Position string

const (
	PositionBack  Position = "back"
	PositionFront Position = "front"
)

// FocalClass is a discrete lens selection, not a continuous zoom.
type FocalClass string

const (
	ClassUltraWide FocalClass = "0.5x"
	ClassWide      FocalClass = "1x"
	ClassTelephoto FocalClass = "5x"
)

// ParsePosition parses a user-supplied position string.
func ParsePosition(s string) (Position, bool) {
	switch Position(s) {
	case PositionBack, PositionFront:
		return Position(s), true
	}
	return "", false
}

// ParseFocalClass parses a user-supplied focal class string.
func ParseFocalClass(s string) (FocalClass, bool) {
	switch FocalClass(s) {
	case ClassUltraWide, ClassWide, ClassTelephoto:
		return FocalClass(s), true
	}
	return "", false
}

// Profile is a read-only snapshot of a device's capability bounds, taken
// when the device is opened. Invariant: min <= max on every bound. When a
// min equals its max the corresponding control is a passthrough.
type Profile struct {
	Name     string
	Position Position
	Class    FocalClass

	MinISO float64
	MaxISO float64

	MinShutter time.Duration
	MaxShutter time.Duration

	MinEV float64
	MaxEV float64

	// MaxWBGain bounds each white-balance gain channel; gains are clamped
	// to [1, MaxWBGain] before being applied.
	MaxWBGain float64

	// StillWidth/StillHeight is the maximum still-capture resolution.
	StillWidth  int
	StillHeight int
}

// Frame is one streamed video frame. Pix is tightly packed RGBA, shared by
// reference down the pipeline; it must not be modified after delivery.
type Frame struct {
	Pix       []uint8
	Width     int
	Height    int
	Seq       uint64
	Timestamp time.Time
}

// RGBA wraps the frame's pixels as an *image.RGBA without copying.
func (f *Frame) RGBA() *image.RGBA {
	return &image.RGBA{
		Pix:    f.Pix,
		Stride: f.Width * 4,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
}

// Gains is a white-balance gain triple in linear RGB.
type Gains struct {
	R float64
	G float64
	B float64
}

// Device is a single open capture device. Frames() delivers the live
// stream on a backend-owned goroutine; the channel is closed by Close.
// Control methods may block briefly on hardware and must only be called
// from the control queue.
type Device interface {
	Profile() Profile
	Frames() <-chan *Frame

	ApplyExposure(iso float64, shutter time.Duration) error
	ApplyFocus(position float64) error
	ApplyWhiteBalanceGains(g Gains) error
	ApplyExposureBias(ev float64) error
	ApplyAutoWhiteBalance() error
	ApplyAuto() error
	FocusExposeAt(x, y float64) error

	// Still grabs one full-resolution frame. Backends with deep sensors
	// may return an *image.RGBA64.
	Still(ctx context.Context) (image.Image, error)

	Close() error
}

// Opener resolves and opens the best matching device for a position and
// focal class.
type Opener interface {
	Open(pos Position, class FocalClass) (Device, error)

	// Name returns a human-readable backend name.
	Name() string
}
