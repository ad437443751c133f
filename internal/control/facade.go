// Package control owns the single active capture device and keeps the
// published manual settings consistent with its profile.
//
// Every method must run on the session's control queue; the facade does
// no locking of its own. Hardware failures are logged and swallowed:
// the published state is the UI's source of truth even when a backend
// cannot honor a request.
package control

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/oselz/viewfinder/internal/camera"
	"github.com/oselz/viewfinder/internal/logger"
	"github.com/oselz/viewfinder/internal/state"
)

// White-balance requests are clamped to this Kelvin range before the
// gain conversion.
const (
	MinKelvin = 3000
	MaxKelvin = 8000
)

// Startup defaults, each re-clamped into the first device's bounds.
const (
	defaultISO          = 100
	defaultShutterSecs  = 1.0 / 60
	defaultKelvin       = 5600
	defaultFocusHalfway = 0.5
)

// Facade serializes device configuration and exposes clamped setters.
// The device handle is an explicit two-state machine: nil means
// NoDevice and every control operation is a logged no-op.
type Facade struct {
	log       *zerolog.Logger
	store     *state.Store
	opener    camera.Opener
	dev       camera.Device
	profile   camera.Profile
	hadDevice bool
}

// NewFacade creates a facade resolving devices through opener and
// publishing into store.
func NewFacade(opener camera.Opener, store *state.Store) *Facade {
	return &Facade{
		log:    logger.WithComponent("control"),
		store:  store,
		opener: opener,
	}
}

// Device returns the active device, or nil in the NoDevice state.
func (f *Facade) Device() camera.Device { return f.dev }

// Profile returns the active device's capability snapshot.
func (f *Facade) Profile() camera.Profile { return f.profile }

// SelectDevice swaps the active device to the best match for the
// requested position and focal class. An unavailable class falls back
// to the wide-angle device for that position; that is policy, not
// failure. When no device of the position exists at all, or the open
// fails, the prior device stays installed and the call is a logged
// no-op.
//
// Manual settings survive the swap: the pre-swap ISO, shutter, white
// balance, and exposure bias are snapshotted and reapplied through the
// clamped setters against the new profile. Focus position is not
// carried over; it is lens-specific.
func (f *Facade) SelectDevice(pos camera.Position, class camera.FocalClass) {
	prev := f.store.Snapshot()

	dev, err := f.opener.Open(pos, class)
	if errors.Is(err, camera.ErrClassUnavailable) {
		f.log.Warn().
			Str("position", string(pos)).
			Str("class", string(class)).
			Msg("Focal class unavailable, falling back to wide-angle")
		dev, err = f.opener.Open(pos, camera.ClassWide)
	}
	if err != nil {
		f.log.Error().Err(err).
			Str("position", string(pos)).
			Str("class", string(class)).
			Msg("Device selection failed, keeping current device")
		return
	}

	// The new device is installed before the old one is released so a
	// failed open never leaves the session without input.
	if f.dev != nil {
		if cerr := f.dev.Close(); cerr != nil {
			f.log.Warn().Err(cerr).Msg("Failed to close previous device")
		}
	}

	f.dev = dev
	f.profile = dev.Profile()
	f.store.SetDevice(f.profile)

	f.log.Info().
		Str("device", f.profile.Name).
		Str("position", string(f.profile.Position)).
		Str("class", string(f.profile.Class)).
		Msg("Device selected")

	if !f.hadDevice {
		f.hadDevice = true
		f.SetExposure(defaultISO, defaultShutterSecs)
		f.SetWhiteBalance(defaultKelvin)
		f.SetExposureBias(0)
		f.SetFocus(defaultFocusHalfway)
		return
	}

	// Reapply the snapshotted settings; the setters re-clamp each value
	// into the new profile's bounds.
	f.SetExposure(prev.ISO, prev.ShutterSeconds)
	f.SetWhiteBalance(prev.WhiteBalanceK)
	f.SetExposureBias(prev.ExposureBias)
}

// SetExposure applies a clamped ISO and shutter duration as one custom
// exposure request, then publishes the applied values. Collapsed bounds
// (min == max) pass the request through unclamped.
func (f *Facade) SetExposure(iso, shutterSeconds float64) {
	if f.dev == nil {
		f.log.Debug().Msg("SetExposure ignored: no device")
		return
	}
	p := f.profile

	if p.MinISO < p.MaxISO {
		iso = clamp(iso, p.MinISO, p.MaxISO)
	}
	shutter := time.Duration(shutterSeconds * float64(time.Second))
	if p.MinShutter < p.MaxShutter {
		shutter = clampDuration(shutter, p.MinShutter, p.MaxShutter)
	}

	f.apply("exposure", f.dev.ApplyExposure(iso, shutter))
	f.store.SetExposure(iso, shutter.Seconds())
}

// SetFocus applies a locked focus position where supported and always
// publishes the requested value, keeping the UI in sync with intent
// even on backends without focus hardware.
func (f *Facade) SetFocus(position float64) {
	if f.dev == nil {
		f.log.Debug().Msg("SetFocus ignored: no device")
		return
	}
	f.apply("focus", f.dev.ApplyFocus(position))
	f.store.SetFocus(position)
}

// FocusExposeAt points focus and exposure of interest at the same
// normalized location and switches both to single-shot auto. Purely a
// hardware side effect; nothing is published.
func (f *Facade) FocusExposeAt(x, y float64) {
	if f.dev == nil {
		f.log.Debug().Msg("FocusExposeAt ignored: no device")
		return
	}
	f.apply("focus-expose-at", f.dev.FocusExposeAt(x, y))
}

// SetWhiteBalance clamps the temperature to [3000, 8000] K, converts it
// to per-channel gains clamped against the device's gain ceiling, and
// publishes the clamped temperature (never the gains).
func (f *Facade) SetWhiteBalance(kelvin float64) {
	if f.dev == nil {
		f.log.Debug().Msg("SetWhiteBalance ignored: no device")
		return
	}
	kelvin = clamp(kelvin, MinKelvin, MaxKelvin)

	gains := kelvinToGains(kelvin)
	maxGain := f.profile.MaxWBGain
	if maxGain < 1 {
		maxGain = 1
	}
	gains.R = clamp(gains.R, 1, maxGain)
	gains.G = clamp(gains.G, 1, maxGain)
	gains.B = clamp(gains.B, 1, maxGain)

	f.apply("white-balance", f.dev.ApplyWhiteBalanceGains(gains))
	f.store.SetWhiteBalance(kelvin)
}

// ResetWhiteBalance switches to continuous auto white balance where
// supported. The published temperature is left untouched; auto mode
// owns it from here.
func (f *Facade) ResetWhiteBalance() {
	if f.dev == nil {
		f.log.Debug().Msg("ResetWhiteBalance ignored: no device")
		return
	}
	f.apply("auto-white-balance", f.dev.ApplyAutoWhiteBalance())
}

// SetExposureBias clamps the EV offset into the profile bounds, applies
// it, and publishes the clamped value.
func (f *Facade) SetExposureBias(ev float64) {
	if f.dev == nil {
		f.log.Debug().Msg("SetExposureBias ignored: no device")
		return
	}
	p := f.profile
	if p.MinEV < p.MaxEV {
		ev = clamp(ev, p.MinEV, p.MaxEV)
	}
	f.apply("exposure-bias", f.dev.ApplyExposureBias(ev))
	f.store.SetExposureBias(ev)
}

// SetAutoMode returns focus, exposure, and white balance to their
// continuous-auto variants where supported, and resets exposure bias to
// zero.
func (f *Facade) SetAutoMode() {
	if f.dev == nil {
		f.log.Debug().Msg("SetAutoMode ignored: no device")
		return
	}
	f.apply("auto", f.dev.ApplyAuto())
	if f.store.Snapshot().ExposureBias != 0 {
		f.apply("exposure-bias", f.dev.ApplyExposureBias(0))
	}
	f.store.SetExposureBias(0)
}

// Close releases the active device, entering the NoDevice state.
func (f *Facade) Close() error {
	if f.dev == nil {
		return nil
	}
	err := f.dev.Close()
	f.dev = nil
	return err
}

// apply logs a failed hardware call and swallows it. An unsupported
// control is expected on capability-limited backends and logged at
// debug only.
func (f *Facade) apply(op string, err error) {
	switch {
	case err == nil:
	case errors.Is(err, camera.ErrUnsupported):
		f.log.Debug().Str("op", op).Msg("Control unsupported by device, state published anyway")
	default:
		f.log.Warn().Err(err).Str("op", op).Msg("Control failed, state published anyway")
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampDuration(v, lo, hi time.Duration) time.Duration {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
