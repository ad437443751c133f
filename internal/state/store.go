// Package state is the single point of truth the presentation layer
// reads. Fields are written by whichever queue computed them (control
// queue for settings, streaming workers for analysis results) and read
// as consistent snapshots; subscribers get change notifications over
// buffered channels with non-blocking fan-out.
package state

import (
	"image"
	"sync"

	"github.com/oselz/viewfinder/internal/camera"
)

// Bounds mirrors the active device profile's control ranges for the UI.
type Bounds struct {
	MinISO         float64 `json:"min_iso"`
	MaxISO         float64 `json:"max_iso"`
	MinShutterSecs float64 `json:"min_shutter_seconds"`
	MaxShutterSecs float64 `json:"max_shutter_seconds"`
	MinEV          float64 `json:"min_ev"`
	MaxEV          float64 `json:"max_ev"`
}

// Snapshot is one consistent view of all published fields. The peaking
// overlay is excluded (it is large and image-typed); use PeakingOverlay.
type Snapshot struct {
	ISO            float64           `json:"iso"`
	ShutterSeconds float64           `json:"shutter_seconds"`
	FocusPosition  float64           `json:"focus_position"`
	WhiteBalanceK  float64           `json:"white_balance_kelvin"`
	ExposureBias   float64           `json:"exposure_bias"`
	LensClass      camera.FocalClass `json:"lens_class"`
	Position       camera.Position   `json:"position"`
	DeviceName     string            `json:"device_name"`
	Bounds         Bounds            `json:"bounds"`
	SessionRunning bool              `json:"session_running"`
	HistogramOn    bool              `json:"histogram_enabled"`
	PeakingOn      bool              `json:"peaking_enabled"`
	Histogram      []float64         `json:"histogram,omitempty"`
	Pitch          float64           `json:"pitch"`
	Roll           float64           `json:"roll"`
}

// Store holds the published fields.
type Store struct {
	mu        sync.RWMutex
	snap      Snapshot
	peaking   *image.RGBA
	listeners []chan Snapshot
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Snapshot returns a copy of the current published state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.snap
	if snap.Histogram != nil {
		h := make([]float64, len(snap.Histogram))
		copy(h, snap.Histogram)
		snap.Histogram = h
	}
	return snap
}

// PeakingOverlay returns the latest focus-peaking overlay, or nil when
// peaking is disabled or cleared.
func (s *Store) PeakingOverlay() *image.RGBA {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.peaking
}

// Subscribe adds a listener for state changes. The channel is buffered;
// a slow listener misses intermediate snapshots rather than blocking a
// writer.
func (s *Store) Subscribe() chan Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Snapshot, 1)
	s.listeners = append(s.listeners, ch)
	return ch
}

// Unsubscribe removes a listener.
func (s *Store) Unsubscribe(ch chan Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, l := range s.listeners {
		if l == ch {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// update applies fn under the write lock and notifies listeners. The
// sends stay under the lock so they are mutually exclusive with the
// close in Unsubscribe; they cannot block because every listener
// channel is buffered and sent to non-blocking.
func (s *Store) update(fn func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.snap)
	for _, ch := range s.listeners {
		select {
		case ch <- s.snap:
		default:
		}
	}
}

// SetExposure publishes the applied ISO and shutter duration.
func (s *Store) SetExposure(iso, shutterSeconds float64) {
	s.update(func(sn *Snapshot) {
		sn.ISO = iso
		sn.ShutterSeconds = shutterSeconds
	})
}

// SetFocus publishes the focus position.
func (s *Store) SetFocus(pos float64) {
	s.update(func(sn *Snapshot) { sn.FocusPosition = pos })
}

// SetWhiteBalance publishes the applied color temperature.
func (s *Store) SetWhiteBalance(kelvin float64) {
	s.update(func(sn *Snapshot) { sn.WhiteBalanceK = kelvin })
}

// SetExposureBias publishes the applied EV offset.
func (s *Store) SetExposureBias(ev float64) {
	s.update(func(sn *Snapshot) { sn.ExposureBias = ev })
}

// SetDevice publishes the active device identity and its bounds.
func (s *Store) SetDevice(p camera.Profile) {
	s.update(func(sn *Snapshot) {
		sn.LensClass = p.Class
		sn.Position = p.Position
		sn.DeviceName = p.Name
		sn.Bounds = Bounds{
			MinISO:         p.MinISO,
			MaxISO:         p.MaxISO,
			MinShutterSecs: p.MinShutter.Seconds(),
			MaxShutterSecs: p.MaxShutter.Seconds(),
			MinEV:          p.MinEV,
			MaxEV:          p.MaxEV,
		}
	})
}

// SetRunning publishes the session-running flag.
func (s *Store) SetRunning(running bool) {
	s.update(func(sn *Snapshot) { sn.SessionRunning = running })
}

// SetEnablement publishes which analyses are active.
func (s *Store) SetEnablement(histogram, peaking bool) {
	s.update(func(sn *Snapshot) {
		sn.HistogramOn = histogram
		sn.PeakingOn = peaking
	})
}

// SetHistogram publishes the latest luminance distribution.
func (s *Store) SetHistogram(h []float64) {
	s.update(func(sn *Snapshot) { sn.Histogram = h })
}

// SetPeaking publishes the latest peaking overlay; nil clears it.
func (s *Store) SetPeaking(img *image.RGBA) {
	s.mu.Lock()
	s.peaking = img
	s.mu.Unlock()
}

// SetOrientation publishes the latest device attitude pair.
func (s *Store) SetOrientation(pitch, roll float64) {
	s.update(func(sn *Snapshot) {
		sn.Pitch = pitch
		sn.Roll = roll
	})
}
