package control

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oselz/viewfinder/internal/camera"
	"github.com/oselz/viewfinder/internal/camera/sim"
	"github.com/oselz/viewfinder/internal/state"
)

func newTestFacade(t *testing.T) (*Facade, *sim.Opener, *state.Store) {
	t.Helper()
	opener := sim.NewOpener(sim.Options{Width: 32, Height: 24, Clock: clock.NewMock()})
	store := state.NewStore()
	f := NewFacade(opener, store)
	t.Cleanup(func() { f.Close() })
	return f, opener, store
}

func simDevice(t *testing.T, f *Facade) *sim.Device {
	t.Helper()
	dev, ok := f.Device().(*sim.Device)
	require.True(t, ok)
	return dev
}

func TestFirstSelectSeedsDefaults(t *testing.T) {
	f, _, store := newTestFacade(t)

	f.SelectDevice(camera.PositionBack, camera.ClassWide)
	require.NotNil(t, f.Device())

	snap := store.Snapshot()
	assert.Equal(t, "sim-back-wide", snap.DeviceName)
	assert.Equal(t, camera.ClassWide, snap.LensClass)
	assert.Equal(t, 100.0, snap.ISO)
	assert.InDelta(t, 1.0/60, snap.ShutterSeconds, 1e-9)
	assert.Equal(t, 5600.0, snap.WhiteBalanceK)
	assert.Equal(t, 0.5, snap.FocusPosition)
	assert.Zero(t, snap.ExposureBias)
	assert.Equal(t, 3200.0, snap.Bounds.MaxISO)
}

func TestExposureClampedToProfile(t *testing.T) {
	f, _, store := newTestFacade(t)
	f.SelectDevice(camera.PositionBack, camera.ClassWide)

	f.SetExposure(999999, 5.0)
	snap := store.Snapshot()
	assert.Equal(t, 3200.0, snap.ISO)
	assert.Equal(t, 1.0, snap.ShutterSeconds)

	applied := simDevice(t, f).LastApplied()
	assert.Equal(t, 3200.0, applied.ISO)
	assert.Equal(t, time.Second, applied.Shutter)

	f.SetExposure(1, 0.0000001)
	snap = store.Snapshot()
	assert.Equal(t, 32.0, snap.ISO)
	assert.InDelta(t, 1.0/16000, snap.ShutterSeconds, 1e-9)
}

func TestExposureBiasClamped(t *testing.T) {
	f, _, store := newTestFacade(t)
	f.SelectDevice(camera.PositionBack, camera.ClassWide)

	f.SetExposureBias(10)
	assert.Equal(t, 8.0, store.Snapshot().ExposureBias)

	f.SetExposureBias(-20)
	assert.Equal(t, -8.0, store.Snapshot().ExposureBias)
}

func TestWhiteBalanceClamped(t *testing.T) {
	f, _, store := newTestFacade(t)
	f.SelectDevice(camera.PositionBack, camera.ClassWide)

	f.SetWhiteBalance(2000)
	assert.Equal(t, 3000.0, store.Snapshot().WhiteBalanceK)

	f.SetWhiteBalance(20000)
	assert.Equal(t, 8000.0, store.Snapshot().WhiteBalanceK)

	g := simDevice(t, f).LastApplied().Gains
	for _, c := range []float64{g.R, g.G, g.B} {
		assert.GreaterOrEqual(t, c, 1.0)
		assert.LessOrEqual(t, c, 4.0)
	}
}

func TestCollapsedBoundsPassThrough(t *testing.T) {
	f, opener, store := newTestFacade(t)
	opener.SetProfile(camera.Profile{
		Name:        "sim-fixed",
		Position:    camera.PositionBack,
		Class:       camera.ClassWide,
		MinISO:      100,
		MaxISO:      100,
		MinShutter:  time.Second / 30,
		MaxShutter:  time.Second / 30,
		MaxWBGain:   1,
		StillWidth:  64,
		StillHeight: 48,
	})
	f.SelectDevice(camera.PositionBack, camera.ClassWide)

	f.SetExposure(640, 0.25)
	snap := store.Snapshot()
	assert.Equal(t, 640.0, snap.ISO)
	assert.Equal(t, 0.25, snap.ShutterSeconds)

	f.SetExposureBias(1.5)
	assert.Equal(t, 1.5, store.Snapshot().ExposureBias)
}

func TestFallbackToWideAngle(t *testing.T) {
	f, _, store := newTestFacade(t)

	f.SelectDevice(camera.PositionFront, camera.ClassTelephoto)
	require.NotNil(t, f.Device())

	snap := store.Snapshot()
	assert.Equal(t, "sim-front-wide", snap.DeviceName)
	assert.Equal(t, camera.ClassWide, snap.LensClass)
	assert.Equal(t, camera.PositionFront, snap.Position)
	assert.Equal(t, 2016.0, snap.Bounds.MaxISO)
}

func TestSwapPreservesSettingsReclamped(t *testing.T) {
	f, _, store := newTestFacade(t)
	f.SelectDevice(camera.PositionBack, camera.ClassWide)

	f.SetExposure(2800, 1.0/125)
	f.SetWhiteBalance(6500)
	f.SetExposureBias(1)
	f.SetFocus(0.8)

	f.SelectDevice(camera.PositionBack, camera.ClassTelephoto)

	snap := store.Snapshot()
	assert.Equal(t, "sim-back-tele", snap.DeviceName)
	// The telephoto profile caps ISO at 1600, so the carried 2800
	// re-clamps; shutter fits and is kept as is.
	assert.Equal(t, 1600.0, snap.ISO)
	assert.InDelta(t, 1.0/125, snap.ShutterSeconds, 1e-9)
	assert.Equal(t, 6500.0, snap.WhiteBalanceK)
	assert.Equal(t, 1.0, snap.ExposureBias)

	// Focus is lens-specific and never reapplied to the new device.
	applied := simDevice(t, f).LastApplied()
	assert.Equal(t, 1600.0, applied.ISO)
	assert.Zero(t, applied.Focus)
	assert.Equal(t, 0.8, snap.FocusPosition)
}

func TestFailedSelectKeepsDevice(t *testing.T) {
	f, _, store := newTestFacade(t)
	f.SelectDevice(camera.PositionBack, camera.ClassWide)
	prev := f.Device()

	f.SelectDevice(camera.Position("side"), camera.ClassWide)

	assert.Same(t, prev, f.Device())
	assert.Equal(t, "sim-back-wide", store.Snapshot().DeviceName)
}

func TestNoDeviceSettersAreNoops(t *testing.T) {
	f, _, store := newTestFacade(t)

	f.SetExposure(800, 0.01)
	f.SetFocus(0.3)
	f.SetWhiteBalance(5000)
	f.SetExposureBias(2)
	f.FocusExposeAt(0.5, 0.5)
	f.ResetWhiteBalance()
	f.SetAutoMode()

	snap := store.Snapshot()
	assert.Zero(t, snap.ISO)
	assert.Zero(t, snap.FocusPosition)
	assert.Zero(t, snap.WhiteBalanceK)
}

func TestAutoModeZeroesBias(t *testing.T) {
	f, _, store := newTestFacade(t)
	f.SelectDevice(camera.PositionBack, camera.ClassWide)
	f.SetExposureBias(2)

	f.SetAutoMode()

	assert.Zero(t, store.Snapshot().ExposureBias)
	applied := simDevice(t, f).LastApplied()
	assert.True(t, applied.Auto)
	assert.Zero(t, applied.EV)
}

func TestResetWhiteBalanceKeepsPublishedTemp(t *testing.T) {
	f, _, store := newTestFacade(t)
	f.SelectDevice(camera.PositionBack, camera.ClassWide)
	f.SetWhiteBalance(6500)

	f.ResetWhiteBalance()

	assert.Equal(t, 6500.0, store.Snapshot().WhiteBalanceK)
	assert.True(t, simDevice(t, f).LastApplied().AutoWB)
}

func TestFocusExposeAtReachesHardwareOnly(t *testing.T) {
	f, _, store := newTestFacade(t)
	f.SelectDevice(camera.PositionBack, camera.ClassWide)
	before := store.Snapshot()

	f.FocusExposeAt(0.25, 0.75)

	applied := simDevice(t, f).LastApplied()
	assert.True(t, applied.HasPoint)
	assert.Equal(t, 0.25, applied.PointX)
	assert.Equal(t, 0.75, applied.PointY)
	assert.Equal(t, before.FocusPosition, store.Snapshot().FocusPosition)
}
