package sim

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oselz/viewfinder/internal/camera"
)

func TestOpenResolvesProfiles(t *testing.T) {
	o := NewOpener(Options{Clock: clock.NewMock()})

	dev, err := o.Open(camera.PositionBack, camera.ClassTelephoto)
	require.NoError(t, err)
	defer dev.Close()
	assert.Equal(t, "sim-back-tele", dev.Profile().Name)

	_, err = o.Open(camera.PositionFront, camera.ClassTelephoto)
	assert.ErrorIs(t, err, camera.ErrClassUnavailable)

	_, err = o.Open(camera.Position("side"), camera.ClassWide)
	assert.ErrorIs(t, err, camera.ErrNotFound)
}

func TestFramesDropInsteadOfQueueing(t *testing.T) {
	clk := clock.NewMock()
	o := NewOpener(Options{Width: 16, Height: 12, FPS: 60, Clock: clk})
	dev, err := o.Open(camera.PositionBack, camera.ClassWide)
	require.NoError(t, err)
	defer dev.Close()

	// Let the frame goroutine install its ticker before advancing.
	time.Sleep(10 * time.Millisecond)
	for i := 0; i < 5; i++ {
		clk.Add(time.Second / 60)
		time.Sleep(time.Millisecond)
	}

	// With no consumer the channel holds exactly the first frame; later
	// ones were dropped, never queued.
	f := <-dev.Frames()
	assert.Equal(t, uint64(1), f.Seq)
	assert.Len(t, f.Pix, 16*12*4)

	select {
	case f2 := <-dev.Frames():
		// At most one more frame can land between the drain and now.
		assert.Greater(t, f2.Seq, uint64(1))
	default:
	}
}

func TestCloseEndsStream(t *testing.T) {
	o := NewOpener(Options{Clock: clock.NewMock()})
	dev, err := o.Open(camera.PositionBack, camera.ClassWide)
	require.NoError(t, err)

	require.NoError(t, dev.Close())
	require.NoError(t, dev.Close())

	select {
	case _, ok := <-dev.Frames():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("frame channel not closed")
	}
}

func TestAppliedControlsRecorded(t *testing.T) {
	o := NewOpener(Options{Clock: clock.NewMock()})
	dev, err := o.Open(camera.PositionBack, camera.ClassWide)
	require.NoError(t, err)
	defer dev.Close()

	sd := dev.(*Device)
	require.NoError(t, sd.ApplyExposure(400, time.Second/250))
	require.NoError(t, sd.ApplyFocus(0.7))
	require.NoError(t, sd.ApplyWhiteBalanceGains(camera.Gains{R: 1.2, G: 1, B: 1.8}))

	a := sd.LastApplied()
	assert.Equal(t, 400.0, a.ISO)
	assert.Equal(t, time.Second/250, a.Shutter)
	assert.Equal(t, 0.7, a.Focus)
	assert.Equal(t, 1.8, a.Gains.B)
}

func TestExposureBiasSwitchesToAuto(t *testing.T) {
	o := NewOpener(Options{Clock: clock.NewMock()})
	dev, err := o.Open(camera.PositionBack, camera.ClassWide)
	require.NoError(t, err)
	defer dev.Close()

	sd := dev.(*Device)
	require.NoError(t, sd.ApplyExposure(400, time.Second/250))
	require.False(t, sd.LastApplied().Auto)

	require.NoError(t, sd.ApplyExposureBias(1.5))

	a := sd.LastApplied()
	assert.Equal(t, 1.5, a.EV)
	assert.True(t, a.Auto, "bias requires continuous auto exposure")
}
