package state

import (
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oselz/viewfinder/internal/camera"
)

func TestSnapshotCopiesHistogram(t *testing.T) {
	s := NewStore()
	s.SetHistogram([]float64{0.1, 0.5, 1.0})

	snap := s.Snapshot()
	snap.Histogram[0] = 99

	assert.Equal(t, 0.1, s.Snapshot().Histogram[0])
}

func TestSubscribeReceivesUpdates(t *testing.T) {
	s := NewStore()
	ch := s.Subscribe()

	s.SetExposure(400, 0.01)

	select {
	case snap := <-ch:
		assert.Equal(t, 400.0, snap.ISO)
		assert.Equal(t, 0.01, snap.ShutterSeconds)
	case <-time.After(time.Second):
		t.Fatal("no notification received")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	s := NewStore()
	ch := s.Subscribe()
	s.Unsubscribe(ch)

	_, open := <-ch
	assert.False(t, open)

	// Writers must not panic after the listener is gone.
	s.SetFocus(0.5)
}

func TestSlowListenerNeverBlocksWriters(t *testing.T) {
	s := NewStore()
	ch := s.Subscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			s.SetExposureBias(float64(i))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("writer blocked on a slow listener")
	}

	// The buffered channel holds the first missed snapshot; the rest
	// were dropped, and the store itself has the final value.
	<-ch
	assert.Equal(t, 99.0, s.Snapshot().ExposureBias)
}

func TestSubscribeUnsubscribeUnderLoad(t *testing.T) {
	s := NewStore()

	stop := make(chan struct{})
	var writers sync.WaitGroup
	for i := 0; i < 8; i++ {
		writers.Add(1)
		go func() {
			defer writers.Done()
			for {
				select {
				case <-stop:
					return
				default:
					s.SetFocus(0.5)
				}
			}
		}()
	}

	// Churning listeners must never see a send on their closed channel.
	var listeners sync.WaitGroup
	for i := 0; i < 4; i++ {
		listeners.Add(1)
		go func() {
			defer listeners.Done()
			for j := 0; j < 500; j++ {
				ch := s.Subscribe()
				select {
				case <-ch:
				default:
				}
				s.Unsubscribe(ch)
			}
		}()
	}

	listeners.Wait()
	close(stop)
	writers.Wait()
}

func TestSetDevicePublishesBounds(t *testing.T) {
	s := NewStore()
	s.SetDevice(camera.Profile{
		Name:       "cam",
		Position:   camera.PositionBack,
		Class:      camera.ClassTelephoto,
		MinISO:     50,
		MaxISO:     1600,
		MinShutter: time.Second / 8000,
		MaxShutter: time.Second / 2,
		MinEV:      -3,
		MaxEV:      3,
	})

	snap := s.Snapshot()
	assert.Equal(t, "cam", snap.DeviceName)
	assert.Equal(t, camera.ClassTelephoto, snap.LensClass)
	assert.Equal(t, 50.0, snap.Bounds.MinISO)
	assert.Equal(t, 1600.0, snap.Bounds.MaxISO)
	assert.InDelta(t, 1.0/8000, snap.Bounds.MinShutterSecs, 1e-9)
	assert.Equal(t, 0.5, snap.Bounds.MaxShutterSecs)
	assert.Equal(t, -3.0, snap.Bounds.MinEV)
}

func TestPeakingOverlayRoundTrip(t *testing.T) {
	s := NewStore()
	require.Nil(t, s.PeakingOverlay())

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	s.SetPeaking(img)
	assert.Same(t, img, s.PeakingOverlay())

	s.SetPeaking(nil)
	assert.Nil(t, s.PeakingOverlay())
}
