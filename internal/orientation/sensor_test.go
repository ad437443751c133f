package orientation

import (
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAttitudePublisher struct {
	mu       sync.Mutex
	readings int
	pitch    float64
	roll     float64
}

func (p *fakeAttitudePublisher) SetOrientation(pitch, roll float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readings++
	p.pitch = pitch
	p.roll = roll
}

func (p *fakeAttitudePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.readings
}

func waitForReadings(t *testing.T, p *fakeAttitudePublisher, clk *clock.Mock, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for p.count() < want {
		if time.Now().After(deadline) {
			t.Fatalf("got %d readings, want %d", p.count(), want)
		}
		clk.Add(DefaultInterval)
		time.Sleep(time.Millisecond)
	}
}

func TestSensorPublishesReadings(t *testing.T) {
	pub := &fakeAttitudePublisher{}
	clk := clock.NewMock()
	s := NewSensor(pub, nil, clk, DefaultInterval)

	s.Start()
	defer s.Stop()

	// Let the polling goroutine install its ticker before advancing.
	time.Sleep(10 * time.Millisecond)
	waitForReadings(t, pub, clk, 3)
}

func TestSensorUsesInjectedSource(t *testing.T) {
	pub := &fakeAttitudePublisher{}
	clk := clock.NewMock()
	src := func(time.Duration) (float64, float64) { return 1.5, -2.5 }
	s := NewSensor(pub, src, clk, DefaultInterval)

	s.Start()
	defer s.Stop()

	time.Sleep(10 * time.Millisecond)
	waitForReadings(t, pub, clk, 1)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Equal(t, 1.5, pub.pitch)
	assert.Equal(t, -2.5, pub.roll)
}

func TestSensorStartStopIdempotent(t *testing.T) {
	pub := &fakeAttitudePublisher{}
	s := NewSensor(pub, nil, clock.NewMock(), DefaultInterval)

	s.Start()
	s.Start()
	s.Stop()
	s.Stop()

	// Restart works after a stop.
	s.Start()
	s.Stop()
}

func TestSimulatedSourceStaysNearLevel(t *testing.T) {
	for _, elapsed := range []time.Duration{0, time.Second, 30 * time.Second, 5 * time.Minute} {
		pitch, roll := SimulatedSource(elapsed)
		require.LessOrEqual(t, pitch, 2.0)
		require.GreaterOrEqual(t, pitch, -2.0)
		require.LessOrEqual(t, roll, 3.0)
		require.GreaterOrEqual(t, roll, -3.0)
	}
}
