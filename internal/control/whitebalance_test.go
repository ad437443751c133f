package control

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKelvinToGainsGreenReference(t *testing.T) {
	for _, k := range []float64{3000, 4500, 5600, 6500, 8000} {
		g := kelvinToGains(k)
		assert.Equal(t, 1.0, g.G)
		assert.Greater(t, g.R, 0.0)
		assert.Greater(t, g.B, 0.0)
	}
}

func TestKelvinToGainsWarmBoostsBlue(t *testing.T) {
	g := kelvinToGains(3000)
	assert.Greater(t, g.B, g.R)
}

func TestKelvinToGainsCoolBoostsRed(t *testing.T) {
	g := kelvinToGains(8000)
	assert.Greater(t, g.R, g.B)
}

func TestBlackbodyRGBBounded(t *testing.T) {
	for k := 3000.0; k <= 8000; k += 500 {
		r, g, b := blackbodyRGB(k)
		for _, c := range []float64{r, g, b} {
			assert.GreaterOrEqual(t, c, 1.0)
			assert.LessOrEqual(t, c, 255.0)
		}
	}
}
