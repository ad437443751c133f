package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oselz/viewfinder/internal/camera"
)

// grayFrame builds a frame where every pixel has the same gray value.
func grayFrame(w, h int, v uint8) *camera.Frame {
	pix := make([]uint8, w*h*4)
	for i := 0; i < len(pix); i += 4 {
		pix[i] = v
		pix[i+1] = v
		pix[i+2] = v
		pix[i+3] = 0xff
	}
	return &camera.Frame{Pix: pix, Width: w, Height: h}
}

func TestHistogramShape(t *testing.T) {
	f := grayFrame(16, 16, 0)
	// Half the pixels bright, half dark.
	for i := 0; i < len(f.Pix)/2; i += 4 {
		f.Pix[i] = 200
		f.Pix[i+1] = 200
		f.Pix[i+2] = 200
	}

	h := Histogram(f)
	require.Len(t, h, HistogramBuckets)

	peak := 0.0
	for _, v := range h {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
		if v > peak {
			peak = v
		}
	}
	assert.Equal(t, 1.0, peak)
}

func TestHistogramUniformFrame(t *testing.T) {
	f := grayFrame(8, 8, 42)
	h := Histogram(f)

	for i, v := range h {
		if i == 42 {
			assert.Equal(t, 1.0, v)
			continue
		}
		assert.Zero(t, v)
	}
}

func TestHistogramBlackFrame(t *testing.T) {
	h := Histogram(grayFrame(4, 4, 0))
	assert.Equal(t, 1.0, h[0])
	for _, v := range h[1:] {
		assert.Zero(t, v)
	}
}

func TestHistogramEmptyFrame(t *testing.T) {
	h := Histogram(&camera.Frame{Width: 0, Height: 0})
	require.Len(t, h, HistogramBuckets)
	for _, v := range h {
		assert.Zero(t, v)
	}
}

func TestLumaWeights(t *testing.T) {
	assert.Equal(t, uint8(0), luma(0, 0, 0))
	assert.Equal(t, uint8(255), luma(255, 255, 255))
	// Green dominates the Rec. 601 mix.
	assert.Greater(t, luma(0, 255, 0), luma(255, 0, 0))
	assert.Greater(t, luma(255, 0, 0), luma(0, 0, 255))
}
