// Package analysis holds the per-frame image diagnostics: the luminance
// histogram and the focus-peaking overlay. Both are pure, stateless
// transforms over a single frame.
package analysis

import (
	"github.com/oselz/viewfinder/internal/camera"
)

// HistogramBuckets is the fixed size of the luminance distribution.
const HistogramBuckets = 256

// maxEpsilon floors the normalization divisor so an all-zero frame does
// not divide by zero.
const maxEpsilon = 1e-9

// Histogram computes a normalized 256-bucket luminance distribution over
// the full frame extent. Every bucket is divided by the tallest bucket,
// so the peak is always exactly 1.0 and the shape is comparable across
// exposures.
func Histogram(f *camera.Frame) []float64 {
	counts := make([]float64, HistogramBuckets)

	n := f.Width * f.Height * 4
	for i := 0; i+3 < n; i += 4 {
		counts[luma(f.Pix[i], f.Pix[i+1], f.Pix[i+2])]++
	}

	max := maxEpsilon
	for _, c := range counts {
		if c > max {
			max = c
		}
	}
	for i := range counts {
		counts[i] /= max
	}
	return counts
}

// luma desaturates one pixel with Rec. 601 weights, in integer space.
func luma(r, g, b uint8) uint8 {
	return uint8((299*uint32(r) + 587*uint32(g) + 114*uint32(b)) / 1000)
}
