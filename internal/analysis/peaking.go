package analysis

import (
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/oselz/viewfinder/internal/camera"
)

// PeakingOptions tunes the focus-peaking transform.
type PeakingOptions struct {
	// Blur is the sigma of the pre-filter that suppresses sensor noise
	// before edge detection. Zero disables it.
	Blur float64

	// Threshold is the gradient magnitude, normalized to [0,1], below
	// which a pixel is fully transparent.
	Threshold float64
}

// DefaultPeakingOptions are tuned for 8-bit viewfinder frames.
var DefaultPeakingOptions = PeakingOptions{
	Blur:      0.8,
	Threshold: 0.18,
}

// maxGradient is the largest Sobel magnitude on 8-bit luminance:
// both kernels sum to 4*255 at a hard edge.
var maxGradient = math.Hypot(4*255, 4*255)

// Peak converts one frame into a translucent edge-highlight overlay the
// same dimensions as the input. Detected-edge intensity becomes the
// alpha channel; every surviving pixel is recolored pure green so the
// overlay reads as a single highlight color when composited over the
// live view.
func Peak(f *camera.Frame, opts PeakingOptions) *image.RGBA {
	gray := grayPlane(f, opts.Blur)

	w, h := f.Width, f.Height
	out := image.NewRGBA(image.Rect(0, 0, w, h))

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gx, gy := sobelAt(gray, w, x, y)
			mag := math.Hypot(gx, gy) / maxGradient
			if mag < opts.Threshold {
				continue
			}
			// Ramp alpha from a visible floor at the threshold up to
			// fully opaque at the strongest edges.
			ramp := (mag - opts.Threshold) / (1 - opts.Threshold)
			a := uint8(96 + math.Min(ramp, 1)*159)
			// The overlay is premultiplied: a green pixel at alpha a is
			// (0, a, 0, a).
			i := out.PixOffset(x, y)
			out.Pix[i+1] = a
			out.Pix[i+3] = a
		}
	}
	return out
}

// grayPlane extracts the luminance plane, optionally blurring first.
func grayPlane(f *camera.Frame, blur float64) []uint8 {
	w, h := f.Width, f.Height
	gray := make([]uint8, w*h)

	if blur > 0 {
		blurred := imaging.Blur(f.RGBA(), blur)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				i := blurred.PixOffset(x, y)
				gray[y*w+x] = luma(blurred.Pix[i], blurred.Pix[i+1], blurred.Pix[i+2])
			}
		}
		return gray
	}

	for i, j := 0, 0; j < w*h; i, j = i+4, j+1 {
		gray[j] = luma(f.Pix[i], f.Pix[i+1], f.Pix[i+2])
	}
	return gray
}

// sobelAt evaluates the 3x3 Sobel kernels at an interior pixel.
func sobelAt(gray []uint8, w, x, y int) (gx, gy float64) {
	tl := float64(gray[(y-1)*w+x-1])
	tc := float64(gray[(y-1)*w+x])
	tr := float64(gray[(y-1)*w+x+1])
	ml := float64(gray[y*w+x-1])
	mr := float64(gray[y*w+x+1])
	bl := float64(gray[(y+1)*w+x-1])
	bc := float64(gray[(y+1)*w+x])
	br := float64(gray[(y+1)*w+x+1])

	gx = (tr + 2*mr + br) - (tl + 2*ml + bl)
	gy = (bl + 2*bc + br) - (tl + 2*tc + tr)
	return gx, gy
}
