package control

import (
	"math"

	"github.com/oselz/viewfinder/internal/camera"
)

// kelvinToGains converts a correlated color temperature into the gain
// triple that neutralizes a blackbody illuminant at that temperature.
// The green channel is the reference (gain 1 before clamping); warmer
// temperatures boost blue, cooler ones boost red.
func kelvinToGains(kelvin float64) camera.Gains {
	r, g, b := blackbodyRGB(kelvin)
	return camera.Gains{
		R: g / r,
		G: 1,
		B: g / b,
	}
}

// blackbodyRGB approximates the RGB color of a blackbody radiator,
// using the Tanner-Helland curve fit. Valid over the clamped control
// range (3000-8000 K); channels are floored well above zero there.
func blackbodyRGB(kelvin float64) (r, g, b float64) {
	t := kelvin / 100

	if t <= 66 {
		r = 255
	} else {
		r = 329.698727446 * math.Pow(t-60, -0.1332047592)
	}

	if t <= 66 {
		g = 99.4708025861*math.Log(t) - 161.1195681661
	} else {
		g = 288.1221695283 * math.Pow(t-60, -0.0755148492)
	}

	if t >= 66 {
		b = 255
	} else {
		b = 138.5177312231*math.Log(t-10) - 305.0447927307
	}

	return clamp(r, 1, 255), clamp(g, 1, 255), clamp(b, 1, 255)
}
