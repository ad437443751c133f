// Package capture produces one-shot still photos: it grabs a
// full-resolution frame from the active device, encodes it with the
// richest format the frame supports, and hands the result to the
// storage sink. Single-shot, fire-and-forget: a failed capture is
// logged once and the user may simply re-trigger.
package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"

	"github.com/google/uuid"

	"github.com/oselz/viewfinder/internal/camera"
	"github.com/oselz/viewfinder/internal/logger"
	"github.com/oselz/viewfinder/internal/storage"
)

const previewQuality = 90

// Coordinator issues still captures and forwards them to the library.
type Coordinator struct {
	lib *storage.Library
}

// NewCoordinator creates a capture coordinator writing into lib.
func NewCoordinator(lib *storage.Library) *Coordinator {
	return &Coordinator{lib: lib}
}

// Capture grabs one still from dev, encodes it, and saves it. The
// primary encoding is PNG, 16-bit when the backend delivers a deep
// sensor image, with a compressed JPEG preview alongside. Returns the
// asset ID; errors are returned for logging but the operation is never
// retried.
func (c *Coordinator) Capture(ctx context.Context, dev camera.Device) (string, error) {
	log := logger.WithComponent("capture")
	if dev == nil {
		return "", fmt.Errorf("no device installed")
	}

	img, err := dev.Still(ctx)
	if err != nil {
		return "", fmt.Errorf("still capture failed: %w", err)
	}

	id := uuid.New().String()

	primary, err := encodePNG(img)
	if err != nil {
		return "", fmt.Errorf("primary encode failed: %w", err)
	}
	if err := c.lib.Save(id+".png", primary); err != nil {
		return "", err
	}

	preview, err := encodeJPEG(img)
	if err != nil {
		return "", fmt.Errorf("preview encode failed: %w", err)
	}
	if err := c.lib.Save(id+".jpg", preview); err != nil {
		return "", err
	}

	bounds := img.Bounds()
	log.Info().
		Str("asset", id).
		Int("width", bounds.Dx()).
		Int("height", bounds.Dy()).
		Bool("deep", isDeep(img)).
		Msg("Still captured")
	return id, nil
}

// encodePNG writes the image losslessly; png keeps 16-bit samples when
// the source image carries them.
func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeJPEG(img image.Image) ([]byte, error) {
	// The jpeg encoder handles any image.Image, but converting deep
	// frames down once here avoids its slow generic path.
	if isDeep(img) {
		rgba := image.NewRGBA(img.Bounds())
		draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
		img = rgba
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: previewQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isDeep(img image.Image) bool {
	switch img.(type) {
	case *image.RGBA64, *image.NRGBA64, *image.Gray16:
		return true
	}
	return false
}
