package commands

import (
	"fmt"

	"github.com/oselz/viewfinder/internal/camera"
	"github.com/oselz/viewfinder/internal/camera/gst"
	"github.com/oselz/viewfinder/internal/camera/screen"
	"github.com/oselz/viewfinder/internal/camera/sim"
	"github.com/oselz/viewfinder/internal/config"
)

// newOpener builds the capture backend named in the camera config.
func newOpener(cfg config.CameraConfig) (camera.Opener, error) {
	switch cfg.Backend {
	case "", "sim":
		return sim.NewOpener(sim.Options{
			Width:  cfg.Width,
			Height: cfg.Height,
			FPS:    cfg.FPS,
		}), nil
	case "screen":
		return screen.NewOpener(screen.Options{FPS: cfg.FPS}), nil
	case "gst":
		return gst.NewOpener(gst.Options{
			DevicePath: cfg.DevicePath,
			Width:      cfg.Width,
			Height:     cfg.Height,
			FPS:        cfg.FPS,
		}), nil
	}
	return nil, fmt.Errorf("unknown capture backend %q", cfg.Backend)
}
