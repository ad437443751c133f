package api

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"net/http"
	"sync"
	"time"

	xdraw "golang.org/x/image/draw"

	"github.com/oselz/viewfinder/internal/camera"
	"github.com/oselz/viewfinder/internal/logger"
	"github.com/oselz/viewfinder/internal/state"
)

const (
	liveJPEGQuality = 85
	// overlayOpacity scales the peaking overlay when composited over the
	// live frame.
	overlayOpacity = 160
)

// LiveStream serves the live view as an MJPEG stream, compositing the
// focus-peaking overlay on top of the latest frame. It holds exactly
// one frame: Offer overwrites, never queues, so the streaming goroutine
// is never blocked by a slow HTTP client.
type LiveStream struct {
	store *state.Store
	fps   int

	mu     sync.RWMutex
	latest *camera.Frame
}

// NewLiveStream creates a live view bound to the published state.
func NewLiveStream(store *state.Store, fps int) *LiveStream {
	if fps <= 0 {
		fps = 30
	}
	return &LiveStream{store: store, fps: fps}
}

// Offer implements session.FrameSink. Non-blocking.
func (l *LiveStream) Offer(f *camera.Frame) {
	l.mu.Lock()
	l.latest = f
	l.mu.Unlock()
}

// Handler returns the MJPEG HTTP handler.
func (l *LiveStream) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Connection", "close")

		log := logger.WithComponent("live")
		log.Debug().Str("remote", r.RemoteAddr).Msg("Live client connected")
		defer log.Debug().Str("remote", r.RemoteAddr).Msg("Live client disconnected")

		ticker := time.NewTicker(time.Second / time.Duration(l.fps))
		defer ticker.Stop()

		var lastSeq uint64
		for {
			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
			}

			l.mu.RLock()
			frame := l.latest
			l.mu.RUnlock()
			if frame == nil || frame.Seq == lastSeq {
				continue
			}
			lastSeq = frame.Seq

			jpegData, err := l.composite(frame)
			if err != nil {
				log.Debug().Err(err).Msg("Failed to encode live frame")
				continue
			}

			if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(jpegData)); err != nil {
				return
			}
			if _, err := w.Write(jpegData); err != nil {
				return
			}
			if _, err := fmt.Fprintf(w, "\r\n"); err != nil {
				return
			}
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
	}
}

// composite draws the peaking overlay over the frame at partial opacity
// and encodes the result.
func (l *LiveStream) composite(frame *camera.Frame) ([]byte, error) {
	src := frame.RGBA()
	overlay := l.store.PeakingOverlay()
	if overlay == nil {
		return encodeJPEG(src)
	}

	out := image.NewRGBA(src.Bounds())
	draw.Draw(out, out.Bounds(), src, src.Bounds().Min, draw.Src)

	if !overlay.Bounds().Eq(out.Bounds()) {
		// A device swap can briefly leave an overlay of the old
		// geometry; scale it to fit rather than dropping it.
		scaled := image.NewRGBA(out.Bounds())
		xdraw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), overlay, overlay.Bounds(), xdraw.Over, nil)
		overlay = scaled
	}

	mask := image.NewUniform(color.Alpha{A: overlayOpacity})
	draw.DrawMask(out, out.Bounds(), overlay, image.Point{}, mask, image.Point{}, draw.Over)

	return encodeJPEG(out)
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: liveJPEGQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
