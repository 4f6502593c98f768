package server

import (
	"fmt"
	"log"
	"net/http"
	"time"
)

// DefaultStreamFPS is the MJPEG rate when none is configured.
const DefaultStreamFPS = 15

// FrameEncoder yields the latest annotated frame as JPEG. The boolean is
// false while no frame is available yet.
type FrameEncoder interface {
	DisplayJPEG() ([]byte, bool, error)
}

// StreamHandler serves the annotated frames as MJPEG.
type StreamHandler struct {
	frames   FrameEncoder
	interval time.Duration
}

// NewStreamHandler creates a new StreamHandler. fps <= 0 uses
// DefaultStreamFPS.
func NewStreamHandler(frames FrameEncoder, fps int) *StreamHandler {
	if fps <= 0 {
		fps = DefaultStreamFPS
	}
	return &StreamHandler{frames: frames, interval: time.Second / time.Duration(fps)}
}

// ServeHTTP streams MJPEG frames to connected clients until they go away.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, _ := w.(http.Flusher)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		data, ok, err := h.frames.DisplayJPEG()
		if err != nil {
			log.Printf("stream: %v", err)
		}
		if ok && err == nil {
			if err := writePart(w, data); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func writePart(w http.ResponseWriter, data []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(data)); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err := fmt.Fprint(w, "\r\n")
	return err
}
