package server

import (
	"errors"
	"fmt"
	"image/jpeg"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ayusman/mudra/internal/capture"
)

const (
	maxSnapshotWidth = 1920
	snapshotQuality  = 85
)

// StreamHandler serves the pipeline's preview frames as MJPEG.
type StreamHandler struct {
	preview *capture.Preview
	logger  *slog.Logger
}

// NewStreamHandler creates a new StreamHandler.
func NewStreamHandler(preview *capture.Preview, logger *slog.Logger) *StreamHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamHandler{preview: preview, logger: logger}
}

// ServeHTTP writes a frame each time the pipeline publishes one, until the
// client disconnects.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx := r.Context()
	var seq uint64
	for {
		data, next, err := h.preview.Next(ctx, seq)
		if err != nil {
			return
		}
		seq = next

		fmt.Fprintf(w, "--frame\r\n")
		fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(data))
		if _, err := w.Write(data); err != nil {
			h.logger.Debug("stream client gone", "error", err)
			return
		}
		fmt.Fprintf(w, "\r\n")

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}

// SnapshotHandler serves the latest preview frame as a single JPEG.
// Query parameters: width (pixels, aspect kept) and mirror (bool).
type SnapshotHandler struct {
	preview *capture.Preview
}

// NewSnapshotHandler creates a new SnapshotHandler.
func NewSnapshotHandler(preview *capture.Preview) *SnapshotHandler {
	return &SnapshotHandler{preview: preview}
}

func (h *SnapshotHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var opts capture.SnapshotOptions
	q := r.URL.Query()
	if v := q.Get("width"); v != "" {
		width, err := strconv.Atoi(v)
		if err != nil || width <= 0 || width > maxSnapshotWidth {
			writeError(w, http.StatusBadRequest, "width must be between 1 and 1920")
			return
		}
		opts.Width = width
	}
	if v := q.Get("mirror"); v != "" {
		mirror, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "mirror must be a boolean")
			return
		}
		opts.Mirror = mirror
	}

	img, err := h.preview.Snapshot(opts)
	if err != nil {
		if errors.Is(err, capture.ErrNoFrame) {
			writeError(w, http.StatusServiceUnavailable, "No frame captured yet")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to render snapshot")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-cache")
	jpeg.Encode(w, img, &jpeg.Options{Quality: snapshotQuality})
}
