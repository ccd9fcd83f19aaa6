package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"sync"

	"github.com/disintegration/gift"
	"gocv.io/x/gocv"
)

// ErrNoFrame is returned before the first frame is published.
var ErrNoFrame = errors.New("no frame published yet")

// Preview holds the most recent camera frame as JPEG so that HTTP viewers
// never read from the camera themselves.
type Preview struct {
	mu      sync.RWMutex
	jpeg    []byte
	seq     uint64
	updated chan struct{}
}

// NewPreview creates an empty Preview.
func NewPreview() *Preview {
	return &Preview{updated: make(chan struct{})}
}

// Publish encodes frame and makes it the latest.
func (p *Preview) Publish(frame *gocv.Mat) error {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return fmt.Errorf("failed to encode preview: %w", err)
	}
	defer buf.Close()

	p.PublishJPEG(bytes.Clone(buf.GetBytes()))
	return nil
}

// PublishJPEG stores an already encoded frame. p keeps data.
func (p *Preview) PublishJPEG(data []byte) {
	p.mu.Lock()
	p.jpeg = data
	p.seq++
	close(p.updated)
	p.updated = make(chan struct{})
	p.mu.Unlock()
}

// Latest returns the newest frame and its sequence number. The slice must
// not be modified.
func (p *Preview) Latest() ([]byte, uint64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.jpeg == nil {
		return nil, 0, ErrNoFrame
	}
	return p.jpeg, p.seq, nil
}

// Next blocks until a frame newer than after is published or ctx is done.
func (p *Preview) Next(ctx context.Context, after uint64) ([]byte, uint64, error) {
	for {
		p.mu.RLock()
		data, seq, wait := p.jpeg, p.seq, p.updated
		p.mu.RUnlock()

		if seq > after && data != nil {
			return data, seq, nil
		}

		select {
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		case <-wait:
		}
	}
}

// SnapshotOptions shape a still preview.
type SnapshotOptions struct {
	// Width scales the image keeping its aspect ratio. Zero keeps the size.
	Width  int
	Mirror bool
}

// Snapshot decodes the latest frame and applies opts.
func (p *Preview) Snapshot(opts SnapshotOptions) (image.Image, error) {
	data, _, err := p.Latest()
	if err != nil {
		return nil, err
	}

	src, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode preview: %w", err)
	}

	g := gift.New()
	if opts.Mirror {
		g.Add(gift.FlipHorizontal())
	}
	if opts.Width > 0 && opts.Width != src.Bounds().Dx() {
		g.Add(gift.Resize(opts.Width, 0, gift.LinearResampling))
	}
	if len(g.Filters) == 0 {
		return src, nil
	}

	dst := image.NewRGBA(g.Bounds(src.Bounds()))
	g.Draw(dst, src)
	return dst, nil
}
