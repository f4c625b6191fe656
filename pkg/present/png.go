// Package present holds frame sinks that are not tied to a window: a PNG
// sequence writer for headless runs and recording.
package present

import (
	"bufio"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"multipass/internal/logger"
	"multipass/internal/util"
	"multipass/pkg/engine"
)

// Snapshotter is a device that can read back the composited frame
type Snapshotter interface {
	Snapshot() (*image.RGBA, error)
}

// PNGWriter writes every Every-th frame to Dir as frame_NNNNN.png. When
// Next is set frames are forwarded to it, so a window can be recorded.
type PNGWriter struct {
	dir     string
	source  Snapshotter
	next    engine.Presenter
	limit   uint64
	every   uint64
	last    uint64
	written int
	logger  *logger.Logger
	encoder png.Encoder
}

var _ engine.Presenter = (*PNGWriter)(nil)

// PNGOptions configures a PNGWriter
type PNGOptions struct {
	Limit uint64           // stop after this many frames, 0 = never
	Every uint64           // write every n-th frame, 0 or 1 = all
	Next  engine.Presenter // optional presenter to forward to
}

// NewPNGWriter creates the output directory and returns a writer
func NewPNGWriter(dir string, source Snapshotter, opts PNGOptions, log *logger.Logger) (*PNGWriter, error) {
	if err := util.CreateDirIfNotExist(dir); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	every := opts.Every
	if every == 0 {
		every = 1
	}
	return &PNGWriter{
		dir:     dir,
		source:  source,
		next:    opts.Next,
		limit:   opts.Limit,
		every:   every,
		logger:  log,
		encoder: png.Encoder{CompressionLevel: png.BestSpeed},
	}, nil
}

// Present implements engine.Presenter
func (w *PNGWriter) Present(frame uint64) error {
	w.last = frame
	if frame%w.every == 0 || frame == 1 {
		if err := w.write(frame); err != nil {
			return err
		}
	}
	if w.next != nil {
		return w.next.Present(frame)
	}
	return nil
}

func (w *PNGWriter) write(frame uint64) error {
	img, err := w.source.Snapshot()
	if err != nil {
		return fmt.Errorf("snapshot frame %d: %w", frame, err)
	}

	path := filepath.Join(w.dir, fmt.Sprintf("frame_%05d.png", frame))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create frame %d: %w", frame, err)
	}
	if err := encode(f, &w.encoder, img); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	w.written++
	w.logger.Debugf("Wrote %s", path)
	return nil
}

func encode(out io.Writer, enc *png.Encoder, img image.Image) error {
	bw := bufio.NewWriter(out)
	if err := enc.Encode(bw, img); err != nil {
		return err
	}
	return bw.Flush()
}

// ShouldClose implements engine.Presenter
func (w *PNGWriter) ShouldClose() bool {
	if w.limit > 0 && w.last >= w.limit {
		return true
	}
	return w.next != nil && w.next.ShouldClose()
}

// Written returns the number of files written
func (w *PNGWriter) Written() int {
	return w.written
}
