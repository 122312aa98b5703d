// Package export writes frames to disk as JPEG files.
package export

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/anthonynsimon/bild/imgio"

	"github.com/ivlev/framepick/internal/system"
)

// DefaultQuality is the JPEG quality used for dataset frames.
const DefaultQuality = 95

// JPEGWriter encodes images as JPEG files at a fixed quality.
type JPEGWriter struct {
	Quality int
}

func NewJPEGWriter(quality int) *JPEGWriter {
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}
	return &JPEGWriter{Quality: quality}
}

// WriteJPEG encodes img to path. The file appears under its final name only
// once it is complete, so a failed write never leaves a truncated image that
// would count towards numbering.
func (w *JPEGWriter) WriteJPEG(path string, img image.Image) error {
	if img == nil {
		return fmt.Errorf("write %s: no image", path)
	}
	enc := imgio.JPEGEncoder(w.Quality)
	err := system.WriteAtomic(filepath.Dir(path), filepath.Base(path), func(f *os.File) error {
		return enc(f, img)
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
