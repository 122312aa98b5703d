// Package video decodes frames from video files.
//
// A Decoder is a positioned reader over one file: Seek moves to a frame index
// and Read decodes the frame there, then the next one, and so on. Backends
// differ in how they get pixels (an ffmpeg child process or OpenCV) but all
// return RGBA images and report the index of every frame they return.
package video

import (
	"errors"
	"fmt"
	"image"

	"go.uber.org/zap"
)

// ErrEndOfStream is returned by Read when no further frame can be decoded
// from the current position.
var ErrEndOfStream = errors.New("end of stream")

type Frame struct {
	Image image.Image
	Index int
}

// Decoder reads frames from one open video.
type Decoder interface {
	// FrameRate is the rate reported by the container; it may be 0 when
	// unknown.
	FrameRate() float64
	// FrameCount is the number of frames reported by the container; it may be
	// 0 or approximate.
	FrameCount() int
	// Seek positions the decoder so that the next Read returns the frame at
	// index (or the closest one the backend can reach).
	Seek(index int) error
	// Read decodes the next frame.
	Read() (Frame, error)
	Close() error
}

// Opener opens a Decoder for a path.
type Opener interface {
	Open(path string) (Decoder, error)
}

type OpenerFunc func(path string) (Decoder, error)

func (f OpenerFunc) Open(path string) (Decoder, error) { return f(path) }

type Options struct {
	FFmpegPath  string
	FFprobePath string
	Logger      *zap.Logger
}

// New returns the Opener for a backend name.
func New(backend string, opts Options) (Opener, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	switch backend {
	case "ffmpeg", "":
		return NewFFmpeg(opts), nil
	case "opencv":
		return newOpenCV(opts)
	default:
		return nil, fmt.Errorf("unknown decoder backend: %s", backend)
	}
}
