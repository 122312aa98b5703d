//go:build gocv

package video

import (
	"fmt"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// openCV decodes through OpenCV's VideoCapture. Build with -tags gocv.
type openCV struct {
	log *zap.Logger
}

func newOpenCV(opts Options) (Opener, error) {
	return &openCV{log: opts.Logger}, nil
}

func (o *openCV) Open(path string) (Decoder, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("open %s: capture not opened", path)
	}
	d := &cvDecoder{vc: vc, mat: gocv.NewMat()}
	o.log.Debug("video opened with opencv",
		zap.String("path", path),
		zap.Float64("fps", d.FrameRate()),
		zap.Int("frames", d.FrameCount()),
	)
	return d, nil
}

type cvDecoder struct {
	vc  *gocv.VideoCapture
	mat gocv.Mat
}

func (d *cvDecoder) FrameRate() float64 { return d.vc.Get(gocv.VideoCaptureFPS) }
func (d *cvDecoder) FrameCount() int    { return int(d.vc.Get(gocv.VideoCaptureFrameCount)) }

func (d *cvDecoder) Seek(index int) error {
	if index < 0 {
		index = 0
	}
	d.vc.Set(gocv.VideoCapturePosFrames, float64(index))
	return nil
}

// Read decodes the next frame. The reported index comes from the capture
// position after the read, since container seeks are not always exact.
func (d *cvDecoder) Read() (Frame, error) {
	if ok := d.vc.Read(&d.mat); !ok || d.mat.Empty() {
		return Frame{}, ErrEndOfStream
	}
	idx := int(d.vc.Get(gocv.VideoCapturePosFrames)) - 1
	if idx < 0 {
		idx = 0
	}
	img, err := d.mat.ToImage()
	if err != nil {
		return Frame{}, fmt.Errorf("convert frame %d: %w", idx, err)
	}
	return Frame{Image: img, Index: idx}, nil
}

func (d *cvDecoder) Close() error {
	d.mat.Close()
	return d.vc.Close()
}
