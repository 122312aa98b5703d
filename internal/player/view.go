package player

import (
	"fmt"
	"image"
	"time"
)

// View is the display side of the controller: the video surface, the
// position slider and the info labels.
type View interface {
	ShowFrame(img image.Image)
	SetRange(last int)
	// never called while the user is scrubbing
	SetPosition(index int)
	SetPlaying(playing bool)
	ShowInfo(info Info)
}

// Ticker fires the controller's Tick periodically while playing. Start
// replaces any running schedule; Stop must be safe to call from inside a
// tick.
type Ticker interface {
	Start(interval time.Duration)
	Stop()
}

type FrameWriter interface {
	WriteJPEG(path string, img image.Image) error
}

type Info struct {
	VideoPath  string
	SaveDir    string
	Frame      int
	FrameCount int
	NextImage  int
	Playing    bool
	Open       bool
}

// FrameLabel is the "Frame: i / n" line. n is the last valid index, matching
// the slider range.
func (i Info) FrameLabel() string {
	if !i.Open {
		return "Frame: - / -"
	}
	return fmt.Sprintf("Frame: %d / %d", i.Frame, max(0, i.FrameCount-1))
}

func (i Info) NextLabel() string {
	return fmt.Sprintf("Next image: %d", i.NextImage)
}
