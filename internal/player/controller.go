// Package player drives playback of one video and exports chosen frames.
//
// The Controller is not safe for concurrent use. Every call is expected to
// come from the UI event loop, or from a callback that holds the UI lock.
package player

import (
	"errors"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ivlev/framepick/internal/numbering"
	"github.com/ivlev/framepick/internal/state"
	"github.com/ivlev/framepick/internal/video"
)

// defaultFrameRate replaces a non-positive rate reported by the decoder.
const defaultFrameRate = 30.0

// Options wires a Controller to its collaborators. Opener and Writer are
// required; the rest fall back to no-ops.
type Options struct {
	Opener video.Opener
	Writer FrameWriter
	Store  *state.Store
	View   View
	Ticker Ticker
	Logger *zap.Logger
	// ListImages lists image names in a directory for output numbering.
	// Defaults to numbering.ListImages.
	ListImages func(dir string) ([]string, error)
}

type session struct {
	dec        video.Decoder
	path       string
	frameRate  float64
	frameCount int
	index      int
	frame      image.Image
	playing    bool
}

// Controller owns the open video session and the persisted output state.
type Controller struct {
	opener     video.Opener
	writer     FrameWriter
	store      *state.Store
	view       View
	ticker     Ticker
	log        *zap.Logger
	listImages func(dir string) ([]string, error)

	state     state.OutputState
	session   *session
	scrubbing bool
}

// New creates a Controller and loads the persisted state from the store.
func New(opts Options) *Controller {
	c := &Controller{
		opener:     opts.Opener,
		writer:     opts.Writer,
		store:      opts.Store,
		view:       opts.View,
		ticker:     opts.Ticker,
		log:        opts.Logger,
		listImages: opts.ListImages,
		state:      state.Default(),
	}
	if c.view == nil {
		c.view = nopView{}
	}
	if c.ticker == nil {
		c.ticker = nopTicker{}
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	if c.listImages == nil {
		c.listImages = numbering.ListImages
	}
	if c.store != nil {
		st, err := c.store.Load()
		if err != nil {
			c.log.Warn("failed to load state", zap.String("path", c.store.Path()), zap.Error(err))
		}
		c.state = st
	}
	return c
}

func (c *Controller) State() state.OutputState { return c.state }

// OpenVideo replaces the current session with a new one for path, positioned
// on the first frame and paused. On failure no session is left open and the
// output state is untouched.
func (c *Controller) OpenVideo(path string) error {
	c.closeSession()

	dec, err := c.opener.Open(path)
	if err != nil {
		c.view.ShowFrame(nil)
		c.view.SetRange(0)
		c.view.SetPosition(0)
		c.refreshInfo()
		c.log.Error("failed to open video", zap.String("path", path), zap.Error(err))
		return &Error{Code: CodeOpenFailed, Path: path, Err: err}
	}

	rate := dec.FrameRate()
	if rate <= 0 {
		rate = defaultFrameRate
	}
	count := max(0, dec.FrameCount())
	c.session = &session{dec: dec, path: path, frameRate: rate, frameCount: count}

	c.log.Info("video opened",
		zap.String("path", path),
		zap.Float64("fps", rate),
		zap.Int("frames", count),
	)

	c.view.SetPlaying(false)
	c.view.SetRange(max(0, count-1))
	if err := c.SeekTo(0); err != nil {
		c.view.ShowFrame(nil)
		c.view.SetPosition(0)
	}

	c.state.LastVideoPath = path
	c.persist()
	c.refreshInfo()
	return nil
}

// SeekTo decodes the frame at target, clamped to the valid range. On failure
// the current frame and index are kept.
func (c *Controller) SeekTo(target int) error {
	s := c.session
	if s == nil {
		return nil
	}
	target = min(max(target, 0), max(0, s.frameCount-1))

	if err := s.dec.Seek(target); err != nil {
		c.log.Debug("seek failed", zap.Int("target", target), zap.Error(err))
		return err
	}
	fr, err := s.dec.Read()
	if err != nil {
		c.log.Debug("decode after seek failed", zap.Int("target", target), zap.Error(err))
		return err
	}
	c.show(fr)
	return nil
}

// StepRelative seeks delta frames away from the current one.
func (c *Controller) StepRelative(delta int) {
	if c.session == nil {
		return
	}
	_ = c.SeekTo(c.session.index + delta)
}

// Step pauses and moves delta frames. It backs the previous/next buttons.
func (c *Controller) Step(delta int) {
	c.SetPlaying(false)
	c.StepRelative(delta)
}

// SetPlaying starts or stops the ticker. Playing without a session does
// nothing.
func (c *Controller) SetPlaying(on bool) {
	s := c.session
	if s == nil {
		c.view.SetPlaying(false)
		return
	}
	if s.playing == on {
		return
	}
	s.playing = on
	if on {
		c.ticker.Start(tickInterval(s.frameRate))
	} else {
		c.ticker.Stop()
	}
	c.view.SetPlaying(on)
	c.refreshInfo()
}

// TogglePlay flips between playing and paused.
func (c *Controller) TogglePlay() {
	if c.session == nil {
		return
	}
	c.SetPlaying(!c.session.playing)
}

// Reload rewinds to the first frame and starts playing.
func (c *Controller) Reload() {
	if c.session == nil {
		return
	}
	c.SetPlaying(false)
	_ = c.SeekTo(0)
	c.SetPlaying(true)
}

// Tick decodes the next frame during playback. A failed decode means the end
// of the video (or a broken stream) and pauses playback, keeping the last
// frame on screen.
func (c *Controller) Tick() {
	s := c.session
	if s == nil || !s.playing {
		return
	}
	fr, err := s.dec.Read()
	if err != nil {
		if !errors.Is(err, video.ErrEndOfStream) {
			c.log.Debug("decode failed during playback", zap.Int("index", s.index), zap.Error(err))
		}
		c.SetPlaying(false)
		return
	}
	c.show(fr)
}

// BeginScrub marks the start of a slider drag and pauses playback.
func (c *Controller) BeginScrub() {
	c.scrubbing = true
	c.SetPlaying(false)
}

// Scrub previews pos while the slider is held.
func (c *Controller) Scrub(pos int) {
	_ = c.SeekTo(pos)
}

// EndScrub seeks to the release position and syncs the slider to the frame
// the decoder actually landed on.
func (c *Controller) EndScrub(pos int) {
	_ = c.SeekTo(pos)
	c.scrubbing = false
	if c.session != nil {
		c.view.SetPosition(c.session.index)
	}
}

func (c *Controller) Scrubbing() bool { return c.scrubbing }

// SaveCurrentFrame writes the displayed frame as <dir>/<n>.jpg, where n is
// recomputed from the directory contents first, and returns the path.
func (c *Controller) SaveCurrentFrame() (string, error) {
	if c.session == nil || c.session.frame == nil {
		return "", &Error{Code: CodeNoFrame}
	}
	dir := c.state.SaveDirectoryPath
	if dir == "" {
		return "", &Error{Code: CodeNoSaveDirectory}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &Error{Code: CodeSaveFailed, Path: dir, Err: err}
	}

	n := c.recomputeNext()
	if n <= 0 {
		return "", &Error{Code: CodeSaveFailed, Path: dir, Err: fmt.Errorf("invalid output number %d", n)}
	}
	path := filepath.Join(dir, strconv.Itoa(n)+".jpg")
	if err := c.writer.WriteJPEG(path, c.session.frame); err != nil {
		c.log.Error("failed to save frame", zap.String("path", path), zap.Error(err))
		c.refreshInfo()
		return "", &Error{Code: CodeSaveFailed, Path: path, Err: err}
	}

	c.state.NextOutputIndex = n + 1
	c.persist()
	c.refreshInfo()
	c.log.Info("frame saved",
		zap.String("path", path),
		zap.Int("frame", c.session.index),
	)
	return path, nil
}

// SetSaveDirectory switches the output directory. A file path selects its
// parent directory.
func (c *Controller) SetSaveDirectory(dir string) {
	if dir == "" {
		return
	}
	if fi, err := os.Stat(dir); err == nil && !fi.IsDir() {
		dir = filepath.Dir(dir)
	}
	c.state.SaveDirectoryPath = dir
	c.recomputeNext()
	c.persist()
	c.refreshInfo()
	c.log.Info("save directory set",
		zap.String("dir", dir),
		zap.Int("next", c.state.NextOutputIndex),
	)
}

// RefreshNextIndex recomputes the next output number from the save
// directory, persisting it only if it changed.
func (c *Controller) RefreshNextIndex() {
	if c.state.SaveDirectoryPath == "" {
		return
	}
	prev := c.state.NextOutputIndex
	if c.recomputeNext() != prev {
		c.persist()
	}
	c.refreshInfo()
}

// Restore brings back the previous session: the output number is
// recomputed and the last video reopened if it still exists.
func (c *Controller) Restore() error {
	c.RefreshNextIndex()
	p := c.state.LastVideoPath
	if p == "" {
		c.refreshInfo()
		return nil
	}
	if _, err := os.Stat(p); err != nil {
		c.log.Info("last video not available", zap.String("path", p), zap.Error(err))
		c.refreshInfo()
		return nil
	}
	return c.OpenVideo(p)
}

// Close stops playback, releases the decoder and persists the state.
func (c *Controller) Close() {
	c.closeSession()
	c.persist()
}

func (c *Controller) Info() Info {
	info := Info{
		SaveDir:   c.state.SaveDirectoryPath,
		NextImage: c.state.NextOutputIndex,
	}
	if s := c.session; s != nil {
		info.Open = true
		info.VideoPath = s.path
		info.Frame = s.index
		info.FrameCount = s.frameCount
		info.Playing = s.playing
	}
	return info
}

func (c *Controller) show(fr video.Frame) {
	s := c.session
	s.index = fr.Index
	s.frame = fr.Image
	c.view.ShowFrame(fr.Image)
	if !c.scrubbing {
		c.view.SetPosition(fr.Index)
	}
	c.refreshInfo()
}

func (c *Controller) recomputeNext() int {
	dir := c.state.SaveDirectoryPath
	names, err := c.listImages(dir)
	if err != nil {
		c.log.Warn("failed to list save directory", zap.String("dir", dir), zap.Error(err))
		return c.state.NextOutputIndex
	}
	c.state.NextOutputIndex = numbering.Next(names)
	return c.state.NextOutputIndex
}

func (c *Controller) closeSession() {
	s := c.session
	if s == nil {
		return
	}
	c.SetPlaying(false)
	c.ticker.Stop()
	if err := s.dec.Close(); err != nil {
		c.log.Debug("failed to close decoder", zap.String("path", s.path), zap.Error(err))
	}
	c.session = nil
}

func (c *Controller) persist() {
	if c.store == nil {
		return
	}
	if err := c.store.Save(c.state); err != nil {
		c.log.Warn("failed to save state", zap.String("path", c.store.Path()), zap.Error(err))
	}
}

func (c *Controller) refreshInfo() {
	c.view.ShowInfo(c.Info())
}

func tickInterval(fps float64) time.Duration {
	ms := math.Round(1000 / fps)
	if ms < 1 {
		ms = 1
	}
	return time.Duration(ms) * time.Millisecond
}

type nopView struct{}

func (nopView) ShowFrame(image.Image) {}
func (nopView) SetRange(int)          {}
func (nopView) SetPosition(int)       {}
func (nopView) SetPlaying(bool)       {}
func (nopView) ShowInfo(Info)         {}

type nopTicker struct{}

func (nopTicker) Start(time.Duration) {}
func (nopTicker) Stop()               {}
