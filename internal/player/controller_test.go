package player

import (
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/framepick/internal/export"
	"github.com/ivlev/framepick/internal/state"
	"github.com/ivlev/framepick/internal/video"
)

type fakeDecoder struct {
	rate    float64
	count   int
	snap    int
	pos     int
	seeks   []int
	failAt  int
	closed  bool
	seekErr error
}

func newFakeDecoder(count int) *fakeDecoder {
	return &fakeDecoder{rate: 25, count: count, failAt: -1}
}

func (d *fakeDecoder) FrameRate() float64 { return d.rate }
func (d *fakeDecoder) FrameCount() int    { return d.count }

func (d *fakeDecoder) Seek(index int) error {
	d.seeks = append(d.seeks, index)
	if d.seekErr != nil {
		return d.seekErr
	}
	if d.snap > 0 {
		index -= index % d.snap
	}
	d.pos = index
	return nil
}

func (d *fakeDecoder) Read() (video.Frame, error) {
	if d.pos >= d.count || d.pos == d.failAt {
		return video.Frame{}, video.ErrEndOfStream
	}
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(0, 0, color.RGBA{R: uint8(d.pos), A: 255})
	fr := video.Frame{Image: img, Index: d.pos}
	d.pos++
	return fr, nil
}

func (d *fakeDecoder) Close() error {
	d.closed = true
	return nil
}

type fakeView struct {
	frames    []image.Image
	positions []int
	rng       int
	playing   bool
	info      Info
}

func (v *fakeView) ShowFrame(img image.Image) { v.frames = append(v.frames, img) }
func (v *fakeView) SetRange(max int)          { v.rng = max }
func (v *fakeView) SetPosition(index int)     { v.positions = append(v.positions, index) }
func (v *fakeView) SetPlaying(playing bool)   { v.playing = playing }
func (v *fakeView) ShowInfo(info Info)        { v.info = info }

func (v *fakeView) lastPosition() int {
	if len(v.positions) == 0 {
		return -1
	}
	return v.positions[len(v.positions)-1]
}

type fakeTicker struct {
	running  bool
	interval time.Duration
	starts   int
}

func (t *fakeTicker) Start(d time.Duration) {
	t.running = true
	t.interval = d
	t.starts++
}

func (t *fakeTicker) Stop() { t.running = false }

type failingWriter struct{}

func (failingWriter) WriteJPEG(string, image.Image) error { return errors.New("disk full") }

type harness struct {
	ctrl   *Controller
	dec    *fakeDecoder
	view   *fakeView
	ticker *fakeTicker
	store  *state.Store
}

func newHarness(t *testing.T, dec *fakeDecoder) *harness {
	t.Helper()
	h := &harness{
		dec:    dec,
		view:   &fakeView{},
		ticker: &fakeTicker{},
		store:  state.NewStore(filepath.Join(t.TempDir(), "config.txt")),
	}
	h.ctrl = New(Options{
		Opener: video.OpenerFunc(func(string) (video.Decoder, error) { return h.dec, nil }),
		Writer: export.NewJPEGWriter(export.DefaultQuality),
		Store:  h.store,
		View:   h.view,
		Ticker: h.ticker,
	})
	return h
}

func openHarness(t *testing.T, count int) *harness {
	t.Helper()
	h := newHarness(t, newFakeDecoder(count))
	require.NoError(t, h.ctrl.OpenVideo("/videos/clip.mp4"))
	return h
}

func TestOpenVideo(t *testing.T) {
	h := openHarness(t, 100)

	info := h.ctrl.Info()
	assert.True(t, info.Open)
	assert.Equal(t, 0, info.Frame)
	assert.Equal(t, 100, info.FrameCount)
	assert.False(t, info.Playing)
	assert.Equal(t, 99, h.view.rng)
	assert.Equal(t, 0, h.view.lastPosition())
	require.Len(t, h.view.frames, 1)
	assert.NotNil(t, h.view.frames[0])
	assert.Equal(t, "/videos/clip.mp4", h.ctrl.State().LastVideoPath)

	st, err := h.store.Load()
	require.NoError(t, err)
	assert.Equal(t, "/videos/clip.mp4", st.LastVideoPath)
}

func TestOpenVideoFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.ctrl.opener = video.OpenerFunc(func(string) (video.Decoder, error) {
		return nil, errors.New("no such codec")
	})

	err := h.ctrl.OpenVideo("/videos/broken.avi")
	require.Error(t, err)
	assert.Equal(t, CodeOpenFailed, Code(err))
	assert.Contains(t, err.Error(), "no such codec")
	assert.False(t, h.ctrl.Info().Open)
	assert.Empty(t, h.ctrl.State().LastVideoPath)

	_, statErr := os.Stat(h.store.Path())
	assert.True(t, os.IsNotExist(statErr), "failed open must not persist")
}

func TestOpenVideoReplacesSession(t *testing.T) {
	h := openHarness(t, 10)
	first := h.dec
	h.ctrl.SetPlaying(true)

	h.dec = newFakeDecoder(5)
	require.NoError(t, h.ctrl.OpenVideo("/videos/other.mp4"))

	assert.True(t, first.closed)
	assert.False(t, h.ticker.running)
	assert.Equal(t, 5, h.ctrl.Info().FrameCount)
	assert.Equal(t, "/videos/other.mp4", h.ctrl.Info().VideoPath)
}

func TestSeekToClamps(t *testing.T) {
	tests := []struct {
		name   string
		count  int
		target int
		want   int
	}{
		{"negative", 100, -5, 0},
		{"zero", 100, 0, 0},
		{"inside", 100, 42, 42},
		{"last", 100, 99, 99},
		{"past end", 100, 500, 99},
		{"no frame count", 0, 5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := newFakeDecoder(tt.count)
			h := newHarness(t, dec)
			require.NoError(t, h.ctrl.OpenVideo("/videos/clip.mp4"))

			_ = h.ctrl.SeekTo(tt.target)
			assert.Equal(t, tt.want, dec.seeks[len(dec.seeks)-1])
		})
	}
}

func TestSeekToSameAsClamped(t *testing.T) {
	h := openHarness(t, 100)

	require.NoError(t, h.ctrl.SeekTo(500))
	high := h.ctrl.Info().Frame
	require.NoError(t, h.ctrl.SeekTo(99))
	assert.Equal(t, high, h.ctrl.Info().Frame)

	require.NoError(t, h.ctrl.SeekTo(-5))
	low := h.ctrl.Info().Frame
	require.NoError(t, h.ctrl.SeekTo(0))
	assert.Equal(t, low, h.ctrl.Info().Frame)
}

func TestSeekFailureKeepsFrame(t *testing.T) {
	h := openHarness(t, 100)
	require.NoError(t, h.ctrl.SeekTo(10))
	frames := len(h.view.frames)

	h.dec.seekErr = errors.New("seek broke")
	require.Error(t, h.ctrl.SeekTo(20))
	assert.Equal(t, 10, h.ctrl.Info().Frame)
	assert.Len(t, h.view.frames, frames)

	h.dec.seekErr = nil
	h.dec.failAt = 30
	require.Error(t, h.ctrl.SeekTo(30))
	assert.Equal(t, 10, h.ctrl.Info().Frame)
}

func TestStep(t *testing.T) {
	h := openHarness(t, 100)
	h.ctrl.SetPlaying(true)

	h.ctrl.Step(1)
	assert.False(t, h.ticker.running)
	assert.Equal(t, 1, h.ctrl.Info().Frame)

	h.ctrl.Step(-1)
	h.ctrl.Step(-1)
	assert.Equal(t, 0, h.ctrl.Info().Frame)
}

func TestPlayAndTick(t *testing.T) {
	h := openHarness(t, 3)

	h.ctrl.SetPlaying(true)
	assert.True(t, h.ticker.running)
	assert.Equal(t, 40*time.Millisecond, h.ticker.interval)
	assert.True(t, h.view.playing)

	h.ctrl.Tick()
	h.ctrl.Tick()
	assert.Equal(t, 2, h.ctrl.Info().Frame)
	assert.Equal(t, 2, h.view.lastPosition())
	last := h.view.frames[len(h.view.frames)-1]

	// End of stream: pause silently and keep the last frame.
	h.ctrl.Tick()
	assert.False(t, h.ticker.running)
	assert.False(t, h.view.playing)
	assert.False(t, h.ctrl.Info().Playing)
	assert.Equal(t, 2, h.ctrl.Info().Frame)
	assert.Same(t, last, h.view.frames[len(h.view.frames)-1])
}

func TestTickWhilePausedIsIgnored(t *testing.T) {
	h := openHarness(t, 10)
	h.ctrl.Tick()
	assert.Equal(t, 0, h.ctrl.Info().Frame)
}

func TestPlayWithoutSession(t *testing.T) {
	h := newHarness(t, nil)
	h.ctrl.SetPlaying(true)
	h.ctrl.TogglePlay()
	h.ctrl.Reload()
	h.ctrl.Tick()
	assert.Zero(t, h.ticker.starts)
	assert.False(t, h.ctrl.Info().Playing)
}

func TestTogglePlayAndReload(t *testing.T) {
	h := openHarness(t, 10)

	h.ctrl.TogglePlay()
	assert.True(t, h.ctrl.Info().Playing)
	h.ctrl.Tick()
	h.ctrl.Tick()
	h.ctrl.TogglePlay()
	assert.False(t, h.ctrl.Info().Playing)
	assert.Equal(t, 2, h.ctrl.Info().Frame)

	h.ctrl.Reload()
	assert.True(t, h.ctrl.Info().Playing)
	assert.Equal(t, 0, h.ctrl.Info().Frame)
}

func TestScrubDoesNotMoveSlider(t *testing.T) {
	h := openHarness(t, 100)
	h.ctrl.SetPlaying(true)

	h.ctrl.BeginScrub()
	assert.True(t, h.ctrl.Scrubbing())
	assert.False(t, h.ticker.running)
	before := len(h.view.positions)

	h.ctrl.Scrub(10)
	h.ctrl.Scrub(20)
	require.NoError(t, h.ctrl.SeekTo(30))
	// A tick that slipped through while dragging must not move it either.
	h.ctrl.session.playing = true
	h.ctrl.Tick()
	h.ctrl.session.playing = false

	assert.Len(t, h.view.positions, before)
	assert.Equal(t, 31, h.ctrl.Info().Frame)

	h.ctrl.EndScrub(40)
	assert.False(t, h.ctrl.Scrubbing())
	assert.Equal(t, 40, h.view.lastPosition())
	assert.Equal(t, h.ctrl.Info().Frame, h.view.lastPosition())
}

func TestEndScrubReportsDecoderPosition(t *testing.T) {
	h := openHarness(t, 100)
	h.dec.snap = 10

	h.ctrl.BeginScrub()
	h.ctrl.Scrub(55)
	h.ctrl.EndScrub(37)

	assert.Equal(t, 30, h.ctrl.Info().Frame)
	assert.Equal(t, 30, h.view.lastPosition())
}

func TestSaveCurrentFrameSequence(t *testing.T) {
	h := openHarness(t, 100)
	dir := filepath.Join(t.TempDir(), "dataset")
	h.ctrl.SetSaveDirectory(dir)

	for i := 0; i < 3; i++ {
		h.ctrl.Step(1)
		_, err := h.ctrl.SaveCurrentFrame()
		require.NoError(t, err)
	}

	for _, name := range []string{"1.jpg", "2.jpg", "3.jpg"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
	assert.Equal(t, 4, h.ctrl.Info().NextImage)

	st, err := h.store.Load()
	require.NoError(t, err)
	assert.Equal(t, 4, st.NextOutputIndex)
	assert.Equal(t, dir, st.SaveDirectoryPath)
}

func TestSaveCurrentFrameResumesNumbering(t *testing.T) {
	h := openHarness(t, 10)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "frame_041.png"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes_900.txt"), []byte("x"), 0o644))
	h.ctrl.SetSaveDirectory(dir)
	assert.Equal(t, 42, h.ctrl.Info().NextImage)

	// Files added behind our back are picked up before writing.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "99.jpg"), []byte("x"), 0o644))
	path, err := h.ctrl.SaveCurrentFrame()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "100.jpg"), path)
	assert.Equal(t, 101, h.ctrl.Info().NextImage)
}

func TestSaveCurrentFrameNeverOverwrites(t *testing.T) {
	h := openHarness(t, 10)
	dir := t.TempDir()
	huge := filepath.Join(dir, "9223372036854775807.jpg")
	require.NoError(t, os.WriteFile(huge, []byte("x"), 0o644))
	h.ctrl.SetSaveDirectory(dir)

	first, err := h.ctrl.SaveCurrentFrame()
	require.NoError(t, err)
	h.ctrl.Step(1)
	second, err := h.ctrl.SaveCurrentFrame()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "1.jpg"), first)
	assert.Equal(t, filepath.Join(dir, "2.jpg"), second)
	assert.FileExists(t, huge)
	assert.FileExists(t, first)
	assert.FileExists(t, second)

	st, err := h.store.Load()
	require.NoError(t, err)
	assert.Equal(t, 3, st.NextOutputIndex)
}

func TestSaveCurrentFrameErrors(t *testing.T) {
	t.Run("no frame", func(t *testing.T) {
		h := newHarness(t, nil)
		h.ctrl.SetSaveDirectory(t.TempDir())
		_, err := h.ctrl.SaveCurrentFrame()
		assert.Equal(t, CodeNoFrame, Code(err))
	})

	t.Run("no directory", func(t *testing.T) {
		h := openHarness(t, 10)
		_, err := h.ctrl.SaveCurrentFrame()
		assert.Equal(t, CodeNoSaveDirectory, Code(err))
	})

	t.Run("write failure", func(t *testing.T) {
		h := openHarness(t, 10)
		h.ctrl.writer = failingWriter{}
		dir := t.TempDir()
		h.ctrl.SetSaveDirectory(dir)

		_, err := h.ctrl.SaveCurrentFrame()
		require.Error(t, err)
		assert.Equal(t, CodeSaveFailed, Code(err))
		assert.Equal(t, 1, h.ctrl.Info().NextImage)
	})
}

func TestSetSaveDirectoryFileUsesParent(t *testing.T) {
	h := newHarness(t, nil)
	dir := t.TempDir()
	file := filepath.Join(dir, "7.jpg")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	h.ctrl.SetSaveDirectory(file)
	assert.Equal(t, dir, h.ctrl.State().SaveDirectoryPath)
	assert.Equal(t, 8, h.ctrl.State().NextOutputIndex)
}

func TestRefreshNextIndex(t *testing.T) {
	h := newHarness(t, nil)
	dir := t.TempDir()
	h.ctrl.SetSaveDirectory(dir)
	assert.Equal(t, 1, h.view.info.NextImage)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "12.jpeg"), []byte("x"), 0o644))
	h.ctrl.RefreshNextIndex()
	assert.Equal(t, 13, h.view.info.NextImage)

	st, err := h.store.Load()
	require.NoError(t, err)
	assert.Equal(t, 13, st.NextOutputIndex)
}

func TestRestore(t *testing.T) {
	dir := t.TempDir()
	videoPath := filepath.Join(dir, "clip.mp4")
	saveDir := filepath.Join(dir, "out")
	require.NoError(t, os.WriteFile(videoPath, []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(saveDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(saveDir, "5.jpg"), []byte("x"), 0o644))

	store := state.NewStore(filepath.Join(dir, "config.txt"))
	require.NoError(t, store.Save(state.OutputState{
		LastVideoPath:     videoPath,
		SaveDirectoryPath: saveDir,
		NextOutputIndex:   2,
	}))

	var opened string
	ctrl := New(Options{
		Opener: video.OpenerFunc(func(p string) (video.Decoder, error) {
			opened = p
			return newFakeDecoder(10), nil
		}),
		Writer: export.NewJPEGWriter(0),
		Store:  store,
	})
	require.NoError(t, ctrl.Restore())

	assert.Equal(t, videoPath, opened)
	assert.True(t, ctrl.Info().Open)
	assert.False(t, ctrl.Info().Playing)
	assert.Equal(t, 6, ctrl.Info().NextImage)
}

func TestRestoreMissingVideo(t *testing.T) {
	h := newHarness(t, newFakeDecoder(10))
	h.ctrl.state.LastVideoPath = filepath.Join(t.TempDir(), "gone.mp4")

	require.NoError(t, h.ctrl.Restore())
	assert.False(t, h.ctrl.Info().Open)
}

func TestClose(t *testing.T) {
	h := openHarness(t, 10)
	h.ctrl.SetPlaying(true)

	h.ctrl.Close()
	assert.True(t, h.dec.closed)
	assert.False(t, h.ticker.running)
	assert.False(t, h.ctrl.Info().Open)

	st, err := h.store.Load()
	require.NoError(t, err)
	assert.Equal(t, "/videos/clip.mp4", st.LastVideoPath)
}

func TestDefaultFrameRate(t *testing.T) {
	dec := newFakeDecoder(10)
	dec.rate = 0
	h := newHarness(t, dec)
	require.NoError(t, h.ctrl.OpenVideo("/videos/clip.mp4"))

	h.ctrl.SetPlaying(true)
	assert.Equal(t, 33*time.Millisecond, h.ticker.interval)
}

func TestTickInterval(t *testing.T) {
	tests := []struct {
		fps  float64
		want time.Duration
	}{
		{30, 33 * time.Millisecond},
		{29.97, 33 * time.Millisecond},
		{25, 40 * time.Millisecond},
		{60, 17 * time.Millisecond},
		{5000, time.Millisecond},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tickInterval(tt.fps), "fps %v", tt.fps)
	}
}

func TestInfoLabels(t *testing.T) {
	assert.Equal(t, "Frame: - / -", Info{}.FrameLabel())
	assert.Equal(t, "Frame: 4 / 99", Info{Open: true, Frame: 4, FrameCount: 100}.FrameLabel())
	assert.Equal(t, "Next image: 7", Info{NextImage: 7}.NextLabel())
}

func TestErrorMessages(t *testing.T) {
	err := &Error{Code: CodeSaveFailed, Path: "/out/3.jpg", Err: errors.New("disk full")}
	assert.Equal(t, `could not save image "/out/3.jpg": disk full`, err.Error())
	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, "", Code(errors.New("plain")))
}
