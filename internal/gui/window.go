// Package gui is the desktop window: video surface, transport buttons,
// position slider and labels, all driven by a player.Controller.
package gui

import (
	"image"
	"strings"
	"sync/atomic"
	"time"

	"cogentcore.org/core/core"
	"cogentcore.org/core/events"
	"cogentcore.org/core/icons"
	"cogentcore.org/core/styles"
	"cogentcore.org/core/styles/states"
	"go.uber.org/zap"

	"github.com/ivlev/framepick/internal/player"
	"github.com/ivlev/framepick/internal/preview"
	"github.com/ivlev/framepick/internal/system"
	"github.com/ivlev/framepick/internal/watch"
)

type Options struct {
	Title         string
	PreviewWidth  int
	PreviewHeight int
	ShowStats     bool
	WatchSaveDir  bool
	Logger        *zap.Logger
}

// Window implements player.View on top of Cogent Core widgets.
type Window struct {
	opts Options
	log  *zap.Logger
	ctrl *player.Controller

	body      *core.Body
	image     *core.Image
	slider    *core.Slider
	play      *core.Button
	videoFile *core.FileButton
	saveDir   *core.FileButton
	frameText *core.Text
	nextText  *core.Text
	videoText *core.Text
	dirText   *core.Text
	statsText *core.Text

	ticker     *Ticker
	watcher    *watch.DirWatcher
	refreshing atomic.Bool
	frameSize  image.Point
	started    bool
	done       chan struct{}
}

var (
	_ player.View   = (*Window)(nil)
	_ player.Ticker = (*Ticker)(nil)
)

// New builds the window. It is not shown until Run.
func New(opts Options) *Window {
	if opts.Title == "" {
		opts.Title = "framepick"
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	w := &Window{opts: opts, log: opts.Logger, done: make(chan struct{})}
	w.build()
	w.ticker = NewTicker(w.body.AsyncLock, w.body.AsyncUnlock, func() {
		if w.ctrl != nil {
			w.ctrl.Tick()
		}
	})
	if opts.WatchSaveDir {
		dw, err := watch.New(w.log, w.onSaveDirChanged)
		if err != nil {
			w.log.Warn("save directory watcher unavailable", zap.Error(err))
		} else {
			w.watcher = dw
		}
	}
	return w
}

func (w *Window) Ticker() *Ticker { return w.ticker }

func (w *Window) SetController(c *player.Controller) { w.ctrl = c }

// Run shows the window and blocks until it is closed. start runs once the
// window is on screen; its error is reported like any other operation error.
func (w *Window) Run(start func() error) {
	w.body.Scene.OnShow(func(e events.Event) {
		if w.started {
			return
		}
		w.started = true
		if start != nil {
			w.report(start())
		}
		w.watchSaveDir()
		if w.opts.ShowStats {
			go w.runStats()
		}
	})
	w.body.Scene.OnClose(func(e events.Event) {
		close(w.done)
		w.ticker.Stop()
		if w.ctrl != nil {
			w.ctrl.Close()
		}
	})
	w.body.RunMainWindow()

	if w.watcher != nil {
		if err := w.watcher.Close(); err != nil {
			w.log.Debug("failed to close watcher", zap.Error(err))
		}
	}
}

func (w *Window) build() {
	b := core.NewBody(w.opts.Title)
	w.body = b

	top := core.NewFrame(b)
	top.Styler(func(s *styles.Style) {
		s.Direction = styles.Row
		s.Grow.Set(1, 0)
	})
	w.videoFile = core.NewFileButton(top)
	w.videoFile.SetExtensions(strings.Join(system.VideoExtensions, ","))
	w.videoFile.SetTooltip("Select a video")
	w.videoFile.OnChange(func(e events.Event) {
		if w.ctrl == nil || w.videoFile.Filename == "" {
			return
		}
		w.report(w.ctrl.OpenVideo(w.videoFile.Filename))
	})

	w.saveDir = core.NewFileButton(top)
	w.saveDir.SetIcon(icons.Folder)
	w.saveDir.SetTooltip("Select the folder to save images into")
	w.saveDir.OnChange(func(e events.Event) {
		if w.ctrl == nil || w.saveDir.Filename == "" {
			return
		}
		w.ctrl.SetSaveDirectory(w.saveDir.Filename)
		w.watchSaveDir()
	})

	w.image = core.NewImage(b)
	w.image.Styler(func(s *styles.Style) {
		s.Grow.Set(1, 1)
	})

	w.slider = core.NewSlider(b)
	w.slider.SetMin(0).SetStep(1).SetEnforceStep(true)
	w.SetRange(0)
	w.slider.Styler(func(s *styles.Style) {
		s.Grow.Set(1, 0)
	})
	w.slider.On(events.SlideStart, func(e events.Event) {
		if w.ctrl != nil {
			w.ctrl.BeginScrub()
		}
	})
	w.slider.OnInput(func(e events.Event) {
		if w.ctrl != nil && w.ctrl.Scrubbing() {
			w.ctrl.Scrub(w.sliderPos())
		}
	})
	w.slider.OnChange(func(e events.Event) {
		if w.ctrl != nil {
			w.ctrl.EndScrub(w.sliderPos())
		}
	})

	controls := core.NewFrame(b)
	controls.Styler(func(s *styles.Style) {
		s.Direction = styles.Row
	})
	prev := core.NewButton(controls).SetIcon(icons.SkipPrevious)
	prev.SetTooltip("Previous frame")
	prev.OnClick(func(e events.Event) {
		if w.ctrl != nil {
			w.ctrl.Step(-1)
		}
	})
	w.play = core.NewButton(controls).SetIcon(icons.PlayArrow).SetText("Play")
	w.play.OnClick(func(e events.Event) {
		if w.ctrl != nil {
			w.ctrl.TogglePlay()
		}
	})
	next := core.NewButton(controls).SetIcon(icons.SkipNext)
	next.SetTooltip("Next frame")
	next.OnClick(func(e events.Event) {
		if w.ctrl != nil {
			w.ctrl.Step(1)
		}
	})
	reload := core.NewButton(controls).SetIcon(icons.Refresh).SetText("Reload")
	reload.SetTooltip("Play again from the first frame")
	reload.OnClick(func(e events.Event) {
		if w.ctrl != nil {
			w.ctrl.Reload()
		}
	})
	save := core.NewButton(controls).SetIcon(icons.Save).SetText("Save frame")
	save.SetTooltip("Save the current frame [S]")
	save.OnClick(func(e events.Event) { w.save() })

	b.Scene.OnFirst(events.KeyChord, func(e events.Event) {
		if isSaveKey(e.KeyRune(), string(e.KeyChord())) {
			e.SetHandled()
			w.save()
		}
	})

	labels := core.NewFrame(b)
	labels.Styler(func(s *styles.Style) {
		s.Direction = styles.Column
	})
	w.frameText = core.NewText(labels).SetText(player.Info{}.FrameLabel())
	w.nextText = core.NewText(labels).SetText(player.Info{NextImage: 1}.NextLabel())
	w.videoText = core.NewText(labels).SetType(core.TextSupporting)
	w.dirText = core.NewText(labels).SetType(core.TextSupporting)
	w.statsText = core.NewText(labels).SetType(core.TextSupporting)
}

func (w *Window) sliderPos() int {
	return int(w.slider.Value + 0.5)
}

func (w *Window) save() {
	if w.ctrl == nil {
		return
	}
	path, err := w.ctrl.SaveCurrentFrame()
	if err != nil {
		w.report(err)
		return
	}
	w.log.Debug("saved", zap.String("path", path))
	// the directory may have just been created
	w.watchSaveDir()
}

func (w *Window) report(err error) {
	r := reactionFor(err)
	switch r.kind {
	case reactMessage:
		core.MessageDialog(w.body, r.message, r.title)
	case reactError:
		core.ErrorDialog(w.body, err, r.title)
	}
}

func (w *Window) watchSaveDir() {
	if w.watcher == nil || w.ctrl == nil {
		return
	}
	dir := w.ctrl.State().SaveDirectoryPath
	if dir == "" {
		return
	}
	if err := w.watcher.Watch(dir); err != nil {
		w.log.Debug("not watching save directory", zap.String("dir", dir), zap.Error(err))
	}
}

// onSaveDirChanged runs on the watcher goroutine. Bursts of events collapse
// into one refresh, and the watcher never blocks on the UI lock.
func (w *Window) onSaveDirChanged(name string) {
	if !w.refreshing.CompareAndSwap(false, true) {
		return
	}
	go func() {
		select {
		case <-w.done:
			return
		default:
		}
		w.body.AsyncLock()
		w.refreshing.Store(false)
		if w.ctrl != nil {
			w.ctrl.RefreshNextIndex()
		}
		w.body.AsyncUnlock()
	}()
}

func (w *Window) runStats() {
	sampler, err := system.NewStatsSampler()
	if err != nil {
		w.log.Warn("process stats unavailable", zap.Error(err))
		return
	}
	tk := time.NewTicker(time.Second)
	defer tk.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-tk.C:
			st, err := sampler.Sample()
			if err != nil {
				w.log.Debug("failed to sample process stats", zap.Error(err))
				continue
			}
			w.body.AsyncLock()
			w.statsText.SetText(st.String()).UpdateRender()
			w.body.AsyncUnlock()
		}
	}
}

func (w *Window) ShowFrame(img image.Image) {
	if img == nil {
		img = image.NewRGBA(image.Rect(0, 0, 1, 1))
	}
	fit := preview.Fit(img, w.opts.PreviewWidth, w.opts.PreviewHeight)
	size := fit.Bounds().Size()
	w.image.SetImage(fit)
	if size != w.frameSize {
		w.frameSize = size
		w.image.NeedsLayout()
		return
	}
	w.image.NeedsRender()
}

func (w *Window) SetRange(last int) {
	top, pageStep, enabled := sliderRange(last)
	w.slider.SetMax(top)
	w.slider.PageStep = pageStep
	w.slider.SetState(!enabled, states.Disabled)
	if !enabled || w.slider.Value > top {
		w.slider.SetValue(0)
	}
	w.slider.NeedsRender()
}

func (w *Window) SetPosition(index int) {
	w.slider.SetValue(float32(index))
	w.slider.NeedsRender()
}

func (w *Window) SetPlaying(playing bool) {
	if playing {
		w.play.SetIcon(icons.Pause).SetText("Pause")
	} else {
		w.play.SetIcon(icons.PlayArrow).SetText("Play")
	}
	w.play.Update()
}

func (w *Window) ShowInfo(info player.Info) {
	w.frameText.SetText(info.FrameLabel()).UpdateRender()
	w.nextText.SetText(info.NextLabel()).UpdateRender()
	w.videoText.SetText(labelOr("Video: ", info.VideoPath, "no video")).UpdateRender()
	w.dirText.SetText(labelOr("Save folder: ", info.SaveDir, "not selected")).UpdateRender()
	if info.VideoPath != "" && w.videoFile.Filename != info.VideoPath {
		w.videoFile.Filename = info.VideoPath
		w.videoFile.Update()
	}
	if info.SaveDir != "" && w.saveDir.Filename != info.SaveDir {
		w.saveDir.Filename = info.SaveDir
		w.saveDir.Update()
	}
}

func labelOr(prefix, value, empty string) string {
	if value == "" {
		return prefix + empty
	}
	return prefix + value
}
