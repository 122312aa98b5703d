package video

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// fallbackRate is used to turn frame indexes into seek timestamps when the
// container does not report a rate.
const fallbackRate = 30.0

// FFmpeg opens videos by probing them with ffprobe and decoding with an
// ffmpeg child process that writes raw RGBA frames to a pipe.
type FFmpeg struct {
	ffmpeg  string
	ffprobe string
	log     *zap.Logger
}

func NewFFmpeg(opts Options) *FFmpeg {
	f := &FFmpeg{ffmpeg: opts.FFmpegPath, ffprobe: opts.FFprobePath, log: opts.Logger}
	if f.ffmpeg == "" {
		f.ffmpeg = "ffmpeg"
	}
	if f.ffprobe == "" {
		f.ffprobe = "ffprobe"
	}
	if f.log == nil {
		f.log = zap.NewNop()
	}
	return f
}

func (f *FFmpeg) Open(path string) (Decoder, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	info, err := Probe(context.Background(), f.ffprobe, path)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", path, err)
	}
	f.log.Debug("video probed",
		zap.String("path", path),
		zap.Int("width", info.Width),
		zap.Int("height", info.Height),
		zap.Float64("fps", info.FrameRate),
		zap.Int("frames", info.FrameCount),
	)
	return &ffmpegDecoder{bin: f.ffmpeg, path: path, info: info, log: f.log}, nil
}

type ffmpegDecoder struct {
	bin  string
	path string
	info StreamInfo
	log  *zap.Logger

	// next is the index of the frame the next Read returns.
	next   int
	stream *stream
	eof    bool
}

// stream is one running ffmpeg process decoding from a fixed start frame.
type stream struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	cancel context.CancelFunc
	g      *errgroup.Group
	stderr *tailBuffer
}

func (d *ffmpegDecoder) FrameRate() float64 { return d.info.FrameRate }
func (d *ffmpegDecoder) FrameCount() int    { return d.info.FrameCount }

// Seek drops the running process; the next Read starts a new one at index.
// Seeking to the frame the running process delivers next keeps it.
func (d *ffmpegDecoder) Seek(index int) error {
	if index < 0 {
		index = 0
	}
	if d.stream != nil && !d.eof && index == d.next {
		return nil
	}
	d.stopStream()
	d.next = index
	d.eof = false
	return nil
}

func (d *ffmpegDecoder) Read() (Frame, error) {
	if d.eof {
		return Frame{}, ErrEndOfStream
	}
	if d.stream == nil {
		if err := d.startStream(); err != nil {
			return Frame{}, err
		}
	}

	img := image.NewRGBA(image.Rect(0, 0, d.info.Width, d.info.Height))
	if _, err := io.ReadFull(d.stream.stdout, img.Pix); err != nil {
		tail := d.stopStream()
		d.eof = true
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			d.log.Debug("ffmpeg stream ended",
				zap.String("path", d.path),
				zap.Int("frame", d.next),
				zap.String("stderr", tail),
			)
			return Frame{}, ErrEndOfStream
		}
		return Frame{}, fmt.Errorf("read frame %d: %w", d.next, err)
	}

	fr := Frame{Image: img, Index: d.next}
	d.next++
	return fr, nil
}

func (d *ffmpegDecoder) Close() error {
	d.stopStream()
	d.eof = true
	return nil
}

func (d *ffmpegDecoder) startStream() error {
	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, d.bin, streamArgs(d.path, d.next, d.rate())...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("ffmpeg start: %w", err)
	}

	s := &stream{cmd: cmd, stdout: stdout, cancel: cancel, g: new(errgroup.Group), stderr: newTailBuffer(4096)}
	s.g.Go(func() error {
		_, err := io.Copy(s.stderr, stderr)
		return err
	})
	d.stream = s

	d.log.Debug("ffmpeg stream started", zap.String("path", d.path), zap.Int("frame", d.next))
	return nil
}

// stopStream kills the running process, waits for it and returns the tail of
// its stderr.
func (d *ffmpegDecoder) stopStream() string {
	s := d.stream
	if s == nil {
		return ""
	}
	d.stream = nil

	s.cancel()
	_ = s.g.Wait()
	_ = s.cmd.Wait()
	return s.stderr.String()
}

func (d *ffmpegDecoder) rate() float64 {
	if d.info.FrameRate > 0 {
		return d.info.FrameRate
	}
	return fallbackRate
}

// streamArgs builds the ffmpeg command line that decodes path from frame
// index onwards as raw RGBA on stdout.
//
// The seek target sits half a frame before the wanted frame so that rounding
// in the container timestamps cannot drop it; ffmpeg's accurate seek then
// discards everything earlier.
func streamArgs(path string, index int, fps float64) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin"}
	if index > 0 && fps > 0 {
		ts := (float64(index) - 0.5) / fps
		args = append(args, "-ss", strconv.FormatFloat(ts, 'f', 6, 64))
	}
	// probe dimensions are pre-rotation
	args = append(args,
		"-noautorotate",
		"-i", path,
		"-map", "0:v:0",
		"-an", "-sn",
		"-fps_mode", "passthrough",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"pipe:1",
	)
	return args
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
