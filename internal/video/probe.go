package video

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// StreamInfo is what the ffmpeg backend needs to know about the first video
// stream before decoding.
type StreamInfo struct {
	Width      int
	Height     int
	FrameRate  float64
	FrameCount int
	Duration   float64
}

type probeOutput struct {
	Streams []struct {
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
		NbFrames     string `json:"nb_frames"`
		Duration     string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe runs ffprobe on path and returns the first video stream's geometry,
// rate and length.
func Probe(ctx context.Context, ffprobe, path string) (StreamInfo, error) {
	cmd := exec.CommandContext(ctx, ffprobe,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate,avg_frame_rate,nb_frames,duration:format=duration",
		"-of", "json",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) && len(ee.Stderr) > 0 {
			return StreamInfo{}, fmt.Errorf("ffprobe: %w: %s", err, strings.TrimSpace(string(ee.Stderr)))
		}
		return StreamInfo{}, fmt.Errorf("ffprobe: %w", err)
	}
	return parseProbe(out)
}

func parseProbe(data []byte) (StreamInfo, error) {
	var po probeOutput
	if err := json.Unmarshal(data, &po); err != nil {
		return StreamInfo{}, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if len(po.Streams) == 0 {
		return StreamInfo{}, errors.New("no video stream")
	}

	s := po.Streams[0]
	if s.Width <= 0 || s.Height <= 0 {
		return StreamInfo{}, fmt.Errorf("invalid frame size %dx%d", s.Width, s.Height)
	}

	info := StreamInfo{Width: s.Width, Height: s.Height}

	// avg_frame_rate is the real cadence; r_frame_rate can be a timebase
	// multiple for variable-rate files
	info.FrameRate = parseRate(s.AvgFrameRate)
	if info.FrameRate <= 0 {
		info.FrameRate = parseRate(s.RFrameRate)
	}

	info.Duration = parseFloat(s.Duration)
	if info.Duration <= 0 {
		info.Duration = parseFloat(po.Format.Duration)
	}

	if n, err := strconv.Atoi(strings.TrimSpace(s.NbFrames)); err == nil && n > 0 {
		info.FrameCount = n
	} else if info.Duration > 0 && info.FrameRate > 0 {
		info.FrameCount = int(math.Round(info.Duration * info.FrameRate))
	}

	return info, nil
}

// parseRate parses "30000/1001" or "25" and returns 0 for anything invalid,
// including "0/0".
func parseRate(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		return parseFloat(num)
	}
	n, d := parseFloat(num), parseFloat(den)
	if d == 0 {
		return 0
	}
	return n / d
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
