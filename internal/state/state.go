// Package state persists the small amount of session state that survives
// restarts: the last opened video, the save directory and the next output
// number.
//
// The file is line oriented key=value text:
//
//	# Simple config for Video Dataset Preparation Tool
//	last_video=/videos/clip.mp4
//	save_dir=/datasets/cats
//	next_image=42
package state

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ivlev/framepick/internal/system"
)

const header = "# Simple config for Video Dataset Preparation Tool"

const (
	keyLastVideo = "last_video"
	keySaveDir   = "save_dir"
	keyNextImage = "next_image"
)

type OutputState struct {
	LastVideoPath     string
	SaveDirectoryPath string
	NextOutputIndex   int
}

// Default is the state used when nothing has been persisted yet.
func Default() OutputState {
	return OutputState{NextOutputIndex: 1}
}

// Parse reads a state file. Blank lines, comments, lines without '=' and
// unknown keys are skipped; missing keys keep their Default value, and so does
// a next_image that is not a positive integer.
func Parse(r io.Reader) (OutputState, error) {
	st := Default()

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		val = strings.TrimSpace(val)

		switch key {
		case keyLastVideo:
			st.LastVideoPath = val
		case keySaveDir:
			st.SaveDirectoryPath = val
		case keyNextImage:
			if n, err := strconv.Atoi(val); err == nil && n > 0 {
				st.NextOutputIndex = n
			}
		}
	}
	if err := sc.Err(); err != nil {
		return Default(), err
	}
	return st, nil
}

// WriteTo writes all keys, including empty ones.
func (s OutputState) WriteTo(w io.Writer) (int64, error) {
	n, err := fmt.Fprintf(w, "%s\n%s=%s\n%s=%s\n%s=%d\n",
		header,
		keyLastVideo, s.LastVideoPath,
		keySaveDir, s.SaveDirectoryPath,
		keyNextImage, s.NextOutputIndex,
	)
	return int64(n), err
}

// Store reads and writes OutputState at a fixed path.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string { return s.path }

// Load returns the persisted state. A missing file is not an error and yields
// Default. On any other error Default is returned together with the error.
func (s *Store) Load() (OutputState, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Default(), err
	}
	defer f.Close()
	return Parse(f)
}

// Save rewrites the whole file atomically.
func (s *Store) Save(st OutputState) error {
	var buf bytes.Buffer
	if _, err := st.WriteTo(&buf); err != nil {
		return err
	}
	return system.WriteFileAtomic(filepath.Dir(s.path), filepath.Base(s.path), buf.Bytes())
}
