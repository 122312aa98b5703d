// Package numbering picks the next free output number for exported frames.
//
// Exported frames are named "<n>.jpg". To resume a dataset without
// overwriting anything, the next number is derived from the files that are
// already in the directory instead of a separate counter.
package numbering

import (
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ImageExtensions are the extensions (lower case, with dot) that take part in
// numbering. Other files in the directory are ignored.
var ImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp"}

func IsImage(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range ImageExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// LargestNumber returns the largest decimal digit run found in the base names
// (extension stripped) of the image files in names. Every run of every name
// counts, so "a12b40.png" contributes 40. Returns 0 when nothing matches.
func LargestNumber(names []string) int {
	maxNum := 0
	for _, name := range names {
		if !IsImage(name) {
			continue
		}
		base := strings.TrimSuffix(name, filepath.Ext(name))
		for _, run := range digitRuns(base) {
			n, err := strconv.Atoi(run)
			if err != nil || n == math.MaxInt {
				// no successor fits in an int; cannot be a real frame number
				continue
			}
			if n > maxNum {
				maxNum = n
			}
		}
	}
	return maxNum
}

// Next returns the number to use for the next exported file: one more than
// LargestNumber, so 1 for an empty listing.
func Next(names []string) int {
	return LargestNumber(names) + 1
}

// ListImages returns the names of the regular image files directly inside
// dir. Symlinks and subdirectories are skipped. A missing directory yields an
// empty list and no error.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if IsImage(entry.Name()) {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// NextInDir is Next over the images in dir. An empty dir path or an
// unreadable directory yields 1.
func NextInDir(dir string) int {
	if strings.TrimSpace(dir) == "" {
		return 1
	}
	names, err := ListImages(dir)
	if err != nil {
		return 1
	}
	return Next(names)
}

func digitRuns(s string) []string {
	var runs []string
	start := -1
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= '0' && c <= '9' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			runs = append(runs, s[start:i])
			start = -1
		}
	}
	if start >= 0 {
		runs = append(runs, s[start:])
	}
	return runs
}
