//go:build !gocv

package video

import "errors"

func newOpenCV(Options) (Opener, error) {
	return nil, errors.New("opencv decoder not available: rebuild with -tags gocv")
}
