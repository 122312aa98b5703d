package player

import (
	"errors"
	"fmt"
)

const (
	// CodeOpenFailed means the decoder could not open the video.
	CodeOpenFailed = "open_failed"
	// CodeNoFrame means a save was requested before any frame was decoded.
	CodeNoFrame = "save_no_frame"
	// CodeNoSaveDirectory means a save was requested with no directory set.
	CodeNoSaveDirectory = "save_no_directory"
	// CodeSaveFailed means encoding or writing the image failed.
	CodeSaveFailed = "save_encode_failed"
)

// Error is a controller failure with a code the UI maps to a reaction.
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case CodeOpenFailed:
		return fmt.Sprintf("failed to open video %q: %v", e.Path, e.Err)
	case CodeNoFrame:
		return "no frame to save"
	case CodeNoSaveDirectory:
		return "no save directory selected"
	case CodeSaveFailed:
		return fmt.Sprintf("could not save image %q: %v", e.Path, e.Err)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code extracts the error code from err, or "" if err is not an *Error.
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
