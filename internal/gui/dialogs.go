package gui

import (
	"strings"

	"github.com/ivlev/framepick/internal/player"
)

type reactionKind int

const (
	reactNone reactionKind = iota
	reactMessage
	reactError
)

// reaction decides how an operation error is presented to the user.
type reaction struct {
	kind    reactionKind
	title   string
	message string
}

func reactionFor(err error) reaction {
	if err == nil {
		return reaction{kind: reactNone}
	}
	switch player.Code(err) {
	case player.CodeNoFrame:
		return reaction{kind: reactNone}
	case player.CodeNoSaveDirectory:
		return reaction{
			kind:    reactMessage,
			title:   "No save folder",
			message: "Select a folder to save images into first.",
		}
	case player.CodeOpenFailed:
		return reaction{kind: reactError, title: "Could not open video"}
	case player.CodeSaveFailed:
		return reaction{kind: reactError, title: "Could not save image"}
	default:
		return reaction{kind: reactError, title: "There was an error"}
	}
}

// isSaveKey reports whether a key press is the bare S shortcut. Chords with
// command modifiers belong to the toolkit.
func isSaveKey(r rune, chord string) bool {
	if r != 's' && r != 'S' {
		return false
	}
	for _, mod := range []string{"Control", "Meta", "Alt", "Command"} {
		if strings.Contains(chord, mod) {
			return false
		}
	}
	return true
}
