package ledger

import "strings"

// Key is a keyboard command understood by the editor.
type Key int

const (
	KeyNone Key = iota
	KeyUp
	KeyDown
	KeyDelete
	KeyDuplicate
	KeySave
	KeyUndo
	KeyRedo
)

func (k Key) String() string {
	switch k {
	case KeyUp:
		return "up"
	case KeyDown:
		return "down"
	case KeyDelete:
		return "delete"
	case KeyDuplicate:
		return "duplicate"
	case KeySave:
		return "save"
	case KeyUndo:
		return "undo"
	case KeyRedo:
		return "redo"
	}
	return "none"
}

// Chord is a raw key press. Ctrl and Meta are interchangeable so Cmd works on macOS.
type Chord struct {
	Key   string
	Ctrl  bool
	Meta  bool
	Shift bool
}

// Resolve maps a chord onto an editor command, or KeyNone.
func (c Chord) Resolve() Key {
	name := strings.ToLower(strings.TrimSpace(c.Key))
	mod := c.Ctrl || c.Meta
	if !mod {
		switch name {
		case "up", "arrowup":
			return KeyUp
		case "down", "arrowdown":
			return KeyDown
		case "delete", "backspace":
			return KeyDelete
		}
		return KeyNone
	}
	switch name {
	case "d":
		return KeyDuplicate
	case "s":
		return KeySave
	case "z":
		if c.Shift {
			return KeyRedo
		}
		return KeyUndo
	case "y":
		return KeyRedo
	}
	return KeyNone
}
