// Package modifier tracks which keyboard modifiers and mouse buttons are
// currently held during a conversion session.
package modifier

// Key identifiers of the keyboard modifiers, as delivered by the recorder.
const (
	ControlL = "Control_L"
	ControlR = "Control_R"
	ShiftL   = "Shift_L"
	ShiftR   = "Shift_R"
	AltL     = "Alt_L"
	AltR     = "Alt_R"
	SuperL   = "Super_L"
	SuperR   = "Super_R"
	Menu     = "Menu"
)

// Buttons is the number of mouse buttons tracked (1-5).
const Buttons = 5

// State holds one flag per modifier key and per mouse button. The zero value
// has nothing held. A flag is true iff its press has been applied without an
// intervening release.
type State struct {
	LeftControl  bool
	RightControl bool
	LeftShift    bool
	RightShift   bool
	LeftAlt      bool
	RightAlt     bool
	LeftSuper    bool
	RightSuper   bool
	ContextMenu  bool

	buttons [Buttons]bool
}

// IsModifier reports whether key is one of the nine modifier identifiers.
func IsModifier(key string) bool {
	switch key {
	case ControlL, ControlR, ShiftL, ShiftR, AltL, AltR, SuperL, SuperR, Menu:
		return true
	}
	return false
}

// Apply records a press or release of key. It returns true and updates the
// matching flag when key is a modifier; otherwise it returns false and
// leaves the state untouched.
func (s *State) Apply(key string, pressed bool) bool {
	switch key {
	case ControlL:
		s.LeftControl = pressed
	case ControlR:
		s.RightControl = pressed
	case ShiftL:
		s.LeftShift = pressed
	case ShiftR:
		s.RightShift = pressed
	case AltL:
		s.LeftAlt = pressed
	case AltR:
		s.RightAlt = pressed
	case SuperL:
		s.LeftSuper = pressed
	case SuperR:
		s.RightSuper = pressed
	case Menu:
		s.ContextMenu = pressed
	default:
		return false
	}
	return true
}

// SetButton records a press or release of mouse button n. Buttons outside
// 1..5 are ignored.
func (s *State) SetButton(n int, pressed bool) {
	if n < 1 || n > Buttons {
		return
	}
	s.buttons[n-1] = pressed
}

// button reports whether mouse button n is held.
func (s State) button(n int) bool {
	if n < 1 || n > Buttons {
		return false
	}
	return s.buttons[n-1]
}

// Control reports whether either Control key is held.
func (s State) Control() bool { return s.LeftControl || s.RightControl }

// Shift reports whether either Shift key is held.
func (s State) Shift() bool { return s.LeftShift || s.RightShift }

// Super reports whether either OS key is held.
func (s State) Super() bool { return s.LeftSuper || s.RightSuper }

func (s State) held(key string) bool {
	switch key {
	case ControlL:
		return s.LeftControl
	case ControlR:
		return s.RightControl
	case ShiftL:
		return s.LeftShift
	case ShiftR:
		return s.RightShift
	case AltL:
		return s.LeftAlt
	case AltR:
		return s.RightAlt
	case SuperL:
		return s.LeftSuper
	case SuperR:
		return s.RightSuper
	case Menu:
		return s.ContextMenu
	}
	return false
}

// anyHeld reports whether any keyboard modifier is held.
func (s State) anyHeld() bool {
	return s.Control() || s.Shift() || s.LeftAlt || s.RightAlt || s.Super() || s.ContextMenu
}
