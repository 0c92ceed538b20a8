// Package keymap translates recorder key identifiers into script key tokens.
//
// Identifiers are X11 keysym names ("a", "comma", "Return", "Shift_L").
// A token is either a literal character or a named key, optionally with a
// single modifier prefix.
package keymap

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"scriptrec/internal/modifier"
)

var (
	// ErrUnknownKey is returned for identifiers that are neither a single
	// character, a punctuation name, a named key nor a modifier.
	ErrUnknownKey = errors.New("unknown key identifier")

	// ErrUnknownLayout is returned when a keyboard layout is not registered.
	ErrUnknownLayout = errors.New("unknown keyboard layout")
)

// Modifier prefixes in precedence order.
const (
	PrefixAlt   = "Key.ALT"
	PrefixAltGr = "Key.ALTGR"
	PrefixCtrl  = "Key.CTRL"
	PrefixShift = "Key.SHIFT"
	PrefixWin   = "Key.WIN"
	PrefixMeta  = "Key.META"
)

// punctuation maps keysym names of punctuation keys to their character.
var punctuation = map[string]string{
	"comma":        ",",
	"period":       ".",
	"slash":        "/",
	"semicolon":    ";",
	"apostrophe":   "'",
	"backslash":    `\`,
	"bracketleft":  "[",
	"bracketright": "]",
	"grave":        "`",
	"minus":        "-",
	"equal":        "=",
}

// namedKeys maps keysym names to script key constants.
var namedKeys = map[string]string{
	"Return":      "ENTER",
	"Escape":      "ESC",
	"Tab":         "TAB",
	"BackSpace":   "BACKSPACE",
	"Delete":      "DELETE",
	"Insert":      "INSERT",
	"space":       "SPACE",
	"Home":        "HOME",
	"End":         "END",
	"Left":        "LEFT",
	"Right":       "RIGHT",
	"Down":        "DOWN",
	"Up":          "UP",
	"Next":        "PAGE_DOWN",
	"Page_Down":   "PAGE_DOWN",
	"Prior":       "PAGE_UP",
	"Page_Up":     "PAGE_UP",
	"Print":       "PRINTSCREEN",
	"Pause":       "PAUSE",
	"Caps_Lock":   "CAPS_LOCK",
	"Scroll_Lock": "SCROLL_LOCK",
	"Num_Lock":    "NUM_LOCK",
	"KP_Insert":   "NUM0",
	"KP_End":      "NUM1",
	"KP_Down":     "NUM2",
	"KP_Next":     "NUM3",
	"KP_Left":     "NUM4",
	"KP_Begin":    "NUM5",
	"KP_Right":    "NUM6",
	"KP_Home":     "NUM7",
	"KP_Up":       "NUM8",
	"KP_Page_Up":  "NUM9",
	"KP_0":        "NUM0",
	"KP_1":        "NUM1",
	"KP_2":        "NUM2",
	"KP_3":        "NUM3",
	"KP_4":        "NUM4",
	"KP_5":        "NUM5",
	"KP_6":        "NUM6",
	"KP_7":        "NUM7",
	"KP_8":        "NUM8",
	"KP_9":        "NUM9",
	"KP_Delete":   "SEPARATOR",
	"KP_Add":      "ADD",
	"KP_Subtract": "MINUS",
	"KP_Multiply": "MULTIPLY",
	"KP_Divide":   "DIVIDE",
	"KP_Enter":    "ENTER",
}

func init() {
	for i := 1; i <= 15; i++ {
		f := fmt.Sprintf("F%d", i)
		namedKeys[f] = f
	}
}

// Token is the translated form of a key event.
type Token struct {
	// Text is the literal character when Name is empty.
	Text string
	// Name is the script key constant (e.g. "ENTER") for named keys.
	Name string
	// Prefix is the single modifier prefix, if any.
	Prefix string
	// Modifier is set when the key itself is a modifier; such keys produce
	// no output.
	Modifier bool
}

// Named reports whether the token is a named key rather than a character.
func (t Token) Named() bool { return t.Name != "" }

// Translator converts identifiers using a keyboard layout.
type Translator struct {
	layout Layout
}

// NewTranslator returns a Translator for the named layout.
func NewTranslator(layout string) (*Translator, error) {
	l, err := LookupLayout(layout)
	if err != nil {
		return nil, err
	}
	return &Translator{layout: l}, nil
}

// Layout returns the translator's keyboard layout.
func (tr *Translator) Layout() Layout { return tr.layout }

// IsModifier reports whether key is a modifier key.
func IsModifier(key string) bool { return modifier.IsModifier(key) }

// NamedKey returns the script key constant for a keysym name.
func NamedKey(key string) (string, bool) {
	n, ok := namedKeys[key]
	return n, ok
}

// Translate maps key under the modifier snapshot st to a token.
//
// Only the first held modifier in the order Alt, AltGr, Control, Shift,
// Super, Menu contributes a prefix; combinations cannot be expressed.
// Shift over a shiftable character yields the shifted character instead of
// a prefix.
func (tr *Translator) Translate(key string, st modifier.State) (Token, error) {
	if modifier.IsModifier(key) {
		return Token{Modifier: true}, nil
	}

	var tok Token
	if name, ok := namedKeys[key]; ok {
		tok.Name = name
	} else {
		ch := key
		if p, ok := punctuation[key]; ok {
			ch = p
		}
		if utf8.RuneCountInString(ch) != 1 {
			return Token{}, fmt.Errorf("%w: %q", ErrUnknownKey, key)
		}
		tok.Text = ch
	}

	switch {
	case st.LeftAlt:
		tok.Prefix = PrefixAlt
	case st.RightAlt:
		tok.Prefix = PrefixAltGr
	case st.Control():
		tok.Prefix = PrefixCtrl
	case st.Shift():
		if shifted, ok := tr.layout.Shift(tok.Text); ok && !tok.Named() {
			tok.Text = shifted
		} else {
			tok.Prefix = PrefixShift
		}
	case st.Super():
		tok.Prefix = PrefixWin
	case st.ContextMenu:
		tok.Prefix = PrefixMeta
	}
	return tok, nil
}
