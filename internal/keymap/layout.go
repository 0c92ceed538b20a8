package keymap

import (
	"fmt"
	"sort"
	"strings"
)

// Layout maps the base character of a shiftable key to the character the
// same key produces with Shift held.
type Layout struct {
	Name    string
	Shifted map[string]string
}

// DefaultLayout is the layout used when none is configured.
const DefaultLayout = "US"

var layouts = map[string]Layout{
	"US": {
		Name: "US",
		Shifted: map[string]string{
			",": "<", ".": ">", "/": "?", ";": ":", "'": `"`, `\`: "|",
			"[": "{", "]": "}", "`": "~",
			"1": "!", "2": "@", "3": "#", "4": "$", "5": "%",
			"6": "^", "7": "&", "8": "*", "9": "(", "0": ")",
			"-": "_", "=": "+",
		},
	},
}

// LookupLayout returns the layout registered under name (case-insensitive).
func LookupLayout(name string) (Layout, error) {
	if name == "" {
		name = DefaultLayout
	}
	l, ok := layouts[strings.ToUpper(name)]
	if !ok {
		return Layout{}, fmt.Errorf("%w: %s", ErrUnknownLayout, name)
	}
	return l, nil
}

// Layouts returns the names of all registered layouts.
func Layouts() []string {
	names := make([]string, 0, len(layouts))
	for n := range layouts {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Shift returns the shifted form of ch and whether the layout defines one.
func (l Layout) Shift(ch string) (string, bool) {
	s, ok := l.Shifted[ch]
	return s, ok
}
