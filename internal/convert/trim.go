package convert

import (
	"strings"

	"scriptrec/internal/emitter"
)

var (
	typeDelayPrefix = strings.TrimSuffix(emitter.TypeDelay(0), "0")
	enterLine       = emitter.TypeKey("ENTER", "")
	escapeLine      = emitter.TypeKey("ESC", "")
)

// Trim removes the keystrokes that framed the recording: a leading Enter
// (the one that started the recorder) and any trailing Escapes (the one
// that stopped it). Each is removed together with its type delay.
func Trim(lines []string) []string {
	out := lines
	if len(out) >= 2 && strings.HasPrefix(out[0], typeDelayPrefix) && out[1] == enterLine {
		out = out[2:]
	}
	for n := len(out); n >= 2 && strings.HasPrefix(out[n-2], typeDelayPrefix) && out[n-1] == escapeLine; n = len(out) {
		out = out[:n-2]
	}
	return out
}
