// Package term strips terminal control sequences from raw SSH output. It is
// shared by the Prompt Detector (§4.1) and the SSH Session (§4.2), which
// both need the same CSI/OSC/lone-ESC stripping rule, grounded on
// original_source/pcng/ssh_client.go's `filter_ansi_sequences` regex.
package term

import "regexp"

// csiOrOSC matches a CSI sequence (ESC [ params final-byte), a two-char ESC
// charset-designation sequence, BEL, and the remaining C0 control bytes
// except tab/newline/carriage-return.
var csiOrOSC = regexp.MustCompile("\x1b\\[[0-9;?]*[a-zA-Z]" +
	"|\x1b[()][AB012]" +
	"|\x1b\\][^\x07\x1b]*(?:\x07|\x1b\\\\)" +
	"|\x07" +
	"|[\x00-\x08\x0b\x0c\x0e-\x1f]")

// lonelyESC matches any ESC byte not already consumed by csiOrOSC (e.g. a
// truncated sequence at a read boundary).
var lonelyESC = regexp.MustCompile("\x1b")

// Strip removes CSI/OSC sequences, stray ESC bytes, and drops carriage
// returns not followed by a newline, per spec.md §4.1/§4.2. It is the
// building block behind both the Prompt Detector's matching and the SSH
// Session's output sanitization.
//
// Strip is idempotent: Strip(Strip(x)) == Strip(x) (spec.md §8, R1), since
// every byte class it removes is also removed by a second pass, and it
// never introduces bytes the pattern set matches.
func Strip(b []byte) []byte {
	out := csiOrOSC.ReplaceAll(b, nil)
	out = lonelyESC.ReplaceAll(out, nil)
	return dropBareCR(out)
}

// dropBareCR removes every carriage return not immediately followed by a
// line feed (devices use a bare CR to overwrite the current terminal line —
// progress spinners, "--More--" prompts — rather than to end it). Each
// byte is examined independently, so runs of consecutive bare CRs collapse
// in a single pass rather than one-per-pass, keeping Strip idempotent.
func dropBareCR(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		if b[i] == '\r' && (i+1 >= len(b) || b[i+1] != '\n') {
			continue
		}
		out = append(out, b[i])
	}
	return out
}

// StripString is the string-typed convenience wrapper over Strip.
func StripString(s string) string {
	return string(Strip([]byte(s)))
}
