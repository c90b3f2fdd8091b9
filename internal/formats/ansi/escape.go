package ansi

import "strings"

const esc = 0x1b

type seqKind int

const (
	seqCSI seqKind = iota + 1
	seqOSC
	seqOther
)

// sequence is one escape sequence. final is zero for a CSI sequence cut
// short by a byte outside the CSI grammar or by end of input.
type sequence struct {
	kind   seqKind
	params string
	final  byte
}

// scanEscape parses the sequence starting at s[i], which must be ESC, and
// returns it with the index just past it. The scan never moves backwards,
// so callers always make progress.
func scanEscape(s string, i int) (sequence, int) {
	if i+1 >= len(s) {
		return sequence{kind: seqOther}, i + 1
	}
	switch s[i+1] {
	case '[':
		j := i + 2
		for j < len(s) && s[j] >= 0x30 && s[j] <= 0x3f {
			j++
		}
		seq := sequence{kind: seqCSI, params: s[i+2 : j]}
		for j < len(s) && s[j] >= 0x20 && s[j] <= 0x2f {
			j++
		}
		if j < len(s) && s[j] >= 0x40 && s[j] <= 0x7e {
			seq.final = s[j]
			j++
		}
		return seq, j
	case ']':
		for j := i + 2; j < len(s); j++ {
			if s[j] == 0x07 {
				return sequence{kind: seqOSC, params: s[i+2 : j]}, j + 1
			}
			if s[j] == esc && j+1 < len(s) && s[j+1] == '\\' {
				return sequence{kind: seqOSC, params: s[i+2 : j]}, j + 2
			}
		}
		return sequence{kind: seqOSC, params: s[i+2:]}, len(s)
	}
	if s[i+1] >= 0x80 {
		// Keep a following multi-byte character intact.
		return sequence{kind: seqOther}, i + 1
	}
	return sequence{kind: seqOther}, i + 2
}

// StripEscapes removes every escape sequence from s, leaving the visible
// text. The result contains no ESC bytes.
func StripEscapes(s string) string {
	if strings.IndexByte(s, esc) < 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		if s[i] == esc {
			_, i = scanEscape(s, i)
			continue
		}
		next := strings.IndexByte(s[i:], esc)
		if next < 0 {
			b.WriteString(s[i:])
			break
		}
		b.WriteString(s[i : i+next])
		i += next
	}
	return b.String()
}
