package toolcall

import (
	"fmt"
	"strconv"
	"strings"
)

// RepairUnicodeEscapes rewrites `\u{XXXX}` code-point escapes, which are not
// valid JSON, into the character they name. Characters that JSON requires to
// be escaped are written back as `\uXXXX`. Malformed escapes are left alone.
func RepairUnicodeEscapes(s string) string {
	if !strings.Contains(s, `\u{`) {
		return s
	}

	var sb strings.Builder
	sb.Grow(len(s))
	for {
		i := strings.Index(s, `\u{`)
		if i < 0 {
			sb.WriteString(s)
			return sb.String()
		}
		// An odd run of backslashes before it escapes the backslash itself.
		if precedingBackslashes(s[:i])%2 == 1 {
			sb.WriteString(s[:i+3])
			s = s[i+3:]
			continue
		}

		j := strings.IndexByte(s[i+3:], '}')
		if j < 1 || j > 6 {
			sb.WriteString(s[:i+3])
			s = s[i+3:]
			continue
		}
		hex := s[i+3 : i+3+j]
		cp, err := strconv.ParseUint(hex, 16, 32)
		if err != nil || cp > 0x10FFFF || (cp >= 0xD800 && cp <= 0xDFFF) {
			sb.WriteString(s[:i+3])
			s = s[i+3:]
			continue
		}

		sb.WriteString(s[:i])
		r := rune(cp)
		switch {
		case r < 0x20 || r == '"' || r == '\\':
			fmt.Fprintf(&sb, `\u%04x`, r)
		default:
			sb.WriteRune(r)
		}
		s = s[i+3+j+1:]
	}
}

func precedingBackslashes(s string) int {
	n := 0
	for k := len(s) - 1; k >= 0 && s[k] == '\\'; k-- {
		n++
	}
	return n
}
