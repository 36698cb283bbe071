// Package normalize canonicalizes raw command text so that pattern matching
// cannot be defeated by encoding tricks: Unicode compatibility forms,
// zero-width characters, ANSI-C quoting, backslash escapes, and redundant
// whitespace all collapse to a single canonical spelling.
//
// Matching layers operate on the canonical string; execution always uses the
// original string so that intended quoting survives.
package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	ansiCQuoteRe  = regexp.MustCompile(`\$'([^']*)'`)
	hexEscapeRe   = regexp.MustCompile(`\\x([0-9a-fA-F]{2})`)
	uni4EscapeRe  = regexp.MustCompile(`\\u([0-9a-fA-F]{4})`)
	uni8EscapeRe  = regexp.MustCompile(`\\U([0-9a-fA-F]{8})`)
	octalEscapeRe = regexp.MustCompile(`\\([0-7]{1,3})`)
	lineContRe    = regexp.MustCompile(`\\\r?\n`)
	escNonSpaceRe = regexp.MustCompile(`\\+([^\s\\])`)
	escSpaceRe    = regexp.MustCompile(`\\+\s+`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
)

// Command returns the canonical form of a raw command string. It never fails;
// any fragment that cannot be decoded is kept as-is. Command is idempotent.
func Command(command string) string {
	s := norm.NFKC.String(command)
	s = stripZeroWidth(s)
	s = decodeANSICQuotes(s)
	s = decodeEscapes(s)
	s = lineContRe.ReplaceAllString(s, "")
	s = escNonSpaceRe.ReplaceAllString(s, "$1")
	s = escSpaceRe.ReplaceAllString(s, " ")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Zero-width and direction-mark code points that hide content from display
// while surviving into execution.
func isZeroWidth(r rune) bool {
	switch r {
	case '\u200b', // ZERO WIDTH SPACE
		'\u200c', // ZERO WIDTH NON-JOINER
		'\u200d', // ZERO WIDTH JOINER
		'\u200e', // LEFT-TO-RIGHT MARK
		'\u200f', // RIGHT-TO-LEFT MARK
		'\ufeff', // ZERO WIDTH NO-BREAK SPACE
		'\u2060', // WORD JOINER
		'\u180e': // MONGOLIAN VOWEL SEPARATOR
		return true
	}
	return false
}

func stripZeroWidth(s string) string {
	return strings.Map(func(r rune) rune {
		if isZeroWidth(r) {
			return -1
		}
		return r
	}, s)
}

// decodeANSICQuotes replaces $'...' segments with their decoded payload.
func decodeANSICQuotes(s string) string {
	return ansiCQuoteRe.ReplaceAllStringFunc(s, func(m string) string {
		payload := m[2 : len(m)-1]
		return decodeANSICPayload(payload)
	})
}

// decodeANSICPayload applies ANSI-C escape semantics to the body of a $'...'
// segment. Unknown escapes are kept verbatim.
func decodeANSICPayload(payload string) string {
	var b strings.Builder
	for i := 0; i < len(payload); {
		c := payload[i]
		if c != '\\' || i+1 >= len(payload) {
			b.WriteByte(c)
			i++
			continue
		}

		esc := payload[i+1]
		switch esc {
		case 'n':
			b.WriteByte('\n')
			i += 2
		case 't':
			b.WriteByte('\t')
			i += 2
		case 'r':
			b.WriteByte('\r')
			i += 2
		case 'a':
			b.WriteByte('\a')
			i += 2
		case 'b':
			b.WriteByte('\b')
			i += 2
		case 'f':
			b.WriteByte('\f')
			i += 2
		case 'v':
			b.WriteByte('\v')
			i += 2
		case 'e', 'E':
			b.WriteByte(0x1b)
			i += 2
		case '\\', '\'', '"':
			b.WriteByte(esc)
			i += 2
		case 'x':
			r, n := decodeHexRun(payload[i+2:], 2)
			if n == 0 {
				b.WriteByte(c)
				i++
				continue
			}
			b.WriteRune(r)
			i += 2 + n
		case 'u':
			r, n := decodeHexRun(payload[i+2:], 4)
			if n == 0 {
				b.WriteByte(c)
				i++
				continue
			}
			b.WriteRune(r)
			i += 2 + n
		case 'U':
			r, n := decodeHexRun(payload[i+2:], 8)
			if n == 0 {
				b.WriteByte(c)
				i++
				continue
			}
			b.WriteRune(r)
			i += 2 + n
		case '0', '1', '2', '3', '4', '5', '6', '7':
			r, n := decodeOctalRun(payload[i+1:])
			if n == 0 {
				b.WriteByte(c)
				i++
				continue
			}
			b.WriteRune(r)
			i += 1 + n
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}

// decodeHexRun decodes up to maxDigits hex digits from the front of s.
// The second return is the number of digits consumed; zero means no valid
// digits were found and the caller keeps the original text.
func decodeHexRun(s string, maxDigits int) (rune, int) {
	n := 0
	for n < len(s) && n < maxDigits && isHexDigit(s[n]) {
		n++
	}
	if n == 0 {
		return 0, 0
	}
	v, err := strconv.ParseUint(s[:n], 16, 32)
	if err != nil || v > 0x10FFFF {
		return 0, 0
	}
	return rune(v), n
}

func decodeOctalRun(s string) (rune, int) {
	n := 0
	for n < len(s) && n < 3 && s[n] >= '0' && s[n] <= '7' {
		n++
	}
	if n == 0 {
		return 0, 0
	}
	v, err := strconv.ParseUint(s[:n], 8, 32)
	if err != nil {
		return 0, 0
	}
	return rune(v), n
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// decodeEscapes resolves bare hex/unicode/octal backslash escapes that appear
// outside $'...' quoting. Invalid sequences are left untouched.
func decodeEscapes(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}

	hexDecode := func(re *regexp.Regexp) {
		s = re.ReplaceAllStringFunc(s, func(m string) string {
			v, err := strconv.ParseUint(m[2:], 16, 32)
			if err != nil || v > 0x10FFFF {
				return m
			}
			return string(rune(v))
		})
	}

	hexDecode(hexEscapeRe)
	hexDecode(uni4EscapeRe)
	hexDecode(uni8EscapeRe)
	s = octalEscapeRe.ReplaceAllStringFunc(s, func(m string) string {
		v, err := strconv.ParseUint(m[1:], 8, 32)
		if err != nil {
			return m
		}
		return string(rune(v))
	})
	return s
}
