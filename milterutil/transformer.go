package milterutil

import (
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/transform"
)

const (
	cr = '\r'
	lf = '\n'
)

// LineBreakTransformer is a [transform.Transformer] that rewrites every
// line break in its input to the To string. LF, CR, and CR LF each count
// as one break, so mixed and already-normalized input both come out
// uniform. An empty To deletes breaks outright.
type LineBreakTransformer struct {
	To    string
	sawCR bool
}

func (t *LineBreakTransformer) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		c := src[nSrc]
		if c == lf && t.sawCR {
			// second half of a CR LF pair, already rewritten
			t.sawCR = false
			nSrc++
			continue
		}
		t.sawCR = false
		if c == cr || c == lf {
			if c == cr {
				if nSrc == len(src)-1 && !atEOF {
					// an LF may follow in the next chunk
					err = transform.ErrShortSrc
					return
				}
				t.sawCR = true
			}
			if nDst+len(t.To) > len(dst) {
				err = transform.ErrShortDst
				return
			}
			nDst += copy(dst[nDst:], t.To)
			nSrc++
			continue
		}
		if nDst >= len(dst) {
			err = transform.ErrShortDst
			return
		}
		dst[nDst] = c
		nDst++
		nSrc++
	}
	return
}

func (t *LineBreakTransformer) Reset() { t.sawCR = false }

var _ transform.Transformer = (*LineBreakTransformer)(nil)

// PercentEscapeTransformer is a [transform.Transformer] that doubles every
// "%" in its input, so sendmail-family MTAs never mistake one for a format
// directive in a reply string.
type PercentEscapeTransformer struct {
	transform.NopResetter
}

func (PercentEscapeTransformer) Transform(dst, src []byte, _ bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		c := src[nSrc]
		width := 1
		if c == '%' {
			width = 2
		}
		if nDst+width > len(dst) {
			err = transform.ErrShortDst
			return
		}
		dst[nDst] = c
		if width == 2 {
			dst[nDst+1] = c
		}
		nDst += width
		nSrc++
	}
	return
}

var _ transform.Transformer = (PercentEscapeTransformer{})

// DefaultReplyLineLength is the line length [LineWrapTransformer] wraps at
// when Limit is left at zero. SMTP theoretically allows lines up to 1000
// bytes, but some MTAs insert their own hard breaks well below that, so
// this package defaults conservatively to 950.
const DefaultReplyLineLength = 950

var errWrapLimitTooSmall = errors.New("milter: wrap limit must be at least 4")

// LineWrapTransformer is a [transform.Transformer] that inserts CR LF
// breaks so that no line in its output exceeds Limit bytes. Breaks already
// present in the input reset the count but are otherwise passed through
// untouched.
//
// It is UTF-8 safe: before writing the first byte of a rune it checks that
// the whole rune still fits on the current line, and wraps first if not,
// so a multi-byte rune is never split across a break.
type LineWrapTransformer struct {
	Limit uint
	col   uint
}

func (t *LineWrapTransformer) Transform(dst, src []byte, _ bool) (nDst, nSrc int, err error) {
	limit := t.Limit
	if limit == 0 {
		limit = DefaultReplyLineLength
	}
	if limit < utf8.UTFMax {
		return 0, 0, errWrapLimitTooSmall
	}

	for nSrc < len(src) {
		c := src[nSrc]
		if c != cr && c != lf && utf8.RuneStart(c) && t.col+runeLen(c) > limit {
			if nDst+2 > len(dst) {
				err = transform.ErrShortDst
				return
			}
			dst[nDst] = cr
			dst[nDst+1] = lf
			nDst += 2
			t.col = 0
		}
		if nDst >= len(dst) {
			err = transform.ErrShortDst
			return
		}
		dst[nDst] = c
		nDst++
		nSrc++
		if c == cr || c == lf {
			t.col = 0
		} else {
			t.col++
		}
	}
	return
}

func (t *LineWrapTransformer) Reset() { t.col = 0 }

// runeLen returns the encoded width of the UTF-8 rune whose leading byte
// is b.
func runeLen(b byte) uint {
	switch {
	case b < 0x80:
		return 1
	case b < 0xE0:
		return 2
	case b < 0xF0:
		return 3
	default:
		return 4
	}
}

var _ transform.Transformer = (*LineWrapTransformer)(nil)

// ToLF rewrites every line break in s to a lone LF and every NUL byte to a
// space.
//
// postfix wants header values with LF-only line endings; feeding it CR LF
// produces doubled CR sequences.
func ToLF(s string) string {
	out, _, _ := transform.String(&LineBreakTransformer{To: "\n"}, scrubNul(s))
	return out
}

// SingleLine collapses every line break and NUL byte in s to a space.
//
// sendmail rejects quarantine reasons and envelope addresses that contain
// a raw newline.
func SingleLine(s string) string {
	out, _, _ := transform.String(&LineBreakTransformer{To: " "}, scrubNul(s))
	return out
}

// scrubNul replaces NUL bytes, which would terminate a milter wire string
// early, with spaces.
func scrubNul(s string) string {
	return strings.ReplaceAll(s, "\x00", " ")
}
