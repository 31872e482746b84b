package milterutil

import (
	"fmt"
	"strings"

	"golang.org/x/text/transform"
)

// MaxResponseSize is the largest SMTP response text this package will
// produce, in bytes: 64 MiB minus the command tag and the string's NUL
// terminator. It is unclear whether every MTA can actually handle a
// response this long.
const MaxResponseSize = 64*1024*1024 - 2

// FormatResponse builds the text of an SMTP response suitable for
// SMFIR_REPLYCODE: smtpCode must be between 100 and 599, and reason is the
// human-readable part, optionally beginning with an RFC 2034 enhanced
// status code and optionally spanning multiple lines.
//
// "\n" in reason is canonicalized to "\r\n", and any literal "%" is escaped
// to "%%" so sendmail-family MTAs do not treat it as a format directive.
// Lines longer than [DefaultReplyLineLength] are wrapped. Every line is
// prefixed with smtpCode, joined by "-" on all but the last line per the
// SMTP continuation rules, and when the first line starts with an enhanced
// status code of smtpCode's class, every continuation line repeats it.
// FormatResponse fails if the formatted text would exceed
// [MaxResponseSize] bytes.
//
// Examples:
//
//	FormatResponse(250, "Accept")                               // "250 Accept"
//	FormatResponse(250, "%")                                    // "250 %%"
//	FormatResponse(550, "5.7.1 Command rejected")                // "550 5.7.1 Command rejected"
//	FormatResponse(550, "5.7.1 Command rejected\nContact support") // "550-5.7.1 Command rejected\r\n550 5.7.1 Contact support"
//
// See https://www.iana.org/assignments/smtp-enhanced-status-codes/smtp-enhanced-status-codes.xhtml
// for the registry of enhanced status codes.
func FormatResponse(smtpCode uint16, reason string) (string, error) {
	if smtpCode < 100 || smtpCode > 599 {
		return "", fmt.Errorf("milter: invalid code %d", smtpCode)
	}
	if len(reason) > MaxResponseSize-4 {
		return "", fmt.Errorf("milter: reason too long: %d > %d", len(reason), MaxResponseSize-4)
	}

	normalize := transform.Chain(
		PercentEscapeTransformer{},
		&LineBreakTransformer{To: "\r\n"},
		&LineWrapTransformer{},
	)
	body, _, _ := transform.String(normalize, strings.TrimRight(reason, "\r\n"))

	lines := strings.Split(body, "\r\n")
	var enhanced string
	if len(lines) > 1 {
		enhanced = enhancedStatusCode(lines[0], smtpCode)
	}

	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteString("\r\n")
		}
		fmt.Fprintf(&b, "%d", smtpCode)
		if i == len(lines)-1 {
			b.WriteByte(' ')
		} else {
			b.WriteByte('-')
		}
		if i > 0 {
			b.WriteString(enhanced)
		}
		b.WriteString(line)
	}
	if b.Len() > MaxResponseSize {
		return "", fmt.Errorf("milter: formatted reason too long: %d > %d", b.Len(), MaxResponseSize)
	}
	return b.String(), nil
}

// enhancedStatusCode returns the RFC 2034 enhanced status code at the
// start of line, trailing space included, or "" when line does not start
// with one or its class digit does not match smtpCode's. The code is
// class "." subject "." detail with the numeric fields one to three
// digits each and no leading zeros.
func enhancedStatusCode(line string, smtpCode uint16) string {
	if len(line) < len("2.0.0 ") {
		return ""
	}
	class := line[0]
	if class != '2' && class != '4' && class != '5' {
		return ""
	}
	if uint16(class-'0') != smtpCode/100 {
		return ""
	}
	i := 1
	for field := 0; field < 2; field++ {
		if i >= len(line) || line[i] != '.' {
			return ""
		}
		i++
		start := i
		for i < len(line) && line[i] >= '0' && line[i] <= '9' {
			i++
		}
		digits := i - start
		if digits < 1 || digits > 3 || (digits > 1 && line[start] == '0') {
			return ""
		}
	}
	if i >= len(line) || line[i] != ' ' {
		return ""
	}
	return line[:i+1]
}
