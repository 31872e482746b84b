package envelope

import (
	"strings"

	"github.com/emersion/go-message/mail"
)

// helperKey is an arbitrary header field name used only to borrow
// [mail.Header]'s RFC 5322 address-list parser/formatter for a value that
// did not come from a parsed header field, such as the raw value of an
// SMFIC_HEADER From/To/Cc frame.
const helperKey = "Helper"

func newHelper(value string) *mail.Header {
	h := mail.HeaderFromMap(map[string][]string{helperKey: {value}})
	return &h
}

// ParseAddressList parses value (the raw value of a header such as From,
// To, or Cc) into a list of addresses.
func ParseAddressList(value string) ([]*mail.Address, error) {
	return newHelper(value).AddressList(helperKey)
}

// FormatAddressList formats addrs back into a single header value, joining
// multiple addresses onto folded continuation lines.
func FormatAddressList(addrs []*mail.Address) string {
	formatted := make([]string, len(addrs))
	for i, a := range addrs {
		formatted[i] = a.String()
	}
	return strings.Join(formatted, ",\r\n ")
}
