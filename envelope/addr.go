// Package envelope parses the address arguments carried by SMFIC_MAIL and
// SMFIC_RCPT into IDNA aware address values.
package envelope

import (
	"strings"

	"golang.org/x/net/idna"
)

// IDNAProfile is the [*idna.Profile] this package uses to parse and
// generate the ASCII representation of domain names.
//
// This defaults to [idna.Lookup] but you can use any [*idna.Profile] you
// like.
var IDNAProfile = idna.Lookup

// split an user@domain address into user and domain.
// Includes the input address as third array element to quickly check if splitting must be re-done
func split(addr string) []string {
	at := strings.LastIndex(addr, "@")
	if at < 0 {
		return []string{addr, "", addr}
	}

	return []string{addr[:at], addr[at+1:], addr}
}

type addr struct {
	Addr          string
	Args          []string
	parts         []string
	asciiDomain   string
	unicodeDomain string
}

func (a *addr) initParts() {
	if len(a.parts) != 3 || a.parts[2] != a.Addr {
		a.parts = split(a.Addr)
		a.asciiDomain = ""
		a.unicodeDomain = ""
	}
}

// Local returns the part of an email in front of the @ symbol.
// If the address does not include an @ the whole address get returned.
func (a *addr) Local() string {
	a.initParts()
	return a.parts[0]
}

// Domain returns the part of an email after the @ symbol. It is returned as-is without any validation.
// If the address does not include an @ an empty string gets returned.
func (a *addr) Domain() string {
	a.initParts()
	return a.parts[1]
}

// AsciiDomain returns Domain interpreted and converted as the ASCII representation.
// If Domain cannot be converted (e.g. invalid UTF-8 data), the unchanged Domain value gets returned.
func (a *addr) AsciiDomain() string {
	domain := a.Domain()
	if domain == "" {
		return ""
	}
	if a.asciiDomain != "" {
		return a.asciiDomain
	}

	asciiDomain, err := IDNAProfile.ToASCII(domain)
	if err != nil {
		a.asciiDomain = domain
		return domain
	}
	a.asciiDomain = asciiDomain
	return asciiDomain
}

// UnicodeDomain returns Domain interpreted and converted as the UTF-8 representation.
// If Domain cannot be converted (e.g. invalid UTF-8 data), the unchanged Domain value gets returned.
func (a *addr) UnicodeDomain() string {
	domain := a.Domain()
	if domain == "" {
		return ""
	}
	if a.unicodeDomain != "" {
		return a.unicodeDomain
	}

	unicodeDomain, err := IDNAProfile.ToUnicode(domain)
	if err != nil {
		a.unicodeDomain = domain
		return domain
	}
	a.unicodeDomain = unicodeDomain
	return unicodeDomain
}

// MailFrom is the envelope sender address carried by SMFIC_MAIL: args[0]
// is the address itself, and any further elements are ESMTP MAIL
// parameters (e.g. "SIZE=1024", "BODY=8BITMIME") exactly as the MTA sent
// them.
type MailFrom struct {
	addr
}

// NewMailFrom builds a MailFrom from the args attribute of an SMFIC_MAIL
// Message. It panics if args is empty; the decoder never produces an empty
// args list for SMFIC_MAIL.
func NewMailFrom(args []string) MailFrom {
	return MailFrom{addr: addr{Addr: args[0], Args: args[1:]}}
}

// Copy returns an independent copy of m.
func (m *MailFrom) Copy() *MailFrom {
	if m == nil {
		return nil
	}
	return &MailFrom{addr: addr{Addr: m.Addr, Args: append([]string(nil), m.Args...)}}
}

// RcptTo is one envelope recipient carried by SMFIC_RCPT, structured the
// same way as [MailFrom].
type RcptTo struct {
	addr
}

// NewRcptTo builds a RcptTo from the args attribute of an SMFIC_RCPT
// Message. It panics if args is empty; the decoder never produces an empty
// args list for SMFIC_RCPT.
func NewRcptTo(args []string) RcptTo {
	return RcptTo{addr: addr{Addr: args[0], Args: args[1:]}}
}

// Copy returns an independent copy of r.
func (r *RcptTo) Copy() *RcptTo {
	if r == nil {
		return nil
	}
	return &RcptTo{addr: addr{Addr: r.Addr, Args: append([]string(nil), r.Args...)}}
}
