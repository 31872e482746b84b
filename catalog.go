// Package milter implements the wire protocol used by MTAs such as Sendmail
// and Postfix to consult external mail filters ("milters") during an SMTP
// transaction.
//
// The package is split into a framing-and-codec layer ([Message], [Encoder],
// [Decoder]) that serializes and parses the length-prefixed, command-tagged
// binary stream, and a connection-scoped dispatch engine ([Connection],
// [Factory]) that routes decoded commands to a user-supplied [Handler] and
// writes the handler's replies back in request order.
package milter

import "fmt"

// Command is a closed enumeration of milter wire protocol commands.
//
// SMFIC_* values are sent from the MTA to the filter. SMFIR_* values are
// sent from the filter back to the MTA.
type Command uint8

const (
	CmdAbort Command = iota // SMFIC_ABORT
	CmdBody                 // SMFIC_BODY
	CmdConnect
	CmdMacro
	CmdBodyEOB
	CmdHelo
	CmdQuitNewConnection // SMFIC_QUIT_NC
	CmdHeader
	CmdMail
	CmdEOH
	CmdOptNeg
	CmdRcpt
	CmdData
	CmdQuit
	CmdUnknown

	CmdAddRcpt // SMFIR_ADDRCPT
	CmdDelRcpt
	CmdAddRcptPar
	CmdAccept
	CmdReplBody
	CmdContinue
	CmdDiscard
	CmdChgFrom
	CmdConnFail
	CmdAddHeader
	CmdChgHeader
	CmdProgress
	CmdQuarantine
	CmdReject
	CmdSkip
	CmdTempFail
	CmdReplyCode
	CmdShutdown

	numCommands
)

type commandInfo struct {
	name string
	tag  byte
}

// catalog is the closed, read-only map from Command to its symbolic name and
// one-byte wire tag. It is built once at package initialization and never
// mutated afterwards.
var catalog = [numCommands]commandInfo{
	CmdAbort:             {"SMFIC_ABORT", 'A'},
	CmdBody:              {"SMFIC_BODY", 'B'},
	CmdConnect:           {"SMFIC_CONNECT", 'C'},
	CmdMacro:             {"SMFIC_MACRO", 'D'},
	CmdBodyEOB:           {"SMFIC_BODYEOB", 'E'},
	CmdHelo:              {"SMFIC_HELO", 'H'},
	CmdQuitNewConnection: {"SMFIC_QUIT_NC", 'K'},
	CmdHeader:            {"SMFIC_HEADER", 'L'},
	CmdMail:              {"SMFIC_MAIL", 'M'},
	CmdEOH:               {"SMFIC_EOH", 'N'},
	CmdOptNeg:            {"SMFIC_OPTNEG", 'O'},
	CmdRcpt:              {"SMFIC_RCPT", 'R'},
	CmdData:              {"SMFIC_DATA", 'T'},
	CmdQuit:              {"SMFIC_QUIT", 'Q'},
	CmdUnknown:           {"SMFIC_UNKNOWN", 'U'},

	CmdAddRcpt:    {"SMFIR_ADDRCPT", '+'},
	CmdDelRcpt:    {"SMFIR_DELRCPT", '-'},
	CmdAddRcptPar: {"SMFIR_ADDRCPT_PAR", '2'},
	CmdAccept:     {"SMFIR_ACCEPT", 'a'},
	CmdReplBody:   {"SMFIR_REPLBODY", 'b'},
	CmdContinue:   {"SMFIR_CONTINUE", 'c'},
	CmdDiscard:    {"SMFIR_DISCARD", 'd'},
	CmdChgFrom:    {"SMFIR_CHGFROM", 'e'},
	CmdConnFail:   {"SMFIR_CONN_FAIL", 'f'},
	CmdAddHeader:  {"SMFIR_ADDHEADER", 'h'},
	CmdChgHeader:  {"SMFIR_CHGHEADER", 'm'},
	CmdProgress:   {"SMFIR_PROGRESS", 'p'},
	CmdQuarantine: {"SMFIR_QUARANTINE", 'q'},
	CmdReject:     {"SMFIR_REJECT", 'r'},
	CmdSkip:       {"SMFIR_SKIP", 's'},
	CmdTempFail:   {"SMFIR_TEMPFAIL", 't'},
	CmdReplyCode:  {"SMFIR_REPLYCODE", 'y'},
	CmdShutdown:   {"SMFIR_SHUTDOWN", '4'},
}

var (
	nameToCommand = func() map[string]Command {
		m := make(map[string]Command, numCommands)
		for cmd, info := range catalog {
			m[info.name] = Command(cmd)
		}
		return m
	}()
	tagToCommand = func() map[byte]Command {
		m := make(map[byte]Command, numCommands)
		for cmd, info := range catalog {
			m[info.tag] = Command(cmd)
		}
		return m
	}()
)

// String returns the symbolic wire name of cmd, e.g. "SMFIC_HELO". It returns
// an empty string for a Command outside the catalog.
func (cmd Command) String() string {
	if cmd >= numCommands {
		return ""
	}
	return catalog[cmd].name
}

// isValidCommand reports whether cmd belongs to the catalog.
func isValidCommand(cmd Command) bool {
	return cmd < numCommands
}

// IsValidName reports whether name is a known command name such as
// "SMFIC_HELO" or "SMFIR_ACCEPT".
func IsValidName(name string) bool {
	_, ok := nameToCommand[name]
	return ok
}

// CommandByName looks up a Command by its symbolic wire name. It fails with
// an [InvalidCommandError] if name is not in the catalog.
func CommandByName(name string) (Command, error) {
	cmd, ok := nameToCommand[name]
	if !ok {
		return 0, &InvalidCommandError{Name: name}
	}
	return cmd, nil
}

// tagToName maps a single wire tag byte to its Command. The second return
// value is false if tag does not correspond to any currently-defined command.
func tagToName(tag byte) (Command, bool) {
	cmd, ok := tagToCommand[tag]
	return cmd, ok
}

// nameToTag returns the one-byte wire tag for cmd. It fails with an
// [InvalidCommandError] if cmd is not in the catalog.
func nameToTag(cmd Command) (byte, error) {
	if !isValidCommand(cmd) {
		return 0, &InvalidCommandError{Name: fmt.Sprintf("Command(%d)", cmd)}
	}
	return catalog[cmd].tag, nil
}

// AddressFamily is the protocol family reported by SMFIC_CONNECT.
type AddressFamily byte

const (
	FamilyUnknown AddressFamily = 'U' // SMFIA_UNKNOWN
	FamilyUnix    AddressFamily = 'L' // SMFIA_UNIX
	FamilyInet    AddressFamily = '4' // SMFIA_INET
	FamilyInet6   AddressFamily = '6' // SMFIA_INET6
)

// String returns the symbolic name of the address family, e.g. "SMFIA_INET".
func (f AddressFamily) String() string {
	switch f {
	case FamilyUnknown:
		return "SMFIA_UNKNOWN"
	case FamilyUnix:
		return "SMFIA_UNIX"
	case FamilyInet:
		return "SMFIA_INET"
	case FamilyInet6:
		return "SMFIA_INET6"
	default:
		return "SMFIA_UNKNOWN"
	}
}

// AddressFamilyByName looks up an AddressFamily by its symbolic name
// ("SMFIA_INET", ...). Lookup never fails: an unrecognized name yields
// [FamilyUnknown].
func AddressFamilyByName(name string) AddressFamily {
	switch name {
	case "SMFIA_UNIX":
		return FamilyUnix
	case "SMFIA_INET":
		return FamilyInet
	case "SMFIA_INET6":
		return FamilyInet6
	default:
		return FamilyUnknown
	}
}

// AddressFamilyByTag looks up an AddressFamily by its one-byte wire tag.
// Lookup never fails: an unrecognized tag yields [FamilyUnknown].
func AddressFamilyByTag(tag byte) AddressFamily {
	switch tag {
	case byte(FamilyUnix), byte(FamilyInet), byte(FamilyInet6):
		return AddressFamily(tag)
	default:
		return FamilyUnknown
	}
}
