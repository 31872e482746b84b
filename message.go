package milter

import "reflect"

// Attrs holds the command-specific attributes of a [Message]. Well-known
// keys and their value types are fixed per command by the payload encoder
// and decoder tables in codec.go. Values are one of string, []byte, byte,
// uint32, uint16, [AddressFamily], or []string.
type Attrs map[string]any

// Message is an immutable (command, attributes) pair: one unit of the
// milter wire protocol.
//
// Two Messages are equal iff their commands match and the sets of
// (key, value) attribute pairs match; attribute key order never matters.
type Message struct {
	Cmd   Command
	Attrs Attrs
}

// NewMessage constructs a Message for cmd with the given attrs. It fails
// with an [InvalidCommandError] if cmd is not in the command catalog. A nil
// attrs is normalized to an empty map.
func NewMessage(cmd Command, attrs Attrs) (*Message, error) {
	if !isValidCommand(cmd) {
		return nil, &InvalidCommandError{Name: cmd.String()}
	}
	if attrs == nil {
		attrs = Attrs{}
	}
	return &Message{Cmd: cmd, Attrs: attrs}, nil
}

// mustMessage is like NewMessage but panics on error. It is only used
// internally for commands known statically to be valid, such as the
// singleton replies.
func mustMessage(cmd Command, attrs Attrs) *Message {
	m, err := NewMessage(cmd, attrs)
	if err != nil {
		panic(err)
	}
	return m
}

// Equal reports whether m and other have the same command and the same set
// of attribute key/value pairs, regardless of map iteration order.
func (m *Message) Equal(other *Message) bool {
	if m == nil || other == nil {
		return m == other
	}
	if m.Cmd != other.Cmd {
		return false
	}
	if len(m.Attrs) != len(other.Attrs) {
		return false
	}
	for k, v := range m.Attrs {
		ov, ok := other.Attrs[k]
		if !ok || !reflect.DeepEqual(v, ov) {
			return false
		}
	}
	return true
}

// Singleton reply messages. Messages are immutable, so these may be shared
// freely across connections.
var (
	ReplyAccept   = mustMessage(CmdAccept, nil)
	ReplyContinue = mustMessage(CmdContinue, nil)
	ReplyDiscard  = mustMessage(CmdDiscard, nil)
	ReplyReject   = mustMessage(CmdReject, nil)
	ReplySkip     = mustMessage(CmdSkip, nil)
	ReplyTempFail = mustMessage(CmdTempFail, nil)
	ReplyConnFail = mustMessage(CmdConnFail, nil)
	ReplyShutdown = mustMessage(CmdShutdown, nil)
)
