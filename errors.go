package milter

import "fmt"

// InvalidCommandError is returned when a [Message] is constructed, or a
// command is looked up, with a name that does not belong to the command
// catalog.
type InvalidCommandError struct {
	Name string
}

func (e *InvalidCommandError) Error() string {
	return fmt.Sprintf("milter: invalid command %q", e.Name)
}

// CodecError is returned by [Encoder] and [Decoder] on malformed or
// insufficient data: an unknown wire tag, a payload too short for its
// schema, a missing string terminator, a numeric pack/unpack failure, an
// empty args list on SMFIC_MAIL/SMFIC_RCPT, or a wrong-length smtpcode.
//
// A CodecError from the Decoder is always fatal for the connection: the
// inbound stream is desynchronized and cannot be recovered.
type CodecError struct {
	Op  string
	Err error
}

func (e *CodecError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("milter: codec error: %v", e.Err)
	}
	return fmt.Sprintf("milter: codec error: %s: %v", e.Op, e.Err)
}

func (e *CodecError) Unwrap() error { return e.Err }

func codecErrorf(op, format string, args ...any) error {
	return &CodecError{Op: op, Err: fmt.Errorf(format, args...)}
}
