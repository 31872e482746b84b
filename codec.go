package milter

import (
	"bytes"
	"encoding/binary"
	"iter"
)

// maxFrameLength is a defensive upper bound on the length field of a single
// frame. The milter wire protocol itself allows up to 2^32-1, but MTAs in
// practice never send frames anywhere near that size; rejecting absurd
// lengths early avoids trying to buffer gigabytes of attacker-controlled
// data before the frame turns out to be garbage.
const maxFrameLength = 256 * 1024 * 1024

// --- primitive encoders -----------------------------------------------

func encodeStr(s string) []byte {
	b := make([]byte, 0, len(s)+1)
	b = append(b, s...)
	return append(b, 0)
}

func encodeU32(n uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, n)
	return b
}

func encodeU16(n uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, n)
	return b
}

func encode3Chars(op, s string) ([]byte, error) {
	if len(s) != 3 {
		return nil, codecErrorf(op, "expected a 3 byte value, got %d bytes", len(s))
	}
	return []byte(s), nil
}

func encodeStrs(op string, ss []string) ([]byte, error) {
	if len(ss) == 0 {
		return nil, codecErrorf(op, "expected at least one string, got none")
	}
	var buf bytes.Buffer
	for _, s := range ss {
		buf.Write(encodeStr(s))
	}
	return buf.Bytes(), nil
}

// --- primitive decoders -------------------------------------------------

// readCString splits b at the first NUL byte, returning the string before it
// and the remainder after it.
func readCString(op string, b []byte) (s string, rest []byte, err error) {
	idx := bytes.IndexByte(b, 0)
	if idx < 0 {
		return "", nil, codecErrorf(op, "missing NUL terminator")
	}
	return string(b[:idx]), b[idx+1:], nil
}

// readAllCStrings reads every NUL-terminated string in b, requiring b to be
// fully consumed by terminators. Unlike a naive split, empty strings between
// two terminators are preserved, so an empty header value does not silently
// shift later fields.
func readAllCStrings(op string, b []byte) ([]string, error) {
	var out []string
	for len(b) > 0 {
		s, rest, err := readCString(op, b)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
		b = rest
	}
	return out, nil
}

func readU32(op string, b []byte) (uint32, []byte, error) {
	if len(b) < 4 {
		return 0, nil, codecErrorf(op, "need 4 bytes for a u32, got %d", len(b))
	}
	return binary.BigEndian.Uint32(b), b[4:], nil
}

func readU16(op string, b []byte) (uint16, []byte, error) {
	if len(b) < 2 {
		return 0, nil, codecErrorf(op, "need 2 bytes for a u16, got %d", len(b))
	}
	return binary.BigEndian.Uint16(b), b[2:], nil
}

// --- attribute helpers ---------------------------------------------------

func attrString(op string, attrs Attrs, key string) (string, error) {
	v, ok := attrs[key].(string)
	if !ok {
		return "", codecErrorf(op, "attribute %q: expected a string", key)
	}
	return v, nil
}

func attrBytes(op string, attrs Attrs, key string) ([]byte, error) {
	v, ok := attrs[key].([]byte)
	if !ok {
		return nil, codecErrorf(op, "attribute %q: expected a byte buffer", key)
	}
	return v, nil
}

func attrUint32(op string, attrs Attrs, key string) (uint32, error) {
	v, ok := attrs[key].(uint32)
	if !ok {
		return 0, codecErrorf(op, "attribute %q: expected a uint32", key)
	}
	return v, nil
}

func attrUint16(op string, attrs Attrs, key string) (uint16, error) {
	v, ok := attrs[key].(uint16)
	if !ok {
		return 0, codecErrorf(op, "attribute %q: expected a uint16", key)
	}
	return v, nil
}

func attrFamily(op string, attrs Attrs, key string) (AddressFamily, error) {
	v, ok := attrs[key].(AddressFamily)
	if !ok {
		return 0, codecErrorf(op, "attribute %q: expected an address family", key)
	}
	return v, nil
}

func attrStrings(op string, attrs Attrs, key string) ([]string, error) {
	v, ok := attrs[key].([]string)
	if !ok {
		return nil, codecErrorf(op, "attribute %q: expected a string list", key)
	}
	return v, nil
}

// --- per-command payload codecs ------------------------------------------

type payloadEncoder func(attrs Attrs) ([]byte, error)
type payloadDecoder func(payload []byte) (Attrs, error)

func emptyEncoder(Attrs) ([]byte, error) { return nil, nil }
func emptyDecoder([]byte) (Attrs, error) { return Attrs{}, nil }

var payloadEncoders = map[Command]payloadEncoder{
	CmdAbort:             emptyEncoder,
	CmdBodyEOB:           emptyEncoder,
	CmdEOH:               emptyEncoder,
	CmdData:              emptyEncoder,
	CmdQuit:              emptyEncoder,
	CmdQuitNewConnection: emptyEncoder,
	CmdUnknown:           emptyEncoder,

	CmdAccept:   emptyEncoder,
	CmdContinue: emptyEncoder,
	CmdDiscard:  emptyEncoder,
	CmdConnFail: emptyEncoder,
	CmdProgress: emptyEncoder,
	CmdReject:   emptyEncoder,
	CmdSkip:     emptyEncoder,
	CmdTempFail: emptyEncoder,
	CmdShutdown: emptyEncoder,

	CmdBody: func(a Attrs) ([]byte, error) {
		return attrBytes("SMFIC_BODY", a, "buf")
	},
	CmdReplBody: func(a Attrs) ([]byte, error) {
		return attrBytes("SMFIR_REPLBODY", a, "buf")
	},
	CmdConnect: func(a Attrs) ([]byte, error) {
		const op = "SMFIC_CONNECT"
		hostname, err := attrString(op, a, "hostname")
		if err != nil {
			return nil, err
		}
		family, err := attrFamily(op, a, "family")
		if err != nil {
			return nil, err
		}
		port, err := attrUint16(op, a, "port")
		if err != nil {
			return nil, err
		}
		address, err := attrString(op, a, "address")
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		buf.Write(encodeStr(hostname))
		buf.WriteByte(byte(family))
		buf.Write(encodeU16(port))
		buf.Write(encodeStr(address))
		return buf.Bytes(), nil
	},
	CmdMacro: func(Attrs) ([]byte, error) {
		// Only the MTA originates SMFIC_MACRO frames, and the pairing of a
		// macro set with the MTA command it describes is not modeled here,
		// so there is nothing for a filter to encode.
		return nil, codecErrorf("SMFIC_MACRO", "encoding SMFIC_MACRO is not implemented")
	},
	CmdHelo: func(a Attrs) ([]byte, error) {
		helo, err := attrString("SMFIC_HELO", a, "helo")
		if err != nil {
			return nil, err
		}
		return encodeStr(helo), nil
	},
	CmdHeader: func(a Attrs) ([]byte, error) {
		const op = "SMFIC_HEADER"
		name, err := attrString(op, a, "name")
		if err != nil {
			return nil, err
		}
		value, err := attrString(op, a, "value")
		if err != nil {
			return nil, err
		}
		return append(encodeStr(name), encodeStr(value)...), nil
	},
	CmdMail: func(a Attrs) ([]byte, error) {
		args, err := attrStrings("SMFIC_MAIL", a, "args")
		if err != nil {
			return nil, err
		}
		return encodeStrs("SMFIC_MAIL", args)
	},
	CmdRcpt: func(a Attrs) ([]byte, error) {
		args, err := attrStrings("SMFIC_RCPT", a, "args")
		if err != nil {
			return nil, err
		}
		return encodeStrs("SMFIC_RCPT", args)
	},
	CmdOptNeg: func(a Attrs) ([]byte, error) {
		const op = "SMFIC_OPTNEG"
		version, err := attrUint32(op, a, "version")
		if err != nil {
			return nil, err
		}
		actions, err := attrUint32(op, a, "actions")
		if err != nil {
			return nil, err
		}
		protocol, err := attrUint32(op, a, "protocol")
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		buf.Write(encodeU32(version))
		buf.Write(encodeU32(actions))
		buf.Write(encodeU32(protocol))
		return buf.Bytes(), nil
	},
	CmdAddRcpt: func(a Attrs) ([]byte, error) {
		rcpt, err := attrString("SMFIR_ADDRCPT", a, "rcpt")
		if err != nil {
			return nil, err
		}
		return encodeStr(rcpt), nil
	},
	CmdDelRcpt: func(a Attrs) ([]byte, error) {
		rcpt, err := attrString("SMFIR_DELRCPT", a, "rcpt")
		if err != nil {
			return nil, err
		}
		return encodeStr(rcpt), nil
	},
	CmdAddRcptPar: func(a Attrs) ([]byte, error) {
		const op = "SMFIR_ADDRCPT_PAR"
		rcpt, err := attrString(op, a, "rcpt")
		if err != nil {
			return nil, err
		}
		esmtpArg, err := attrString(op, a, "esmtp_arg")
		if err != nil {
			return nil, err
		}
		return append(encodeStr(rcpt), encodeStr(esmtpArg)...), nil
	},
	CmdChgFrom: func(a Attrs) ([]byte, error) {
		const op = "SMFIR_CHGFROM"
		from, err := attrString(op, a, "from")
		if err != nil {
			return nil, err
		}
		esmtpArg, err := attrString(op, a, "esmtp_arg")
		if err != nil {
			return nil, err
		}
		return append(encodeStr(from), encodeStr(esmtpArg)...), nil
	},
	CmdAddHeader: func(a Attrs) ([]byte, error) {
		const op = "SMFIR_ADDHEADER"
		name, err := attrString(op, a, "name")
		if err != nil {
			return nil, err
		}
		value, err := attrString(op, a, "value")
		if err != nil {
			return nil, err
		}
		return append(encodeStr(name), encodeStr(value)...), nil
	},
	CmdChgHeader: func(a Attrs) ([]byte, error) {
		const op = "SMFIR_CHGHEADER"
		index, err := attrUint32(op, a, "index")
		if err != nil {
			return nil, err
		}
		name, err := attrString(op, a, "name")
		if err != nil {
			return nil, err
		}
		value, err := attrString(op, a, "value")
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		buf.Write(encodeU32(index))
		buf.Write(encodeStr(name))
		buf.Write(encodeStr(value))
		return buf.Bytes(), nil
	},
	CmdQuarantine: func(a Attrs) ([]byte, error) {
		reason, err := attrString("SMFIR_QUARANTINE", a, "reason")
		if err != nil {
			return nil, err
		}
		return encodeStr(reason), nil
	},
	CmdReplyCode: func(a Attrs) ([]byte, error) {
		const op = "SMFIR_REPLYCODE"
		smtpCode, err := attrString(op, a, "smtpcode")
		if err != nil {
			return nil, err
		}
		code, err := encode3Chars(op, smtpCode)
		if err != nil {
			return nil, err
		}
		text, err := attrString(op, a, "text")
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		buf.Write(code)
		buf.WriteByte(' ')
		buf.Write(encodeStr(text))
		return buf.Bytes(), nil
	},
}

var payloadDecoders = map[Command]payloadDecoder{
	CmdAbort:             emptyDecoder,
	CmdBodyEOB:           emptyDecoder,
	CmdEOH:               emptyDecoder,
	CmdData:              emptyDecoder,
	CmdQuit:              emptyDecoder,
	CmdQuitNewConnection: emptyDecoder,
	CmdUnknown:           emptyDecoder,

	CmdAccept:   emptyDecoder,
	CmdContinue: emptyDecoder,
	CmdDiscard:  emptyDecoder,
	CmdConnFail: emptyDecoder,
	CmdProgress: emptyDecoder,
	CmdReject:   emptyDecoder,
	CmdSkip:     emptyDecoder,
	CmdTempFail: emptyDecoder,
	CmdShutdown: emptyDecoder,

	CmdBody: func(p []byte) (Attrs, error) {
		return Attrs{"buf": p}, nil
	},
	CmdReplBody: func(p []byte) (Attrs, error) {
		return Attrs{"buf": p}, nil
	},
	CmdConnect: func(p []byte) (Attrs, error) {
		const op = "SMFIC_CONNECT"
		hostname, rest, err := readCString(op, p)
		if err != nil {
			return nil, err
		}
		if len(rest) < 1 {
			return nil, codecErrorf(op, "missing address family")
		}
		family := AddressFamilyByTag(rest[0])
		rest = rest[1:]
		port, rest, err := readU16(op, rest)
		if err != nil {
			return nil, err
		}
		address, _, err := readCString(op, rest)
		if err != nil {
			return nil, err
		}
		return Attrs{
			"hostname": hostname,
			"family":   family,
			"port":     port,
			"address":  address,
		}, nil
	},
	CmdMacro: func(p []byte) (Attrs, error) {
		const op = "SMFIC_MACRO"
		if len(p) < 1 {
			return nil, codecErrorf(op, "missing macro command code")
		}
		cmdcode := p[0]
		nameval, err := readAllCStrings(op, p[1:])
		if err != nil {
			return nil, err
		}
		return Attrs{"cmdcode": cmdcode, "nameval": nameval}, nil
	},
	CmdHelo: func(p []byte) (Attrs, error) {
		helo, _, err := readCString("SMFIC_HELO", p)
		if err != nil {
			return nil, err
		}
		return Attrs{"helo": helo}, nil
	},
	CmdHeader: func(p []byte) (Attrs, error) {
		const op = "SMFIC_HEADER"
		args, err := readAllCStrings(op, p)
		if err != nil {
			return nil, err
		}
		if len(args) != 2 {
			return nil, codecErrorf(op, "expected name and value, got %d fields", len(args))
		}
		return Attrs{"name": args[0], "value": args[1]}, nil
	},
	CmdMail: func(p []byte) (Attrs, error) {
		const op = "SMFIC_MAIL"
		args, err := readAllCStrings(op, p)
		if err != nil {
			return nil, err
		}
		if len(args) == 0 {
			return nil, codecErrorf(op, "expected at least one argument, got none")
		}
		return Attrs{"args": args}, nil
	},
	CmdRcpt: func(p []byte) (Attrs, error) {
		const op = "SMFIC_RCPT"
		args, err := readAllCStrings(op, p)
		if err != nil {
			return nil, err
		}
		if len(args) == 0 {
			return nil, codecErrorf(op, "expected at least one argument, got none")
		}
		return Attrs{"args": args}, nil
	},
	CmdOptNeg: func(p []byte) (Attrs, error) {
		const op = "SMFIC_OPTNEG"
		version, rest, err := readU32(op, p)
		if err != nil {
			return nil, err
		}
		actions, rest, err := readU32(op, rest)
		if err != nil {
			return nil, err
		}
		protocol, _, err := readU32(op, rest)
		if err != nil {
			return nil, err
		}
		return Attrs{"version": version, "actions": actions, "protocol": protocol}, nil
	},
	CmdAddRcpt: func(p []byte) (Attrs, error) {
		rcpt, _, err := readCString("SMFIR_ADDRCPT", p)
		if err != nil {
			return nil, err
		}
		return Attrs{"rcpt": rcpt}, nil
	},
	CmdDelRcpt: func(p []byte) (Attrs, error) {
		rcpt, _, err := readCString("SMFIR_DELRCPT", p)
		if err != nil {
			return nil, err
		}
		return Attrs{"rcpt": rcpt}, nil
	},
	CmdAddRcptPar: func(p []byte) (Attrs, error) {
		const op = "SMFIR_ADDRCPT_PAR"
		args, err := readAllCStrings(op, p)
		if err != nil {
			return nil, err
		}
		if len(args) != 2 {
			return nil, codecErrorf(op, "expected rcpt and esmtp_arg, got %d fields", len(args))
		}
		return Attrs{"rcpt": args[0], "esmtp_arg": args[1]}, nil
	},
	CmdChgFrom: func(p []byte) (Attrs, error) {
		const op = "SMFIR_CHGFROM"
		args, err := readAllCStrings(op, p)
		if err != nil {
			return nil, err
		}
		if len(args) != 2 {
			return nil, codecErrorf(op, "expected from and esmtp_arg, got %d fields", len(args))
		}
		return Attrs{"from": args[0], "esmtp_arg": args[1]}, nil
	},
	CmdAddHeader: func(p []byte) (Attrs, error) {
		const op = "SMFIR_ADDHEADER"
		args, err := readAllCStrings(op, p)
		if err != nil {
			return nil, err
		}
		if len(args) != 2 {
			return nil, codecErrorf(op, "expected name and value, got %d fields", len(args))
		}
		return Attrs{"name": args[0], "value": args[1]}, nil
	},
	CmdChgHeader: func(p []byte) (Attrs, error) {
		const op = "SMFIR_CHGHEADER"
		index, rest, err := readU32(op, p)
		if err != nil {
			return nil, err
		}
		args, err := readAllCStrings(op, rest)
		if err != nil {
			return nil, err
		}
		if len(args) != 2 {
			return nil, codecErrorf(op, "expected name and value, got %d fields", len(args))
		}
		return Attrs{"index": index, "name": args[0], "value": args[1]}, nil
	},
	CmdQuarantine: func(p []byte) (Attrs, error) {
		const op = "SMFIR_QUARANTINE"
		args, err := readAllCStrings(op, p)
		if err != nil {
			return nil, err
		}
		if len(args) != 1 {
			return nil, codecErrorf(op, "expected exactly one reason string, got %d", len(args))
		}
		return Attrs{"reason": args[0]}, nil
	},
	CmdReplyCode: func(p []byte) (Attrs, error) {
		const op = "SMFIR_REPLYCODE"
		if len(p) < 4 {
			return nil, codecErrorf(op, "need at least 4 bytes, got %d", len(p))
		}
		smtpCode := string(p[:3])
		if p[3] != ' ' {
			return nil, codecErrorf(op, "expected a space after the SMTP code")
		}
		text, _, err := readCString(op, p[4:])
		if err != nil {
			return nil, err
		}
		return Attrs{"smtpcode": smtpCode, "text": text}, nil
	},
}

// Encoder serializes Messages into milter wire frames. Encoder holds no
// state: encoding the same Message always produces the same bytes, and a
// single Encoder value may be shared across goroutines and connections.
type Encoder struct{}

// Encode serializes msg into a complete wire frame:
//
//	uint32-BE length | uint8 tag | (length-1) bytes of payload
//
// It fails with a [CodecError] if msg.Cmd has no wire tag, or if the
// command-specific payload cannot be built from msg.Attrs.
func (Encoder) Encode(msg *Message) ([]byte, error) {
	tag, err := nameToTag(msg.Cmd)
	if err != nil {
		return nil, &CodecError{Op: "encode", Err: err}
	}
	build, ok := payloadEncoders[msg.Cmd]
	if !ok {
		return nil, codecErrorf("encode", "no encoder registered for %s", msg.Cmd)
	}
	payload, err := build(msg.Attrs)
	if err != nil {
		return nil, err
	}
	length := uint32(len(payload) + 1)
	out := make([]byte, 0, 4+length)
	out = append(out, encodeU32(length)...)
	out = append(out, tag)
	out = append(out, payload...)
	return out, nil
}

// Decoder incrementally parses a byte stream fed in arbitrary chunks into
// complete Messages. A Decoder holds at most one partial frame at a time; it
// is not safe for concurrent use, and must be driven from a single
// goroutine per connection.
type Decoder struct {
	buf    []byte
	broken error
}

// Feed appends data to the Decoder's internal buffer. Feed never blocks and
// accepts a zero-length slice as a no-op. data is copied; the caller may
// reuse its buffer immediately after Feed returns.
func (d *Decoder) Feed(data []byte) {
	if len(data) == 0 {
		return
	}
	d.buf = append(d.buf, data...)
}

// Drain returns an iterator over every complete frame currently buffered, in
// wire order. Iteration stops, and yields a non-nil error, the moment a
// frame cannot be parsed; per the protocol's error model this is fatal, so
// once Drain has reported an error every subsequent call reports the same
// error without looking at the buffer again. Frames that only become
// complete after a later Feed are returned by the next call to Drain.
func (d *Decoder) Drain() iter.Seq2[*Message, error] {
	return func(yield func(*Message, error) bool) {
		if d.broken != nil {
			yield(nil, d.broken)
			return
		}
		for {
			if len(d.buf) < 4 {
				return
			}
			length := binary.BigEndian.Uint32(d.buf[:4])
			if length == 0 {
				d.broken = codecErrorf("decode", "illegal zero-length frame")
				yield(nil, d.broken)
				return
			}
			if length > maxFrameLength {
				d.broken = codecErrorf("decode", "frame length %d exceeds maximum of %d", length, maxFrameLength)
				yield(nil, d.broken)
				return
			}
			total := 4 + int(length)
			if len(d.buf) < total {
				return
			}
			tag := d.buf[4]
			payload := d.buf[5:total]
			cmd, ok := tagToName(tag)
			if !ok {
				d.broken = codecErrorf("decode", "unknown command tag %q", string(tag))
				yield(nil, d.broken)
				return
			}
			decode, ok := payloadDecoders[cmd]
			if !ok {
				d.broken = codecErrorf("decode", "no decoder registered for %s", cmd)
				yield(nil, d.broken)
				return
			}
			attrs, err := decode(payload)
			if err != nil {
				d.broken = err
				yield(nil, err)
				return
			}
			// Consume the frame only now that it decoded successfully: a
			// frame either emits fully or stays untouched in the buffer.
			d.buf = d.buf[total:]
			if !yield(&Message{Cmd: cmd, Attrs: attrs}, nil) {
				return
			}
		}
	}
}
