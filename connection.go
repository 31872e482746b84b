package milter

import (
	"io"
	"sync"

	"github.com/sendmilter/milter/milterutil"
)

// Connection binds one Decoder/Encoder pair to a transport and a Handler
// for the lifetime of a single MTA connection. Inbound commands are
// dispatched to the Handler strictly in the order they arrive on the wire;
// replies -- whether returned immediately or deferred -- are written back
// to the MTA in that same order, never out of turn.
//
// A Connection must only be driven by [Connection.Serve]; it is not safe
// to call Serve from more than one goroutine for the same Connection.
type Connection struct {
	id        uint64
	factory   *Factory
	transport io.ReadWriteCloser
	handler   Handler
	decoder   Decoder
	encoder   Encoder

	writeMu sync.Mutex

	peerVersion  uint32
	peerActions  OptAction
	peerProtocol OptProtocol

	negotiatedActions  OptAction
	negotiatedProtocol OptProtocol
}

// ID returns the connection's process-wide monotonic identifier.
func (c *Connection) ID() uint64 { return c.id }

// NegotiatedActions returns the action mask agreed on during OPTNEG: the
// bitwise AND of the factory's advertised actions and the peer's. It is
// only meaningful after OPTNEG has completed.
func (c *Connection) NegotiatedActions() OptAction { return c.negotiatedActions }

// NegotiatedProtocol returns the protocol mask agreed on during OPTNEG,
// analogous to [Connection.NegotiatedActions].
func (c *Connection) NegotiatedProtocol() OptProtocol { return c.negotiatedProtocol }

const readBufferSize = 64 * 1024

// Serve reads and decodes commands from the connection's transport,
// dispatches them to the Handler, and writes replies back in request
// order until the transport is closed, the MTA sends SMFIC_QUIT, or a
// decode error occurs. SMFIC_QUIT_NC does not end the connection: the MTA
// keeps the channel open and starts a new connect sequence on it.
//
// A Decoder error is always fatal: Serve stops reading immediately, closes
// the transport, and returns the error for the caller to log or act on. It
// never attempts to resynchronize on the byte stream.
func (c *Connection) Serve() error {
	queue := make(chan (<-chan *Message), 64)
	writerErr := make(chan error, 1)
	go c.runWriter(queue, writerErr)

	serveErr := c.readLoop(queue)
	close(queue)
	if err := <-writerErr; err != nil && serveErr == nil {
		serveErr = err
	}
	closeErr := c.transport.Close()
	if serveErr == nil {
		serveErr = closeErr
	}
	c.handler.OnClose(c)
	return serveErr
}

func (c *Connection) readLoop(queue chan<- (<-chan *Message)) error {
	buf := make([]byte, readBufferSize)
	for {
		n, readErr := c.transport.Read(buf)
		if n > 0 {
			c.decoder.Feed(buf[:n])
			for msg, err := range c.decoder.Drain() {
				if err != nil {
					return err
				}
				if done := c.dispatchOne(msg, queue); done {
					return nil
				}
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				return nil
			}
			return readErr
		}
	}
}

// dispatchOne dispatches a single decoded Message and enqueues its reply,
// if any, onto the writer's ordering queue. It reports whether the
// connection should stop reading any further commands.
func (c *Connection) dispatchOne(msg *Message, queue chan<- (<-chan *Message)) (quit bool) {
	reply := c.dispatch(msg)
	switch r := reply.(type) {
	case NoReply:
		// no wire reply
	case ReadyReply:
		ready := make(chan *Message, 1)
		ready <- r.Message
		queue <- ready
	case PendingReply:
		queue <- r.Done
	}
	// SMFIC_QUIT_NC keeps the channel open: the MTA starts a new connect
	// sequence on it. Only SMFIC_QUIT ends the connection.
	return msg.Cmd == CmdQuit
}

// runWriter drains the ordering queue and writes each reply to the
// transport in the order its command was dispatched, even when a later
// command's reply became ready first. It stops at the first write error
// or once queue is closed.
func (c *Connection) runWriter(queue <-chan (<-chan *Message), done chan<- error) {
	for ch := range queue {
		msg := <-ch
		if msg == nil {
			msg = ReplyContinue
		}
		if err := c.writeDirect(msg); err != nil {
			done <- err
			for range queue {
			}
			return
		}
	}
	done <- nil
}

// writeDirect encodes msg and writes it to the transport immediately,
// under the same lock used by the reply writer so that filter-initiated
// actions never interleave mid-frame with queued replies.
func (c *Connection) writeDirect(msg *Message) error {
	data, err := c.encoder.Encode(msg)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err = c.transport.Write(data)
	return err
}

// dispatch routes a decoded Message to the appropriate Handler method,
// or handles it internally when it is, like OPTNEG, mandatory protocol
// bookkeeping rather than user-overridable behavior.
func (c *Connection) dispatch(msg *Message) Reply {
	switch msg.Cmd {
	case CmdOptNeg:
		return c.negotiate(msg)
	case CmdConnect:
		hostname, _ := msg.Attrs["hostname"].(string)
		family, _ := msg.Attrs["family"].(AddressFamily)
		port, _ := msg.Attrs["port"].(uint16)
		address, _ := msg.Attrs["address"].(string)
		return c.handler.OnConnect(c, hostname, family, port, address)
	case CmdHelo:
		helo, _ := msg.Attrs["helo"].(string)
		return c.handler.OnHelo(c, helo)
	case CmdMail:
		args, _ := msg.Attrs["args"].([]string)
		return c.handler.OnMailFrom(c, args)
	case CmdRcpt:
		args, _ := msg.Attrs["args"].([]string)
		return c.handler.OnRcptTo(c, args)
	case CmdHeader:
		name, _ := msg.Attrs["name"].(string)
		value, _ := msg.Attrs["value"].(string)
		return c.handler.OnHeader(c, name, value)
	case CmdEOH:
		return c.handler.OnEOH(c)
	case CmdBody:
		chunk, _ := msg.Attrs["buf"].([]byte)
		return c.handler.OnBody(c, chunk)
	case CmdBodyEOB:
		return c.handler.OnEOM(c)
	case CmdData:
		return c.handler.OnData(c)
	case CmdAbort:
		c.handler.OnAbort(c)
		return NoReply{}
	case CmdUnknown:
		data, _ := msg.Attrs["data"].(string)
		return c.handler.OnUnknown(c, data)
	case CmdMacro:
		cmdcode, _ := msg.Attrs["cmdcode"].(byte)
		nameval, _ := msg.Attrs["nameval"].([]string)
		c.handler.OnMacro(c, cmdcode, nameval)
		return NoReply{}
	case CmdQuit:
		return c.handler.OnQuit(c)
	case CmdQuitNewConnection:
		return c.handler.OnQuitNewConnection(c)
	default:
		// A well-framed command with no dedicated Handler method is not an
		// error: it goes to OnUnknown.
		LogWarning("connection %d: no dispatch route for %s, passing to OnUnknown", c.id, msg.Cmd)
		data, _ := msg.Attrs["data"].(string)
		return c.handler.OnUnknown(c, data)
	}
}

// negotiate implements the mandatory OPTNEG handshake: it records the
// peer's advertised masks and replies with their bitwise AND against this
// filter's own advertised masks, so the filter never claims a capability
// the MTA does not itself offer.
func (c *Connection) negotiate(msg *Message) Reply {
	peerVersion, _ := msg.Attrs["version"].(uint32)
	peerActions, _ := msg.Attrs["actions"].(uint32)
	peerProtocol, _ := msg.Attrs["protocol"].(uint32)

	c.peerVersion = peerVersion
	c.peerActions = OptAction(peerActions)
	c.peerProtocol = OptProtocol(peerProtocol)
	c.negotiatedActions = c.factory.Actions & c.peerActions
	c.negotiatedProtocol = c.factory.Protocol & c.peerProtocol

	reply := mustMessage(CmdOptNeg, Attrs{
		"version":  ProtocolVersion,
		"actions":  uint32(c.negotiatedActions),
		"protocol": uint32(c.negotiatedProtocol),
	})
	return Ready(reply)
}

// --- filter-initiated actions --------------------------------------------
//
// These construct the corresponding SMFIR_* Message and write it directly
// to the transport, bypassing the reply-ordering queue: they are
// unsolicited, not a reply to any particular inbound command.

// AddHeader appends a new header to the message under construction. value
// is normalized to LF-only line endings; postfix mishandles CR LF there.
func (c *Connection) AddHeader(name, value string) error {
	return c.writeDirect(mustMessage(CmdAddHeader, Attrs{"name": name, "value": milterutil.ToLF(value)}))
}

// ChgHeader replaces (or, if index is one past the last occurrence,
// appends) the index'th occurrence of a header. value is normalized the
// same way as in [Connection.AddHeader].
func (c *Connection) ChgHeader(index uint32, name, value string) error {
	return c.writeDirect(mustMessage(CmdChgHeader, Attrs{"index": index, "name": name, "value": milterutil.ToLF(value)}))
}

// AddRcpt adds a recipient to the envelope. Line breaks in rcpt are
// collapsed to spaces; an envelope address cannot span lines.
func (c *Connection) AddRcpt(rcpt string) error {
	return c.writeDirect(mustMessage(CmdAddRcpt, Attrs{"rcpt": milterutil.SingleLine(rcpt)}))
}

// DelRcpt removes a recipient from the envelope.
func (c *Connection) DelRcpt(rcpt string) error {
	return c.writeDirect(mustMessage(CmdDelRcpt, Attrs{"rcpt": milterutil.SingleLine(rcpt)}))
}

// Quarantine holds the message in the MTA's quarantine queue with reason
// as the stated cause. Line breaks in reason are collapsed to spaces;
// sendmail rejects a reason containing a raw newline.
func (c *Connection) Quarantine(reason string) error {
	return c.writeDirect(mustMessage(CmdQuarantine, Attrs{"reason": milterutil.SingleLine(reason)}))
}
