package milter

// Handler reacts to the commands of a single milter connection. Every
// method that produces a protocol reply returns a [Reply]; the Connection
// writes that reply back to the MTA in the same order the command arrived
// in, regardless of whether the Reply is immediate or deferred.
//
// Handler implementations do not need to embed anything: embed
// [NoOpHandler] to inherit SMFIR_CONTINUE-by-default behavior for methods
// that are not of interest.
type Handler interface {
	// OnConnect handles SMFIC_CONNECT, reporting the MTA's peer.
	OnConnect(c *Connection, hostname string, family AddressFamily, port uint16, address string) Reply

	// OnHelo handles SMFIC_HELO.
	OnHelo(c *Connection, helo string) Reply

	// OnMailFrom handles SMFIC_MAIL. args[0] is the envelope sender;
	// any further elements are ESMTP MAIL parameters.
	OnMailFrom(c *Connection, args []string) Reply

	// OnRcptTo handles SMFIC_RCPT. args[0] is the envelope recipient;
	// any further elements are ESMTP RCPT parameters.
	OnRcptTo(c *Connection, args []string) Reply

	// OnHeader handles a single SMFIC_HEADER frame.
	OnHeader(c *Connection, name, value string) Reply

	// OnEOH handles SMFIC_EOH, marking the end of the header block.
	OnEOH(c *Connection) Reply

	// OnBody handles one SMFIC_BODY chunk. The MTA may split the message
	// body across any number of chunks of its choosing.
	OnBody(c *Connection, chunk []byte) Reply

	// OnEOM handles SMFIC_BODYEOB, the end of the message. This is where a
	// Handler issues any filter-initiated actions (AddHeader, ChgHeader,
	// AddRcpt, DelRcpt, Quarantine, ...) before returning its final
	// accept/reject/discard decision.
	OnEOM(c *Connection) Reply

	// OnAbort handles SMFIC_ABORT: the current message transaction is
	// cancelled and the connection returns to the HELO/MAIL state. OnAbort
	// itself provokes no wire reply.
	OnAbort(c *Connection)

	// OnData handles SMFIC_DATA, the start of the DATA SMTP command.
	OnData(c *Connection) Reply

	// OnUnknown handles SMFIC_UNKNOWN, an SMTP command the MTA did not
	// recognize.
	OnUnknown(c *Connection, data string) Reply

	// OnMacro handles SMFIC_MACRO, a set of macro name/value pairs
	// associated with the MTA command identified by cmdcode. OnMacro
	// provokes no wire reply.
	OnMacro(c *Connection, cmdcode byte, nameval []string)

	// OnQuit handles SMFIC_QUIT. The MTA closes the channel right after
	// sending it, so the default reply is no reply at all; the connection
	// stops reading as soon as OnQuit returns and closes once OnQuit's reply
	// (if any) has been written.
	OnQuit(c *Connection) Reply

	// OnQuitNewConnection handles SMFIC_QUIT_NC: the MTA is done with the
	// current SMTP connection but keeps the channel open and will start a
	// new connect sequence on it. The milter connection keeps serving.
	OnQuitNewConnection(c *Connection) Reply

	// OnClose is called once, when the connection is shutting down,
	// either because the MTA sent SMFIC_QUIT or because the transport
	// failed. It provokes no wire reply.
	OnClose(c *Connection)
}

// NoOpHandler implements [Handler] by replying [ReplyContinue] to every
// command, except that OnQuit and OnQuitNewConnection return [NoReply] and
// OnAbort, OnMacro and OnClose do nothing. Embed it in a
// Handler implementation to only override the methods actually needed.
type NoOpHandler struct{}

func (NoOpHandler) OnConnect(*Connection, string, AddressFamily, uint16, string) Reply {
	return Ready(ReplyContinue)
}

func (NoOpHandler) OnHelo(*Connection, string) Reply { return Ready(ReplyContinue) }

func (NoOpHandler) OnMailFrom(*Connection, []string) Reply { return Ready(ReplyContinue) }

func (NoOpHandler) OnRcptTo(*Connection, []string) Reply { return Ready(ReplyContinue) }

func (NoOpHandler) OnHeader(*Connection, string, string) Reply { return Ready(ReplyContinue) }

func (NoOpHandler) OnEOH(*Connection) Reply { return Ready(ReplyContinue) }

func (NoOpHandler) OnBody(*Connection, []byte) Reply { return Ready(ReplyContinue) }

func (NoOpHandler) OnEOM(*Connection) Reply { return Ready(ReplyContinue) }

func (NoOpHandler) OnAbort(*Connection) {}

func (NoOpHandler) OnData(*Connection) Reply { return Ready(ReplyContinue) }

func (NoOpHandler) OnUnknown(*Connection, string) Reply { return Ready(ReplyContinue) }

func (NoOpHandler) OnMacro(*Connection, byte, []string) {}

func (NoOpHandler) OnQuit(*Connection) Reply { return NoReply{} }

func (NoOpHandler) OnQuitNewConnection(*Connection) Reply { return NoReply{} }

func (NoOpHandler) OnClose(*Connection) {}

var _ Handler = NoOpHandler{}
