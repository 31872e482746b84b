package main

import (
	"log"
	"strings"

	"github.com/sendmilter/milter"
	"github.com/sendmilter/milter/envelope"
)

// echoHandler logs the connect, HELO, envelope, header-block, body,
// end-of-message, abort, unknown, quit and close callbacks on its
// connection, adds an X-Milter-Echo header at end of message, and rejects
// a message whose envelope sender's local part contains the substring
// "blocked".
type echoHandler struct {
	milter.NoOpHandler
	headers []string
}

func (h *echoHandler) OnConnect(c *milter.Connection, hostname string, family milter.AddressFamily, port uint16, address string) milter.Reply {
	log.Printf("[%d] CONNECT host=%q family=%v port=%d addr=%q", c.ID(), hostname, family, port, address)
	return milter.Ready(milter.ReplyContinue)
}

func (h *echoHandler) OnHelo(c *milter.Connection, helo string) milter.Reply {
	log.Printf("[%d] HELO %q", c.ID(), helo)
	return milter.Ready(milter.ReplyContinue)
}

func (h *echoHandler) OnMailFrom(c *milter.Connection, args []string) milter.Reply {
	log.Printf("[%d] MAIL FROM %v", c.ID(), args)
	from := envelope.NewMailFrom(args)
	if strings.Contains(from.Local(), "blocked") {
		msg, err := milter.ReplyCode(550, "5.7.1 Sender blocked")
		if err != nil {
			log.Printf("[%d] ReplyCode: %v", c.ID(), err)
			return milter.Ready(milter.ReplyTempFail)
		}
		return milter.Ready(msg)
	}
	return milter.Ready(milter.ReplyContinue)
}

func (h *echoHandler) OnRcptTo(c *milter.Connection, args []string) milter.Reply {
	log.Printf("[%d] RCPT TO %v", c.ID(), args)
	return milter.Ready(milter.ReplyContinue)
}

func (h *echoHandler) OnHeader(c *milter.Connection, name, value string) milter.Reply {
	h.headers = append(h.headers, name+": "+value)
	return milter.Ready(milter.ReplyContinue)
}

func (h *echoHandler) OnEOH(c *milter.Connection) milter.Reply {
	log.Printf("[%d] EOH, %d header(s) seen", c.ID(), len(h.headers))
	return milter.Ready(milter.ReplyContinue)
}

func (h *echoHandler) OnBody(c *milter.Connection, chunk []byte) milter.Reply {
	log.Printf("[%d] BODY chunk size=%d", c.ID(), len(chunk))
	return milter.Ready(milter.ReplyContinue)
}

func (h *echoHandler) OnEOM(c *milter.Connection) milter.Reply {
	log.Printf("[%d] EOM", c.ID())
	if err := c.AddHeader("X-Milter-Echo", "seen"); err != nil {
		log.Printf("[%d] AddHeader: %v", c.ID(), err)
	}
	h.headers = h.headers[:0]
	return milter.Ready(milter.ReplyAccept)
}

func (h *echoHandler) OnAbort(c *milter.Connection) {
	log.Printf("[%d] ABORT", c.ID())
	h.headers = h.headers[:0]
}

func (h *echoHandler) OnUnknown(c *milter.Connection, data string) milter.Reply {
	log.Printf("[%d] UNKNOWN %q", c.ID(), data)
	return milter.Ready(milter.ReplyContinue)
}

func (h *echoHandler) OnQuit(c *milter.Connection) milter.Reply {
	log.Printf("[%d] QUIT", c.ID())
	return milter.NoReply{}
}

func (h *echoHandler) OnClose(c *milter.Connection) {
	log.Printf("[%d] close", c.ID())
}

var _ milter.Handler = (*echoHandler)(nil)
