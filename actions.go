package milter

import (
	"bytes"
	"fmt"

	"github.com/sendmilter/milter/milterutil"
)

// ReplyCode builds an SMFIR_REPLYCODE Message carrying a formatted SMTP
// response, suitable for returning from a Handler method via [Ready].
// smtpCode and reason are formatted through [milterutil.FormatResponse],
// so reason may start with an RFC 2034 enhanced status code and may span
// multiple lines.
func ReplyCode(smtpCode uint16, reason string) (*Message, error) {
	formatted, err := milterutil.FormatResponse(smtpCode, reason)
	if err != nil {
		return nil, err
	}
	// FormatResponse prefixes every line with the code; the encoder emits
	// the smtpcode attribute and its separator itself, so the first line's
	// prefix must come off here or the code would appear twice on the wire.
	return NewMessage(CmdReplyCode, Attrs{
		"smtpcode": fmt.Sprintf("%d", smtpCode),
		"text":     formatted[4:],
	})
}

// ReplaceBody replaces the message body with content, splitting it into as
// many SMFIR_REPLBODY frames as needed so that no single frame exceeds
// chunkSize. Frames are written directly, in order, bypassing the reply
// queue: like the other filter-initiated actions, body replacement is
// unsolicited with respect to any single inbound command.
func (c *Connection) ReplaceBody(content []byte, chunkSize DataSize) error {
	scanner := milterutil.GetFixedBufferScanner(uint32(chunkSize), bytes.NewReader(content))
	defer scanner.Close()
	for scanner.Scan() {
		msg := mustMessage(CmdReplBody, Attrs{"buf": append([]byte(nil), scanner.Bytes()...)})
		if err := c.writeDirect(msg); err != nil {
			return err
		}
	}
	return scanner.Err()
}
