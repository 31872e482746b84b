package milter

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"
)

func hexBytes(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(strings.ReplaceAll(strings.ReplaceAll(s, " ", ""), "\n", ""))
	if err != nil {
		t.Fatalf("bad hex fixture: %v", err)
	}
	return b
}

func TestEncoder_SeedScenarios(t *testing.T) {
	tests := []struct {
		name string
		msg  *Message
		want string
	}{
		{
			"abort",
			mustMessage(CmdAbort, nil),
			"00 00 00 01 41",
		},
		{
			"body",
			mustMessage(CmdBody, Attrs{"buf": []byte("mybody")}),
			"00 00 00 07 42 6D 79 62 6F 64 79",
		},
		{
			"connect",
			mustMessage(CmdConnect, Attrs{
				"hostname": "example.com",
				"family":   FamilyInet,
				"port":     uint16(1234),
				"address":  "127.0.0.1",
			}),
			"00 00 00 1A 43 65 78 61 6D 70 6C 65 2E 63 6F 6D 00 34 04 D2 31 32 37 2E 30 2E 30 2E 31 00",
		},
		{
			"header",
			mustMessage(CmdHeader, Attrs{"name": "to", "value": "me"}),
			"00 00 00 07 4C 74 6F 00 6D 65 00",
		},
		{
			"chgheader",
			mustMessage(CmdChgHeader, Attrs{"index": uint32(1), "name": "to", "value": "test@example.com"}),
			"00 00 00 19 6D 00 00 00 01 74 6F 00 74 65 73 74 40 65 78 61 6D 70 6C 65 2E 63 6F 6D 00",
		},
		{
			"optneg",
			mustMessage(CmdOptNeg, Attrs{"version": uint32(1), "actions": uint32(2), "protocol": uint32(3)}),
			"00 00 00 0D 4F 00 00 00 01 00 00 00 02 00 00 00 03",
		},
	}
	var enc Encoder
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := enc.Encode(tt.msg)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			want := hexBytes(t, tt.want)
			if !bytes.Equal(got, want) {
				t.Errorf("Encode() = % X, want % X", got, want)
			}
		})
	}
}

func seedMessages(t *testing.T) []*Message {
	t.Helper()
	return []*Message{
		mustMessage(CmdAbort, nil),
		mustMessage(CmdBody, Attrs{"buf": []byte("mybody")}),
		mustMessage(CmdConnect, Attrs{
			"hostname": "example.com",
			"family":   FamilyInet,
			"port":     uint16(1234),
			"address":  "127.0.0.1",
		}),
		mustMessage(CmdHeader, Attrs{"name": "to", "value": "me"}),
		mustMessage(CmdChgHeader, Attrs{"index": uint32(1), "name": "to", "value": "test@example.com"}),
		mustMessage(CmdOptNeg, Attrs{"version": uint32(1), "actions": uint32(2), "protocol": uint32(3)}),
	}
}

func drainAll(t *testing.T, d *Decoder) []*Message {
	t.Helper()
	var got []*Message
	for msg, err := range d.Drain() {
		if err != nil {
			t.Fatalf("Drain() error = %v", err)
		}
		got = append(got, msg)
	}
	return got
}

func TestDecoder_SeedScenarios(t *testing.T) {
	var enc Encoder
	msgs := seedMessages(t)
	var stream []byte
	for _, m := range msgs {
		b, err := enc.Encode(m)
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		stream = append(stream, b...)
	}

	var d Decoder
	d.Feed(stream)
	got := drainAll(t, &d)
	if len(got) != len(msgs) {
		t.Fatalf("Drain() produced %d messages, want %d", len(got), len(msgs))
	}
	for i, m := range got {
		if !m.Equal(msgs[i]) {
			t.Errorf("message %d = %+v, want %+v", i, m, msgs[i])
		}
	}
}

// TestDecoder_ChunkBoundaryIndependence implements seed scenario 7: feeding
// the same concatenated stream one byte at a time, so that it is split at
// every byte boundary, must yield the exact same sequence of messages.
func TestDecoder_ChunkBoundaryIndependence(t *testing.T) {
	var enc Encoder
	msgs := seedMessages(t)
	var stream []byte
	for _, m := range msgs {
		b, err := enc.Encode(m)
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		stream = append(stream, b...)
	}

	var d Decoder
	var got []*Message
	for i := 0; i < len(stream); i += 1 {
		end := i + 1
		if end > len(stream) {
			end = len(stream)
		}
		d.Feed(stream[i:end])
		for msg, err := range d.Drain() {
			if err != nil {
				t.Fatalf("Drain() error = %v", err)
			}
			got = append(got, msg)
		}
	}
	if len(got) != len(msgs) {
		t.Fatalf("got %d messages, want %d", len(got), len(msgs))
	}
	for i, m := range got {
		if !m.Equal(msgs[i]) {
			t.Errorf("message %d = %+v, want %+v", i, m, msgs[i])
		}
	}
}

func TestEncoder_Deterministic(t *testing.T) {
	var enc Encoder
	msg := mustMessage(CmdHeader, Attrs{"name": "Subject", "value": "hi"})
	a, err := enc.Encode(msg)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	b, err := enc.Encode(msg)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Errorf("Encode() not deterministic: % X != % X", a, b)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []*Message{
		mustMessage(CmdAbort, nil),
		mustMessage(CmdBodyEOB, nil),
		mustMessage(CmdEOH, nil),
		mustMessage(CmdData, nil),
		mustMessage(CmdQuit, nil),
		mustMessage(CmdQuitNewConnection, nil),
		mustMessage(CmdUnknown, nil),
		mustMessage(CmdAccept, nil),
		mustMessage(CmdContinue, nil),
		mustMessage(CmdDiscard, nil),
		mustMessage(CmdConnFail, nil),
		mustMessage(CmdProgress, nil),
		mustMessage(CmdReject, nil),
		mustMessage(CmdSkip, nil),
		mustMessage(CmdTempFail, nil),
		mustMessage(CmdShutdown, nil),
		mustMessage(CmdHelo, Attrs{"helo": "mail.example.com"}),
		mustMessage(CmdMail, Attrs{"args": []string{"<a@b.com>", "SIZE=100"}}),
		mustMessage(CmdRcpt, Attrs{"args": []string{"<c@d.com>"}}),
		mustMessage(CmdReplBody, Attrs{"buf": []byte("chunk")}),
		mustMessage(CmdAddRcpt, Attrs{"rcpt": "<e@f.com>"}),
		mustMessage(CmdDelRcpt, Attrs{"rcpt": "<e@f.com>"}),
		mustMessage(CmdAddRcptPar, Attrs{"rcpt": "<e@f.com>", "esmtp_arg": "NOTIFY=NEVER"}),
		mustMessage(CmdChgFrom, Attrs{"from": "<g@h.com>", "esmtp_arg": ""}),
		mustMessage(CmdAddHeader, Attrs{"name": "X-Foo", "value": "bar"}),
		mustMessage(CmdQuarantine, Attrs{"reason": "spam"}),
		mustMessage(CmdReplyCode, Attrs{"smtpcode": "550", "text": "5.7.1 rejected"}),
	}
	var enc Encoder
	for _, m := range tests {
		t.Run(m.Cmd.String(), func(t *testing.T) {
			data, err := enc.Encode(m)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			var d Decoder
			d.Feed(data)
			got := drainAll(t, &d)
			if len(got) != 1 {
				t.Fatalf("Drain() produced %d messages, want 1", len(got))
			}
			if !got[0].Equal(m) {
				t.Errorf("round trip = %+v, want %+v", got[0], m)
			}
		})
	}
}

func TestDecoder_Macro(t *testing.T) {
	var d Decoder
	// tag 'D', cmdcode 'C' (SMFIC_CONNECT), one name/value pair "j"/"mail.example.com".
	d.Feed(hexBytes(t, "00 00 00 15 44 43 6A 00 6D 61 69 6C 2E 65 78 61 6D 70 6C 65 2E 63 6F 6D 00"))
	got := drainAll(t, &d)
	if len(got) != 1 {
		t.Fatalf("Drain() produced %d messages, want 1", len(got))
	}
	want := mustMessage(CmdMacro, Attrs{"cmdcode": byte('C'), "nameval": []string{"j", "mail.example.com"}})
	if !got[0].Equal(want) {
		t.Errorf("decoded = %+v, want %+v", got[0], want)
	}
}

func TestEncode_MacroNotImplemented(t *testing.T) {
	var enc Encoder
	_, err := enc.Encode(mustMessage(CmdMacro, Attrs{"cmdcode": byte('C'), "nameval": nil}))
	if err == nil {
		t.Fatal("Encode() of SMFIC_MACRO should fail")
	}
}

func TestDecoder_ZeroLengthFrameIsFatal(t *testing.T) {
	var d Decoder
	d.Feed(hexBytes(t, "00 00 00 00"))
	_, err, ok := firstResult(&d)
	if !ok || err == nil {
		t.Fatal("expected a decode error for a zero-length frame")
	}
}

func TestDecoder_UnknownTagIsFatal(t *testing.T) {
	var d Decoder
	d.Feed(hexBytes(t, "00 00 00 01 5A")) // 'Z' is not a known tag
	_, err, ok := firstResult(&d)
	if !ok || err == nil {
		t.Fatal("expected a decode error for an unknown tag")
	}
}

func TestDecoder_StaysFatal(t *testing.T) {
	var d Decoder
	d.Feed(hexBytes(t, "00 00 00 00"))
	_, err1, _ := firstResult(&d)
	_, err2, _ := firstResult(&d)
	if err1 == nil || err2 == nil {
		t.Fatal("expected both calls after a fatal error to report an error")
	}
}

// firstResult pulls the first (msg, err) pair out of d.Drain(), or reports
// ok=false if Drain produced nothing at all.
func firstResult(d *Decoder) (msg *Message, err error, ok bool) {
	for m, e := range d.Drain() {
		return m, e, true
	}
	return nil, nil, false
}

func TestDecoder_EmptyFeedIsNoop(t *testing.T) {
	var d Decoder
	d.Feed(nil)
	d.Feed([]byte{})
	if got := drainAll(t, &d); len(got) != 0 {
		t.Errorf("expected no messages, got %d", len(got))
	}
}

func TestDecoder_MailRejectsEmptyArgs(t *testing.T) {
	var d Decoder
	// SMFIC_MAIL with a zero-byte payload: no args at all.
	d.Feed(hexBytes(t, "00 00 00 01 4D"))
	_, err, ok := firstResult(&d)
	if !ok || err == nil {
		t.Fatal("expected a decode error for SMFIC_MAIL with no args")
	}
}
