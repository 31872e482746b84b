package milter

import "testing"

func TestNewMessage_InvalidCommand(t *testing.T) {
	_, err := NewMessage(numCommands, nil)
	if err == nil {
		t.Fatal("NewMessage() with an invalid command should fail")
	}
	if _, ok := err.(*InvalidCommandError); !ok {
		t.Errorf("error type = %T, want *InvalidCommandError", err)
	}
}

func TestNewMessage_NilAttrsNormalized(t *testing.T) {
	m, err := NewMessage(CmdAbort, nil)
	if err != nil {
		t.Fatalf("NewMessage() error = %v", err)
	}
	if m.Attrs == nil {
		t.Error("NewMessage() left Attrs nil, want an empty map")
	}
	if len(m.Attrs) != 0 {
		t.Errorf("len(Attrs) = %d, want 0", len(m.Attrs))
	}
}

func TestMessage_Equal_AttrOrderIndependent(t *testing.T) {
	a := mustMessage(CmdHeader, Attrs{"a": 1, "b": 2})
	b := mustMessage(CmdHeader, Attrs{"b": 2, "a": 1})
	if !a.Equal(b) {
		t.Error("messages with the same attrs in different map order should be equal")
	}
}

func TestMessage_Equal_DifferentCommand(t *testing.T) {
	a := mustMessage(CmdAbort, nil)
	b := mustMessage(CmdQuit, nil)
	if a.Equal(b) {
		t.Error("messages with different commands should not be equal")
	}
}

func TestMessage_Equal_DifferentAttrs(t *testing.T) {
	a := mustMessage(CmdHeader, Attrs{"name": "to", "value": "a@b.com"})
	b := mustMessage(CmdHeader, Attrs{"name": "to", "value": "c@d.com"})
	if a.Equal(b) {
		t.Error("messages with different attr values should not be equal")
	}
}

func TestMessage_Equal_NilHandling(t *testing.T) {
	var a, b *Message
	if !a.Equal(b) {
		t.Error("two nil Messages should be equal")
	}
	c := mustMessage(CmdAbort, nil)
	if a.Equal(c) || c.Equal(a) {
		t.Error("a nil Message should never equal a non-nil Message")
	}
}

func TestSingletonReplies(t *testing.T) {
	replies := []*Message{
		ReplyAccept, ReplyContinue, ReplyDiscard, ReplyReject,
		ReplySkip, ReplyTempFail, ReplyConnFail, ReplyShutdown,
	}
	for _, r := range replies {
		if len(r.Attrs) != 0 {
			t.Errorf("%s: singleton reply should carry no attrs, got %v", r.Cmd, r.Attrs)
		}
	}
}
