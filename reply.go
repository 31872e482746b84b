package milter

// Reply is the result of dispatching a command to a [Handler]: either a
// Message ready to write immediately, a Message that will become available
// later without blocking the dispatch loop, or no reply at all.
//
// Reply is a closed sum type; the only implementations are [ReadyReply],
// [PendingReply], and [NoReply].
type Reply interface {
	isReply()
}

// ReadyReply carries a Message that is already known and can be written to
// the MTA as soon as its turn comes.
type ReadyReply struct {
	Message *Message
}

func (ReadyReply) isReply() {}

// Ready wraps msg in a ReadyReply. It is a convenience for the common case
// of a Handler method that can answer synchronously.
func Ready(msg *Message) ReadyReply {
	return ReadyReply{Message: msg}
}

// PendingReply carries a reply that is not yet known. Done receives exactly
// one Message once the reply is ready, then is never sent to again. The
// Connection keeps replies in request order even when a later command's
// reply becomes ready before an earlier one's.
//
// A nil Message sent on Done is treated as [ReplyContinue]; sending an error
// is not supported; a Handler that fails to produce a reply should instead
// tear down the connection through its own error path.
type PendingReply struct {
	Done <-chan *Message
}

func (PendingReply) isReply() {}

// Pending wraps done in a PendingReply.
func Pending(done <-chan *Message) PendingReply {
	return PendingReply{Done: done}
}

// NoReply indicates that the command warrants no reply at all, as with
// SMFIC_QUIT or SMFIC_QUIT_NC.
type NoReply struct{}

func (NoReply) isReply() {}
