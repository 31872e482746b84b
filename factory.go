package milter

import (
	"io"
	"sync/atomic"
)

// nextConnectionID is the process-wide monotonic counter connections are
// assigned from.
var nextConnectionID uint64

// Factory builds [Connection] values bound to a [Handler] and advertises
// the capability masks offered during OPTNEG. A Factory is safe for
// concurrent use and is typically created once per process.
type Factory struct {
	// NewHandler returns the Handler for a newly accepted connection. It
	// is called once per connection, from whatever goroutine calls
	// [Factory.NewConnection].
	NewHandler func() Handler

	// Actions and Protocol are this filter's advertised capability masks.
	// The masks actually negotiated with a given MTA are the bitwise AND
	// of these with the peer's own masks, never a superset of either.
	Actions  OptAction
	Protocol OptProtocol
}

// NewConnection allocates a Connection bound to transport, assigning it the
// next monotonic connection id and a Handler from f.NewHandler.
func (f *Factory) NewConnection(transport io.ReadWriteCloser) *Connection {
	return &Connection{
		id:        atomic.AddUint64(&nextConnectionID, 1),
		factory:   f,
		transport: transport,
		handler:   f.NewHandler(),
	}
}
