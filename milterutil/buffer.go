// Package milterutil includes utility functions and types that might be useful for writing milters or MTAs.
package milterutil

import (
	"bufio"
	"io"
	"sync"
)

// FixedBufferScanner wraps a [bufio.Scanner] so it yields fixed-size chunks
// of an [io.Reader], used when splitting a large SMFIR_REPLBODY payload into
// frames no bigger than a chosen chunk size.
type FixedBufferScanner struct {
	bufferSize uint32
	buffer     []byte
	scanner    *bufio.Scanner
	pool       *sync.Pool
}

func (f *FixedBufferScanner) init(pool *sync.Pool, r io.Reader) {
	bufSize := int(f.bufferSize)
	f.pool = pool
	f.scanner = bufio.NewScanner(r)
	f.scanner.Buffer(f.buffer, bufSize)
	f.scanner.Split(func(data []byte, atEOF bool) (advance int, token []byte, err error) {
		if atEOF && len(data) == 0 {
			return 0, nil, nil
		}
		if len(data) >= bufSize {
			return bufSize, data[0:bufSize], nil
		}
		if atEOF {
			return len(data), data, nil
		}
		// not enough buffered yet to fill a whole chunk
		return 0, nil, nil
	})
}

// Scan reports whether another chunk is available in Bytes.
func (f *FixedBufferScanner) Scan() bool {
	return f.scanner.Scan()
}

// Bytes returns the current chunk of data.
func (f *FixedBufferScanner) Bytes() []byte {
	return f.scanner.Bytes()
}

// Err returns the first non-EOF error encountered by the FixedBufferScanner.
func (f *FixedBufferScanner) Err() error {
	return f.scanner.Err()
}

// Close releases f back to the shared pool for its buffer size. It does not
// close the underlying [io.Reader]; that remains the caller's job.
func (f *FixedBufferScanner) Close() {
	f.pool.Put(f)
}

// scannerPools caches one *sync.Pool of [FixedBufferScanner] per buffer
// size seen so far, so repeatedly replacing bodies at the same [DataSize]
// does not churn the allocator.
var scannerPools sync.Map // uint32 -> *sync.Pool

func newScannerPool(bufferSize uint32) *sync.Pool {
	return &sync.Pool{New: func() interface{} {
		return &FixedBufferScanner{bufferSize: bufferSize, buffer: make([]byte, bufferSize)}
	}}
}

// GetFixedBufferScanner returns a FixedBufferScanner of size bufferSize that
// reads from r. It is the caller's responsibility to close r, and to call
// the returned scanner's Close method to release it back to the shared pool.
func GetFixedBufferScanner(bufferSize uint32, r io.Reader) *FixedBufferScanner {
	poolAny, ok := scannerPools.Load(bufferSize)
	if !ok {
		poolAny, _ = scannerPools.LoadOrStore(bufferSize, newScannerPool(bufferSize))
	}
	pool := poolAny.(*sync.Pool)
	buffer := pool.Get().(*FixedBufferScanner)
	buffer.init(pool, r)
	return buffer
}
