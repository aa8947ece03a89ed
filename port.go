package serialio

import (
	"context"
	"time"
)

// Port is the transport-agnostic contract every concrete serial channel
// (rfc2217, uartport, tcpport) implements. All operations are safe to call
// concurrently with each other except where noted; Read and Write in
// particular never block one another.
type Port interface {
	// Open establishes the connection. Returns ErrAlreadyOpen if already
	// open.
	Open(ctx context.Context) error

	// Close is idempotent: calling it on an already-closed port is a no-op.
	Close() error

	// IsOpen reports whether the port is currently open.
	IsOpen() bool

	// Read blocks until exactly len(p) bytes have been read, the stream
	// ends (returning n < len(p) and io.EOF), or ctx is done.
	Read(ctx context.Context, p []byte) (n int, err error)

	// Write writes all of p, doubling any IAC byte the transport requires
	// escaped (a no-op for transports without in-band framing).
	Write(ctx context.Context, p []byte) (n int, err error)

	// ReadUntil reads until sep is seen (inclusive) or max bytes have been
	// read (max <= 0 means unbounded) or the stream ends.
	ReadUntil(ctx context.Context, sep []byte, max int) ([]byte, error)

	// InWaiting returns the number of bytes currently queued locally.
	InWaiting() int

	// Config returns the currently configured parameters.
	Config() PortConfig

	// SetConfig applies a new configuration, reconfiguring a live
	// connection transport-permitting. Returns ErrConfig on invalid values.
	SetConfig(ctx context.Context, cfg PortConfig) error

	// ResetInputBuffer discards anything queued locally and, where the
	// transport supports it, anything buffered upstream.
	ResetInputBuffer(ctx context.Context) error

	// ResetOutputBuffer discards anything buffered for transmission.
	ResetOutputBuffer(ctx context.Context) error

	// SendBreak asserts BREAK for d then releases it.
	SendBreak(ctx context.Context, d time.Duration) error

	// CTS, DSR, RI, CD report modem status lines.
	CTS(ctx context.Context) (bool, error)
	DSR(ctx context.Context) (bool, error)
	RI(ctx context.Context) (bool, error)
	CD(ctx context.Context) (bool, error)
}
