package syncio

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tiagocoutinho/serialio"
)

// job is one unit of work posted to the driver goroutine: run does the
// actual operation, storing its results in variables its closure captured,
// and the driver closes done once run has returned.
type job struct {
	run    func(ctx context.Context)
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

// Port drives an underlying async serialio.Port from a single dedicated
// goroutine, giving every exported method total ordering with respect to
// every other call made through this façade.
type Port struct {
	inner  serialio.Port
	logger *zap.SugaredLogger

	jobs   chan job
	closed chan struct{}
}

// New starts the driver goroutine wrapping inner. Open, Close and the
// read/write/config surface all run on that goroutine; IsOpen, InWaiting
// and Config call inner directly.
func New(inner serialio.Port, opts ...Option) *Port {
	p := &Port{inner: inner, jobs: make(chan job), closed: make(chan struct{})}
	for _, o := range opts {
		o(p)
	}
	if p.logger == nil {
		l, _ := zap.NewProduction()
		p.logger = l.Sugar()
	}
	go p.drive()
	return p
}

// Option configures optional behavior of a Port at construction time.
type Option func(*Port)

// WithLogger overrides the default zap logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(p *Port) { p.logger = l }
}

func (p *Port) drive() {
	for {
		select {
		case j := <-p.jobs:
			j.run(j.ctx)
			j.cancel()
			close(j.done)
		case <-p.closed:
			return
		}
	}
}

// submit posts run to the driver goroutine and blocks until it completes.
// timeout (0 means block forever) bounds run via ctx, so a blocking
// operation like Read is actually interrupted rather than merely having
// submit give up on waiting for it.
func (p *Port) submit(timeout time.Duration, run func(ctx context.Context)) error {
	t := serialio.NewTimeout(durationPtr(timeout))
	ctx, cancel := t.Context(context.Background())
	j := job{run: run, done: make(chan struct{}), ctx: ctx, cancel: cancel}
	select {
	case p.jobs <- j:
	case <-p.closed:
		cancel()
		return serialio.ErrPortClosed
	}
	<-j.done
	return nil
}

func durationPtr(d time.Duration) *time.Duration {
	if d <= 0 {
		return nil
	}
	return &d
}

// Stop shuts down the driver goroutine. Jobs already queued still run; new
// submissions after Stop fail with ErrPortClosed.
func (p *Port) Stop() {
	close(p.closed)
}

// Open opens the wrapped port, run on the driver goroutine like every other
// operation.
func (p *Port) Open(timeout time.Duration) error {
	var outerErr error
	err := p.submit(timeout, func(ctx context.Context) {
		outerErr = p.inner.Open(ctx)
	})
	if err != nil {
		return err
	}
	return outerErr
}

// Close closes the wrapped port.
func (p *Port) Close() error {
	var outerErr error
	err := p.submit(0, func(ctx context.Context) {
		outerErr = p.inner.Close()
	})
	if err != nil {
		return err
	}
	return outerErr
}

// IsOpen reports whether the wrapped port is open. Safe to call without
// going through the driver: it only reads a flag the wrapped port already
// protects with its own lock.
func (p *Port) IsOpen() bool { return p.inner.IsOpen() }

// Read blocks until len(buf) bytes are read, the stream ends, or timeout
// elapses (0 means block forever).
func (p *Port) Read(timeout time.Duration, buf []byte) (int, error) {
	var n int
	var innerErr error
	err := p.submit(timeout, func(ctx context.Context) {
		n, innerErr = p.inner.Read(ctx, buf)
	})
	if err != nil {
		return 0, err
	}
	return n, innerErr
}

// Write writes all of data.
func (p *Port) Write(timeout time.Duration, data []byte) (int, error) {
	var n int
	var innerErr error
	err := p.submit(timeout, func(ctx context.Context) {
		n, innerErr = p.inner.Write(ctx, data)
	})
	if err != nil {
		return 0, err
	}
	return n, innerErr
}

// ReadUntil reads until sep is seen (inclusive), max bytes collected, or the
// stream ends.
func (p *Port) ReadUntil(timeout time.Duration, sep []byte, max int) ([]byte, error) {
	var buf []byte
	var innerErr error
	err := p.submit(timeout, func(ctx context.Context) {
		buf, innerErr = p.inner.ReadUntil(ctx, sep, max)
	})
	if err != nil {
		return nil, err
	}
	return buf, innerErr
}

// InWaiting returns the number of bytes queued locally.
func (p *Port) InWaiting() int { return p.inner.InWaiting() }

// Config returns the currently configured parameters.
func (p *Port) Config() serialio.PortConfig { return p.inner.Config() }

// SetConfig applies a new configuration.
func (p *Port) SetConfig(timeout time.Duration, cfg serialio.PortConfig) error {
	var innerErr error
	err := p.submit(timeout, func(ctx context.Context) {
		innerErr = p.inner.SetConfig(ctx, cfg)
	})
	if err != nil {
		return err
	}
	return innerErr
}

// ResetInputBuffer discards anything queued locally and upstream.
func (p *Port) ResetInputBuffer(timeout time.Duration) error {
	var innerErr error
	err := p.submit(timeout, func(ctx context.Context) {
		innerErr = p.inner.ResetInputBuffer(ctx)
	})
	if err != nil {
		return err
	}
	return innerErr
}

// ResetOutputBuffer discards anything buffered for transmission.
func (p *Port) ResetOutputBuffer(timeout time.Duration) error {
	var innerErr error
	err := p.submit(timeout, func(ctx context.Context) {
		innerErr = p.inner.ResetOutputBuffer(ctx)
	})
	if err != nil {
		return err
	}
	return innerErr
}

// SendBreak asserts BREAK for d then releases it.
func (p *Port) SendBreak(timeout time.Duration, d time.Duration) error {
	var innerErr error
	err := p.submit(timeout, func(ctx context.Context) {
		innerErr = p.inner.SendBreak(ctx, d)
	})
	if err != nil {
		return err
	}
	return innerErr
}

// CTS, DSR, RI, CD report modem status lines.
func (p *Port) CTS(timeout time.Duration) (bool, error) { return p.modemLine(timeout, p.inner.CTS) }
func (p *Port) DSR(timeout time.Duration) (bool, error) { return p.modemLine(timeout, p.inner.DSR) }
func (p *Port) RI(timeout time.Duration) (bool, error)  { return p.modemLine(timeout, p.inner.RI) }
func (p *Port) CD(timeout time.Duration) (bool, error)  { return p.modemLine(timeout, p.inner.CD) }

func (p *Port) modemLine(timeout time.Duration, get func(context.Context) (bool, error)) (bool, error) {
	var v bool
	var innerErr error
	err := p.submit(timeout, func(ctx context.Context) {
		v, innerErr = get(ctx)
	})
	if err != nil {
		return false, err
	}
	return v, innerErr
}
