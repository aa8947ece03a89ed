package tcpport

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tiagocoutinho/serialio"
	"github.com/tiagocoutinho/serialio/internal/chunkqueue"
)

var errNotSupported = errors.New("not supported over a raw tcp socket")

// Option configures optional behavior of a Port at construction time.
type Option func(*Port)

// WithLogger overrides the default zap logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(p *Port) { p.logger = l }
}

// WithDialTimeout overrides the default connect timeout (3s).
func WithDialTimeout(d time.Duration) Option {
	return func(p *Port) { p.dialTimeout = d }
}

var _ serialio.Port = (*Port)(nil)

// Port is a serialio.Port over a raw TCP socket: no Com Port Option
// negotiation, no modem lines, no break. SetConfig beyond the initial open
// always fails, matching the source's explicit refusal to reconfigure.
type Port struct {
	id   uuid.UUID
	host string
	port string

	dialTimeout time.Duration
	logger      *zap.SugaredLogger

	mu   sync.Mutex
	open bool
	cfg  serialio.PortConfig

	conn    net.Conn
	writeMu sync.Mutex

	queue *chunkqueue.Queue
	rd    *reader
}

// New builds a Port targeting host:port, not yet connected.
func New(host, port string, cfg serialio.PortConfig, opts ...Option) *Port {
	p := &Port{id: uuid.New(), host: host, port: port, dialTimeout: 3 * time.Second, cfg: cfg}
	for _, o := range opts {
		o(p)
	}
	if p.logger == nil {
		l, _ := zap.NewProduction()
		p.logger = l.Sugar()
	}
	p.logger = p.logger.With("port_id", p.id.String(), "target", net.JoinHostPort(host, port))
	return p
}

func (p *Port) errf(kind serialio.ErrorKind, op string, err error) *serialio.PortError {
	return serialio.NewPortError(kind, op, p.host, p.port, err)
}

// IsOpen reports whether the socket is currently connected.
func (p *Port) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open
}

// Open dials host:port.
func (p *Port) Open(ctx context.Context) error {
	p.mu.Lock()
	if p.open {
		p.mu.Unlock()
		return p.errf(serialio.ErrAlreadyOpen, "open", nil)
	}
	p.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, p.dialTimeout)
	defer cancel()
	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", net.JoinHostPort(p.host, p.port))
	if err != nil {
		return p.errf(serialio.ErrConnectFailed, "open", err)
	}

	p.conn = conn
	p.queue = chunkqueue.New()
	p.rd = newReader(conn, p.queue, p.logger)
	go p.rd.run()

	p.mu.Lock()
	p.open = true
	p.mu.Unlock()
	p.logger.Info("tcp port open")
	return nil
}

// Close idempotently closes the socket and joins the reader.
func (p *Port) Close() error {
	p.mu.Lock()
	if !p.open {
		p.mu.Unlock()
		return nil
	}
	p.open = false
	conn := p.conn
	rd := p.rd
	p.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if rd != nil {
		<-rd.Done()
	}
	return nil
}

// Read blocks until len(buf) bytes are read, the connection ends (io.EOF),
// or ctx completes.
func (p *Port) Read(ctx context.Context, buf []byte) (int, error) {
	if !p.IsOpen() {
		return 0, p.errf(serialio.ErrNotOpen, "read", nil)
	}
	n, err := p.queue.Read(ctx, buf)
	if err != nil && !errors.Is(err, io.EOF) {
		err = p.errf(serialio.ErrTimeout, "read", err)
	}
	return n, err
}

// Write writes data as-is; there is no in-band framing to escape.
func (p *Port) Write(ctx context.Context, data []byte) (int, error) {
	if !p.IsOpen() {
		return 0, p.errf(serialio.ErrNotOpen, "write", nil)
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	n, err := p.conn.Write(data)
	if err != nil {
		return n, p.errf(serialio.ErrTransportIO, "write", err)
	}
	return n, nil
}

// ReadUntil reads until sep is seen (inclusive), max bytes collected
// (max<=0: unbounded), or the connection ends.
func (p *Port) ReadUntil(ctx context.Context, sep []byte, max int) ([]byte, error) {
	if !p.IsOpen() {
		return nil, p.errf(serialio.ErrNotOpen, "read_until", nil)
	}
	return p.queue.ReadUntil(ctx, sep, max)
}

// InWaiting returns the number of bytes queued locally.
func (p *Port) InWaiting() int {
	if p.queue == nil {
		return 0
	}
	return p.queue.Pending()
}

// Config returns the configuration passed at construction; a raw TCP
// socket carries no baud/parity/stopbits of its own.
func (p *Port) Config() serialio.PortConfig {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}

// SetConfig always fails: a raw TCP socket cannot be reconfigured, matching
// the source Serial._reconfigure_port, which raises unconditionally.
func (p *Port) SetConfig(ctx context.Context, cfg serialio.PortConfig) error {
	return p.errf(serialio.ErrConfig, "set_config", errNotSupported)
}

// ResetInputBuffer drains the locally queued bytes; there is no remote
// buffer to purge over a raw socket.
func (p *Port) ResetInputBuffer(ctx context.Context) error {
	if !p.IsOpen() {
		return p.errf(serialio.ErrNotOpen, "reset_input_buffer", nil)
	}
	p.queue.Drain()
	return nil
}

// ResetOutputBuffer is a no-op: the kernel's TCP send buffer cannot be
// selectively discarded without tearing down the connection.
func (p *Port) ResetOutputBuffer(ctx context.Context) error {
	if !p.IsOpen() {
		return p.errf(serialio.ErrNotOpen, "reset_output_buffer", nil)
	}
	return nil
}

// SendBreak is not meaningful over a raw TCP socket.
func (p *Port) SendBreak(ctx context.Context, d time.Duration) error {
	return p.errf(serialio.ErrConfig, "send_break", errNotSupported)
}

func (p *Port) CTS(ctx context.Context) (bool, error) {
	return false, p.errf(serialio.ErrConfig, "get_modem_state", errNotSupported)
}

func (p *Port) DSR(ctx context.Context) (bool, error) {
	return false, p.errf(serialio.ErrConfig, "get_modem_state", errNotSupported)
}

func (p *Port) RI(ctx context.Context) (bool, error) {
	return false, p.errf(serialio.ErrConfig, "get_modem_state", errNotSupported)
}

func (p *Port) CD(ctx context.Context) (bool, error) {
	return false, p.errf(serialio.ErrConfig, "get_modem_state", errNotSupported)
}
