package uartport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/tiagocoutinho/serialio"
	"github.com/tiagocoutinho/serialio/internal/chunkqueue"
)

// Option configures optional behavior of a Port at construction time.
type Option func(*Port)

// WithLogger overrides the default zap logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(p *Port) { p.logger = l }
}

var _ serialio.Port = (*Port)(nil)

// Port is a serialio.Port backed directly by a Linux character device, no
// protocol layer in between.
type Port struct {
	id   uuid.UUID
	path string

	logger *zap.SugaredLogger

	mu   sync.Mutex
	open bool
	cfg  serialio.PortConfig

	f       *os.File
	writeMu sync.Mutex

	queue *chunkqueue.Queue
	rd    *reader
}

// New builds a Port targeting the given device path, not yet opened.
func New(path string, cfg serialio.PortConfig, opts ...Option) *Port {
	p := &Port{id: uuid.New(), path: path, cfg: cfg}
	for _, o := range opts {
		o(p)
	}
	if p.logger == nil {
		l, _ := zap.NewProduction()
		p.logger = l.Sugar()
	}
	p.logger = p.logger.With("port_id", p.id.String(), "device", path)
	return p
}

func (p *Port) errf(kind serialio.ErrorKind, op string, err error) *serialio.PortError {
	return serialio.NewPortError(kind, op, "", p.path, err)
}

// IsOpen reports whether the device is currently open.
func (p *Port) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open
}

// Open opens the device, puts it in raw mode, and applies cfg.
func (p *Port) Open(ctx context.Context) error {
	p.mu.Lock()
	if p.open {
		p.mu.Unlock()
		return p.errf(serialio.ErrAlreadyOpen, "open", nil)
	}
	cfg := p.cfg
	p.mu.Unlock()

	if err := cfg.Validate(); err != nil {
		return err
	}

	f, err := os.OpenFile(p.path, os.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return p.errf(serialio.ErrConnectFailed, "open", err)
	}

	if err := p.applyTermios(f, cfg); err != nil {
		f.Close()
		return p.errf(serialio.ErrConfig, "open", err)
	}
	if cfg.RS485 != nil {
		if err := setRS485(int(f.Fd()), fromRS485Config(cfg.RS485)); err != nil {
			f.Close()
			return p.errf(serialio.ErrConfig, "open", fmt.Errorf("set rs485: %w", err))
		}
	}

	p.f = f
	p.queue = chunkqueue.New()
	p.rd = newReader(f, p.queue, p.logger)
	go p.rd.run()

	p.mu.Lock()
	p.open = true
	p.cfg = cfg
	p.mu.Unlock()
	p.logger.Info("uartport device open")
	return nil
}

func (p *Port) applyTermios(f *os.File, cfg serialio.PortConfig) error {
	fd := int(f.Fd())
	attrs, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("get termios: %w", err)
	}
	makeRaw(attrs)
	if err := applyConfig(attrs, cfg); err != nil {
		return err
	}
	setReadTimeoutVminVtime(attrs, cfg)
	return unix.IoctlSetTermios(fd, unix.TCSETS, attrs)
}

// setReadTimeoutVminVtime maps InterByteTimeout onto VMIN/VTIME: a positive
// InterByteTimeout requests "return as soon as something arrives, then wait
// up to that long for silence"; otherwise every byte is returned immediately
// as it arrives, and overall blocking is governed at the Go level by ctx via
// the read queue instead of termios.
func setReadTimeoutVminVtime(attrs *unix.Termios, cfg serialio.PortConfig) {
	attrs.Cc[unix.VMIN] = 1
	attrs.Cc[unix.VTIME] = 0
	if cfg.InterByteTimeout != nil && *cfg.InterByteTimeout > 0 {
		deciseconds := cfg.InterByteTimeout.Milliseconds() / 100
		if deciseconds < 1 {
			deciseconds = 1
		}
		if deciseconds > 255 {
			deciseconds = 255
		}
		attrs.Cc[unix.VTIME] = uint8(deciseconds)
	}
}

// Close idempotently closes the device and joins the reader.
func (p *Port) Close() error {
	p.mu.Lock()
	if !p.open {
		p.mu.Unlock()
		return nil
	}
	p.open = false
	f := p.f
	rd := p.rd
	p.mu.Unlock()

	if f != nil {
		f.Close()
	}
	if rd != nil {
		<-rd.Done()
	}
	return nil
}

// Read blocks until len(buf) bytes are read, the device is closed (io.EOF),
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

// Write writes data as-is; there is no in-band framing to escape on a raw
// character device.
func (p *Port) Write(ctx context.Context, data []byte) (int, error) {
	if !p.IsOpen() {
		return 0, p.errf(serialio.ErrNotOpen, "write", nil)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	n, err := p.f.Write(data)
	if err != nil {
		return n, p.errf(serialio.ErrTransportIO, "write", err)
	}
	return n, nil
}

// ReadUntil reads until sep is seen (inclusive), max bytes collected
// (max<=0: unbounded), or the device closes.
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

// Config returns the currently configured parameters.
func (p *Port) Config() serialio.PortConfig {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}

// SetConfig applies a new configuration; if the port is open, termios is
// rewritten immediately.
func (p *Port) SetConfig(ctx context.Context, cfg serialio.PortConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	open := p.open
	f := p.f
	p.mu.Unlock()
	if open {
		if err := p.applyTermios(f, cfg); err != nil {
			return p.errf(serialio.ErrConfig, "set_config", err)
		}
		if cfg.RS485 != nil {
			if err := setRS485(int(f.Fd()), fromRS485Config(cfg.RS485)); err != nil {
				return p.errf(serialio.ErrConfig, "set_config", fmt.Errorf("set rs485: %w", err))
			}
		}
	}
	p.mu.Lock()
	p.cfg = cfg
	p.mu.Unlock()
	return nil
}

// ResetInputBuffer discards the kernel's input queue and the local one.
func (p *Port) ResetInputBuffer(ctx context.Context) error {
	if !p.IsOpen() {
		return p.errf(serialio.ErrNotOpen, "reset_input_buffer", nil)
	}
	if err := unix.IoctlSetInt(int(p.f.Fd()), unix.TCFLSH, unix.TCIFLUSH); err != nil {
		return p.errf(serialio.ErrTransportIO, "reset_input_buffer", err)
	}
	p.queue.Drain()
	return nil
}

// ResetOutputBuffer discards the kernel's output queue.
func (p *Port) ResetOutputBuffer(ctx context.Context) error {
	if !p.IsOpen() {
		return p.errf(serialio.ErrNotOpen, "reset_output_buffer", nil)
	}
	if err := unix.IoctlSetInt(int(p.f.Fd()), unix.TCFLSH, unix.TCOFLUSH); err != nil {
		return p.errf(serialio.ErrTransportIO, "reset_output_buffer", err)
	}
	return nil
}

// SendBreak asserts BREAK for d then releases it, via TIOCSBRK/TIOCCBRK.
func (p *Port) SendBreak(ctx context.Context, d time.Duration) error {
	if !p.IsOpen() {
		return p.errf(serialio.ErrNotOpen, "send_break", nil)
	}
	fd := int(p.f.Fd())
	if err := unix.IoctlSetInt(fd, unix.TIOCSBRK, 0); err != nil {
		return p.errf(serialio.ErrTransportIO, "send_break", err)
	}
	time.Sleep(d)
	if err := unix.IoctlSetInt(fd, unix.TIOCCBRK, 0); err != nil {
		return p.errf(serialio.ErrTransportIO, "send_break", err)
	}
	return nil
}

func (p *Port) modemLine(ctx context.Context, bit int) (bool, error) {
	if !p.IsOpen() {
		return false, p.errf(serialio.ErrNotOpen, "get_modem_state", nil)
	}
	v, err := getModemLines(int(p.f.Fd()))
	if err != nil {
		return false, p.errf(serialio.ErrTransportIO, "get_modem_state", err)
	}
	return v&bit != 0, nil
}

func (p *Port) CTS(ctx context.Context) (bool, error) { return p.modemLine(ctx, unix.TIOCM_CTS) }
func (p *Port) DSR(ctx context.Context) (bool, error) { return p.modemLine(ctx, unix.TIOCM_DSR) }
func (p *Port) RI(ctx context.Context) (bool, error)  { return p.modemLine(ctx, unix.TIOCM_RNG) }
func (p *Port) CD(ctx context.Context) (bool, error)  { return p.modemLine(ctx, unix.TIOCM_CAR) }

// SetDTR and SetRTS assert or release the corresponding modem control line
// directly; unlike rfc2217 there is no SET_CONTROL negotiation, just a
// synchronous ioctl.
func (p *Port) SetDTR(ctx context.Context, on bool) error { return p.setModemLine(unix.TIOCM_DTR, on) }
func (p *Port) SetRTS(ctx context.Context, on bool) error { return p.setModemLine(unix.TIOCM_RTS, on) }

func (p *Port) setModemLine(bit int, on bool) error {
	if !p.IsOpen() {
		return p.errf(serialio.ErrNotOpen, "set_modem_line", nil)
	}
	fd := int(p.f.Fd())
	if on {
		return setModemBits(fd, bit)
	}
	return clearModemBits(fd, bit)
}
