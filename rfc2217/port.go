package rfc2217

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tiagocoutinho/serialio"
	"github.com/tiagocoutinho/serialio/internal/chunkqueue"
)

const (
	defaultNetworkTimeout = 3 * time.Second
	postCloseGrace        = 300 * time.Millisecond
	modemPollInterval     = 50 * time.Millisecond
)

// Option configures optional behavior of a Port at construction time,
// mirroring the query options serialurl.Parse extracts from a URL.
type Option func(*Port)

// WithNetworkTimeout overrides the per-operation network timeout (default
// 3s), used for negotiation and subnegotiation acknowledgements.
func WithNetworkTimeout(d time.Duration) Option {
	return func(p *Port) { p.networkTimeout = d }
}

// WithIgnoreSetControlAnswer makes SET_CONTROL fire-and-forget (sleep 100ms
// instead of awaiting an ack), for servers that never answer it.
func WithIgnoreSetControlAnswer() Option {
	return func(p *Port) { p.ignoreSetControlAnswer = true }
}

// WithPollModemState enables proactive modem-state polling in CTS/DSR/RI/CD.
func WithPollModemState() Option {
	return func(p *Port) { p.pollModemState = true }
}

// WithLogger overrides the default zap logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(p *Port) { p.logger = l }
}

// Port is the RFC 2217 client: the Telnet/Com-Port-Option negotiation state
// machine, the background reader, and the serialio.Port facade that exposes
// it, including the modem-state cache.
type Port struct {
	id   uuid.UUID
	host string
	port string

	networkTimeout         time.Duration
	ignoreSetControlAnswer bool
	pollModemState         bool
	logger                 *zap.SugaredLogger

	mu   sync.Mutex
	open bool
	cfg  serialio.PortConfig

	conn    net.Conn
	writeMu sync.Mutex

	telnetOptions []*telnetOption
	mandatory     []*telnetOption
	mandatoryDone chan struct{}
	mandatoryOnce sync.Once

	comSettings map[string]*comPortParameter
	comOthers   map[string]*comPortParameter
	paramsByAck map[byte]*comPortParameter

	modem *modemCache
	queue *chunkqueue.Queue
	rd    *reader
}

// New builds a Port targeting host:port, not yet connected. cfg is applied
// on Open (and sent again on every reconfiguration).
func New(host, port string, cfg serialio.PortConfig, opts ...Option) *Port {
	p := &Port{
		id:             uuid.New(),
		host:           host,
		port:           port,
		networkTimeout: defaultNetworkTimeout,
		cfg:            cfg,
	}
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

// IsOpen reports whether the port is currently open.
func (p *Port) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open
}

// Open dials host:port, negotiates the mandatory Telnet and RFC 2217
// options, and pushes the configured communication parameters.
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

	dialCtx, cancel := context.WithTimeout(ctx, p.networkTimeout)
	defer cancel()
	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", net.JoinHostPort(p.host, p.port))
	if err != nil {
		return p.errf(serialio.ErrConnectFailed, "open", err)
	}

	p.conn = conn
	p.queue = chunkqueue.New()
	p.modem = newModemCache()
	p.mandatoryDone = make(chan struct{})
	p.mandatoryOnce = sync.Once{}

	p.registerOptions()
	p.registerComPortParameters()

	p.rd = newReader(conn, p.telnetOptions, p.paramsByAck, p.modem, p.queue, p.writeRawBestEffort, p.logger)
	go p.rd.run()

	// Flip open before negotiation, mirroring the source: a failure from
	// here on must go through the ordinary (idempotent) Close path so the
	// reader is joined and the socket torn down consistently.
	p.mu.Lock()
	p.open = true
	p.mu.Unlock()

	if err := p.negotiate(ctx); err != nil {
		p.Close()
		return err
	}

	if err := p.reconfigure(ctx, cfg); err != nil {
		p.Close()
		return err
	}

	if cfg.Flow&serialio.DsrDtr == 0 {
		if err := p.setControlLine(ctx, true, true); err != nil {
			p.Close()
			return err
		}
	}
	if cfg.Flow&serialio.RtsCts == 0 {
		if err := p.setControlLine(ctx, false, true); err != nil {
			p.Close()
			return err
		}
	}

	if err := p.ResetInputBuffer(ctx); err != nil {
		p.Close()
		return err
	}
	if err := p.ResetOutputBuffer(ctx); err != nil {
		p.Close()
		return err
	}

	p.mu.Lock()
	p.cfg = cfg
	p.mu.Unlock()
	p.logger.Info("rfc2217 port open")
	return nil
}

func (p *Port) registerOptions() {
	send := p.sendTelnetOption
	echo := newTelnetOption("ECHO", optionEcho, do, dont, will, wont, stateRequested, send)
	weSGA := newTelnetOption("we-SGA", optionSGA, will, wont, do, dont, stateRequested, send)
	theySGA := newTelnetOption("they-SGA", optionSGA, do, dont, will, wont, stateRequested, send)
	theyBinary := newTelnetOption("they-BINARY", optionBinary, do, dont, will, wont, stateInactive, send)
	weBinary := newTelnetOption("we-BINARY", optionBinary, will, wont, do, dont, stateInactive, send)
	weBinary.mandatory = true
	weComPort := newTelnetOption("we-RFC2217", optionComPort, will, wont, do, dont, stateRequested, send)
	weComPort.mandatory = true
	theyComPort := newTelnetOption("they-RFC2217", optionComPort, do, dont, will, wont, stateRequested, send)

	p.mandatory = []*telnetOption{weBinary, weComPort}
	onMandatoryChange := func(*telnetOption) { p.checkMandatoryDone() }
	for _, o := range p.mandatory {
		o.onChange = onMandatoryChange
	}
	p.telnetOptions = []*telnetOption{echo, weSGA, theySGA, theyBinary, weComPort, theyComPort, weBinary}
}

func (p *Port) checkMandatoryDone() {
	active, progressed := 0, 0
	for _, o := range p.mandatory {
		if o.active {
			active++
		}
		if o.state != stateInactive {
			progressed++
		}
	}
	if active == progressed {
		p.mandatoryOnce.Do(func() { close(p.mandatoryDone) })
	}
}

func (p *Port) registerComPortParameters() {
	p.comSettings = map[string]*comPortParameter{
		"baudrate": newComPortParameter("baudrate", setBaudrate),
		"datasize": newComPortParameter("datasize", setDatasize),
		"parity":   newComPortParameter("parity", setParity),
		"stopsize": newComPortParameter("stopsize", setStopsize),
	}
	p.comOthers = map[string]*comPortParameter{
		"purge":   newComPortParameter("purge", purgeData),
		"control": newComPortParameter("control", setControl),
	}
	p.paramsByAck = make(map[byte]*comPortParameter, len(p.comSettings)+len(p.comOthers))
	for _, m := range []map[string]*comPortParameter{p.comSettings, p.comOthers} {
		for _, param := range m {
			p.paramsByAck[param.ackOption] = param
		}
	}
}

// negotiate sends the initial requests for every REQUESTED option and
// blocks until the mandatory options have all progressed.
func (p *Port) negotiate(ctx context.Context) error {
	var pairs [][2]byte
	for _, o := range p.telnetOptions {
		if o.state == stateRequested {
			pairs = append(pairs, [2]byte{o.sendYes, o.option})
		}
	}
	if err := p.sendTelnetOptions(pairs); err != nil {
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, p.networkTimeout)
	defer cancel()
	select {
	case <-p.mandatoryDone:
		return nil
	case <-waitCtx.Done():
		return p.errf(serialio.ErrNegotiationFailed, "open", errors.New("remote does not support RFC2217/BINARY"))
	}
}

// reconfigure pushes baudrate/datasize/parity/stopsize and the flow control
// mode, waiting for each com-port parameter to be acknowledged.
func (p *Port) reconfigure(ctx context.Context, cfg serialio.PortConfig) error {
	type req struct {
		name  string
		value []byte
	}
	parityWireV, ok := parityWire[cfg.Parity]
	if !ok {
		return p.errf(serialio.ErrConfig, "set_parity", nil).WithMsgf("invalid parity %v", cfg.Parity)
	}
	stopWireV, ok := stopBitsWire[cfg.StopBits]
	if !ok {
		return p.errf(serialio.ErrConfig, "set_stopbits", nil).WithMsgf("invalid stop bits %v", cfg.StopBits)
	}
	reqs := []req{
		{"baudrate", encodeBaudrate(cfg.Baud)},
		{"datasize", []byte{byte(cfg.ByteSize)}},
		{"parity", []byte{parityWireV}},
		{"stopsize", []byte{stopWireV}},
	}
	for _, r := range reqs {
		if err := p.requestComPortParameter(ctx, p.comSettings[r.name], r.value); err != nil {
			return err
		}
	}

	deadline, cancel := context.WithTimeout(ctx, p.networkTimeout)
	defer cancel()
	for _, r := range reqs {
		param := p.comSettings[r.name]
		select {
		case <-param.waitChan():
		case <-deadline.Done():
			return p.errf(serialio.ErrNegotiationFailed, "reconfigure", fmt.Errorf("%s not acknowledged", r.name))
		}
		if param.currentState() != stateActive {
			return p.errf(serialio.ErrNegotiationFailed, "reconfigure", fmt.Errorf("remote rejected %s", r.name))
		}
	}

	var flow byte
	switch {
	case cfg.Flow&serialio.RtsCts != 0:
		flow = controlFlowHW
	case cfg.Flow&serialio.XonXoff != 0:
		flow = controlFlowSW
	default:
		flow = controlFlowNone
	}
	return p.setControl(ctx, flow)
}

// requestComPortParameter sends a sub-option request; the caller awaits its
// completion separately (so several requests can be in flight at once).
func (p *Port) requestComPortParameter(ctx context.Context, param *comPortParameter, value []byte) error {
	option, val := param.prepare(value)
	return p.sendSubnegotiation(option, val)
}

// setControl sends SET_CONTROL and waits for the ack, unless configured to
// ignore the answer (compatibility mode for servers that never reply).
func (p *Port) setControl(ctx context.Context, value byte) error {
	param := p.comOthers["control"]
	option, val := param.prepare([]byte{value})
	wait := param.waitChan()
	if err := p.sendSubnegotiation(option, val); err != nil {
		return err
	}
	if p.ignoreSetControlAnswer {
		time.Sleep(100 * time.Millisecond)
		return nil
	}
	deadline, cancel := context.WithTimeout(ctx, p.networkTimeout)
	defer cancel()
	select {
	case <-wait:
		return nil
	case <-deadline.Done():
		return p.errf(serialio.ErrNegotiationFailed, "set_control", errors.New("remote did not acknowledge control line change"))
	}
}

// setControlLine is a helper for the initial DTR/RTS assertion on open.
func (p *Port) setControlLine(ctx context.Context, dtr, on bool) error {
	var v byte
	switch {
	case dtr && on:
		v = controlDTROn
	case dtr && !on:
		v = controlDTROff
	case !dtr && on:
		v = controlRTSOn
	default:
		v = controlRTSOff
	}
	return p.setControl(ctx, v)
}

// Close idempotently tears down the connection, joins the reader within a
// grace deadline, and sleeps briefly to accommodate a rapid reconnect by
// the peer.
func (p *Port) Close() error {
	p.mu.Lock()
	if !p.open {
		p.mu.Unlock()
		return nil
	}
	p.open = false
	p.mu.Unlock()
	p.closeLocked()
	return nil
}

func (p *Port) closeLocked() {
	if p.conn != nil {
		p.conn.Close()
	}
	if p.rd != nil {
		grace := p.networkTimeout * 2
		select {
		case <-p.rd.Done():
		case <-time.After(grace):
		}
	}
	time.Sleep(postCloseGrace)
}

// Read blocks until len(p) bytes are read, the stream ends (io.EOF), or ctx
// completes.
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

// Write doubles every IAC byte and writes under the write mutex.
func (p *Port) Write(ctx context.Context, data []byte) (int, error) {
	if !p.IsOpen() {
		return 0, p.errf(serialio.ErrNotOpen, "write", nil)
	}
	escaped := escapeIAC(data)
	if err := p.writeRaw(ctx, escaped); err != nil {
		return 0, err
	}
	return len(data), nil
}

// ReadUntil reads until sep is seen (inclusive), max bytes collected
// (max<=0: unbounded), or the stream ends.
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

// SetConfig applies a new configuration; if the port is open, the new
// baudrate/datasize/parity/stopsize/flow-control are pushed to the remote
// and awaited.
func (p *Port) SetConfig(ctx context.Context, cfg serialio.PortConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	open := p.open
	p.mu.Unlock()
	if open {
		if err := p.reconfigure(ctx, cfg); err != nil {
			return err
		}
	}
	p.mu.Lock()
	p.cfg = cfg
	p.mu.Unlock()
	return nil
}

// SetBaud is a convenience setter that only changes the baud rate.
func (p *Port) SetBaud(ctx context.Context, baud uint32) error {
	cfg := p.Config()
	cfg.Baud = baud
	return p.SetConfig(ctx, cfg)
}

// SetByteSize is a convenience setter that only changes the byte size.
func (p *Port) SetByteSize(ctx context.Context, size int) error {
	cfg := p.Config()
	cfg.ByteSize = size
	return p.SetConfig(ctx, cfg)
}

// SetParity is a convenience setter that only changes the parity.
func (p *Port) SetParity(ctx context.Context, parity serialio.Parity) error {
	cfg := p.Config()
	cfg.Parity = parity
	return p.SetConfig(ctx, cfg)
}

// SetStopBits is a convenience setter that only changes the stop bits.
func (p *Port) SetStopBits(ctx context.Context, sb serialio.StopBits) error {
	cfg := p.Config()
	cfg.StopBits = sb
	return p.SetConfig(ctx, cfg)
}

// ResetInputBuffer sends PURGE_RECEIVE and drains the local queue, after a
// short suspension point to let the reader quiesce first.
func (p *Port) ResetInputBuffer(ctx context.Context) error {
	if !p.IsOpen() {
		return p.errf(serialio.ErrNotOpen, "reset_input_buffer", nil)
	}
	if err := p.sendPurge(ctx, purgeReceive); err != nil {
		return err
	}
	runtimeGosched()
	p.queue.Drain()
	return nil
}

// ResetOutputBuffer sends PURGE_TRANSMIT.
func (p *Port) ResetOutputBuffer(ctx context.Context) error {
	return p.sendPurge(ctx, purgeTransmit)
}

func (p *Port) sendPurge(ctx context.Context, which byte) error {
	param := p.comOthers["purge"]
	option, val := param.prepare([]byte{which})
	wait := param.waitChan()
	if err := p.sendSubnegotiation(option, val); err != nil {
		return err
	}
	deadline, cancel := context.WithTimeout(ctx, p.networkTimeout)
	defer cancel()
	select {
	case <-wait:
		return nil
	case <-deadline.Done():
		return p.errf(serialio.ErrNegotiationFailed, "purge", errors.New("remote did not acknowledge purge"))
	}
}

// SendBreak toggles BREAK on, waits d, then off.
func (p *Port) SendBreak(ctx context.Context, d time.Duration) error {
	if !p.IsOpen() {
		return p.errf(serialio.ErrNotOpen, "send_break", nil)
	}
	if err := p.setControl(ctx, controlBreakOn); err != nil {
		return err
	}
	time.Sleep(d)
	return p.setControl(ctx, controlBreakOff)
}

// getModemState returns the cached modem status byte, optionally triggering
// (and waiting a bounded time for) a fresh poll first.
func (p *Port) getModemState(ctx context.Context) (byte, error) {
	if !p.IsOpen() {
		return 0, p.errf(serialio.ErrNotOpen, "get_modem_state", nil)
	}
	if p.pollModemState && p.modem.stale() {
		if err := p.sendSubnegotiation(notifyModemstate, nil); err == nil {
			deadline, cancel := context.WithTimeout(ctx, p.networkTimeout)
		pollLoop:
			for p.modem.stale() {
				select {
				case <-deadline.Done():
					break pollLoop
				default:
					time.Sleep(modemPollInterval)
				}
			}
			cancel()
		}
	}
	v, ok := p.modem.cached()
	if !ok {
		return 0, p.errf(serialio.ErrNegotiationFailed, "get_modem_state", errors.New("remote sends no NOTIFY_MODEMSTATE"))
	}
	return v, nil
}

func (p *Port) CTS(ctx context.Context) (bool, error) {
	v, err := p.getModemState(ctx)
	return err == nil && v&modemstateCTS != 0, err
}

func (p *Port) DSR(ctx context.Context) (bool, error) {
	v, err := p.getModemState(ctx)
	return err == nil && v&modemstateDSR != 0, err
}

func (p *Port) RI(ctx context.Context) (bool, error) {
	v, err := p.getModemState(ctx)
	return err == nil && v&modemstateRI != 0, err
}

func (p *Port) CD(ctx context.Context) (bool, error) {
	v, err := p.getModemState(ctx)
	return err == nil && v&modemstateCD != 0, err
}

// --- raw write path, shared by user Write and internal protocol frames ---

func (p *Port) sendTelnetOption(action, option byte) {
	p.writeRawBestEffort([]byte{iac, action, option})
}

func (p *Port) sendTelnetOptions(pairs [][2]byte) error {
	buf := make([]byte, 0, len(pairs)*3)
	for _, pr := range pairs {
		buf = append(buf, iac, pr[0], pr[1])
	}
	return p.writeRaw(context.Background(), buf)
}

func (p *Port) sendSubnegotiation(option byte, value []byte) error {
	buf := make([]byte, 0, len(value)+6)
	buf = append(buf, iac, sb, optionComPort, option)
	buf = append(buf, escapeIAC(value)...)
	buf = append(buf, iac, se)
	return p.writeRaw(context.Background(), buf)
}

// writeRaw transmits pre-framed bytes under the write mutex. If ctx is
// cancelled mid-write the connection is conservatively closed, since a
// partially-sent frame leaves the peer's parser out of sync.
func (p *Port) writeRaw(ctx context.Context, data []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		p.conn.SetWriteDeadline(deadline)
		defer p.conn.SetWriteDeadline(time.Time{})
	}
	_, err := p.conn.Write(data)
	if err != nil {
		go p.Close()
		return p.errf(serialio.ErrTransportIO, "write", err)
	}
	if ctx.Err() != nil {
		go p.Close()
		return p.errf(serialio.ErrTimeout, "write", ctx.Err())
	}
	return nil
}

// writeRawBestEffort is used by the reader goroutine to answer unknown-option
// refusals and by option activation sends; errors there are not actionable
// beyond logging since they originate off the user's call stack.
func (p *Port) writeRawBestEffort(data []byte) {
	if err := p.writeRaw(context.Background(), data); err != nil && p.logger != nil {
		p.logger.Debugf("write failed: %v", err)
	}
}

func runtimeGosched() {
	// a scheduling point, giving the reader goroutine a chance to
	// observe PURGE_RECEIVE before the local queue is drained.
	time.Sleep(time.Millisecond)
}
