package rfc2217

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tiagocoutinho/serialio"
)

// fakeServer plays the remote end of an RFC 2217 session: it auto-accepts
// every DO/WILL/DONT/WONT it receives and, by default, acknowledges every
// Com Port Option subnegotiation by echoing the same value back with the
// ack (+100) code, which is enough for Port.Open to complete negotiation.
// A test can override onSubneg to script S3-S6-style exact wire behavior.
type fakeServer struct {
	t       *testing.T
	conn    net.Conn
	mu      sync.Mutex
	onSubneg func(option byte, value []byte)
}

func (s *fakeServer) onData(b byte)      {}
func (s *fakeServer) onCommand(b byte)   {}

func (s *fakeServer) onNegotiate(command, option byte) {
	switch command {
	case do:
		s.send(will, option)
	case will:
		s.send(do, option)
	case dont:
		s.send(wont, option)
	case wont:
		s.send(dont, option)
	}
}

func (s *fakeServer) onSubnegotiation(frame []byte) {
	if len(frame) < 2 || frame[0] != optionComPort {
		return
	}
	option, value := frame[1], frame[2:]
	if s.onSubneg != nil {
		s.onSubneg(option, value)
		return
	}
	s.ackSubneg(option, value)
}

// ackSubneg replies to a Com Port Option request with the default
// success echo: same option+100, same value.
func (s *fakeServer) ackSubneg(option byte, value []byte) {
	s.sendSubFrame(append([]byte{serverAck(option)}, value...))
}

func (s *fakeServer) send(command, option byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.Write([]byte{iac, command, option})
}

// sendSubFrame transmits a Com Port Option subnegotiation whose payload is
// option-code || value (already excluding the leading optionComPort byte).
func (s *fakeServer) sendSubFrame(payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := []byte{iac, sb, optionComPort}
	buf = append(buf, escapeIAC(payload)...)
	buf = append(buf, iac, se)
	s.conn.Write(buf)
}

func (s *fakeServer) writeRaw(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.Write(data)
}

func (s *fakeServer) run() {
	c := newCodec(s)
	buf := make([]byte, 1024)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			c.feedAll(buf[:n])
		}
		if err != nil {
			return
		}
	}
}

// startFakeServer listens on loopback and returns an address plus an
// accepted connection handed to the given server once the client dials in.
func startFakeServer(t *testing.T) (addr string, serverReady <-chan *fakeServer) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	ready := make(chan *fakeServer, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		s := &fakeServer{t: t, conn: conn}
		ready <- s
		s.run()
	}()
	return ln.Addr().String(), ready
}

func openTestPort(t *testing.T, opts ...Option) (*Port, *fakeServer) {
	t.Helper()
	addr, ready := startFakeServer(t)
	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)

	p := New(host, port, serialio.DefaultConfig(), opts...)
	errc := make(chan error, 1)
	go func() { errc <- p.Open(context.Background()) }()

	var srv *fakeServer
	select {
	case srv = <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("fake server never accepted connection")
	}
	require.NoError(t, <-errc)
	t.Cleanup(func() { p.Close() })
	return p, srv
}

// A doubled IAC in the data stream collapses to a single literal 0xFF byte.
func TestReadCollapsesDoubledIAC(t *testing.T) {
	p, srv := openTestPort(t)
	srv.writeRaw([]byte{'A', iac, iac, 'B'})

	buf := make([]byte, 3)
	n, err := p.Read(context.Background(), buf)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, []byte("A\xffB"), buf)
}

// SetBaud sends the exact wire frame RFC 2217 prescribes for
// SET_BAUDRATE(115200), and the parameter settles ACTIVE on a matching echo.
func TestSetBaudSendsWireFrame(t *testing.T) {
	p, srv := openTestPort(t)

	var captured []byte
	srv.mu.Lock()
	srv.onSubneg = func(option byte, value []byte) {
		if option == setBaudrate {
			captured = append([]byte{option}, value...)
		}
		srv.ackSubneg(option, value)
	}
	srv.mu.Unlock()

	require.NoError(t, p.SetBaud(context.Background(), 115200))
	require.Equal(t, []byte{setBaudrate, 0x00, 0x01, 0xC2, 0x00}, captured)
	require.Equal(t, stateActive, p.comSettings["baudrate"].currentState())
}

// When the server echoes back a different baud value, the parameter drives
// to REALLY_INACTIVE and the call fails.
func TestSetBaudMismatchFailsNegotiation(t *testing.T) {
	p, srv := openTestPort(t)

	srv.mu.Lock()
	srv.onSubneg = func(option byte, value []byte) {
		if option == setBaudrate {
			srv.ackSubneg(option, []byte{0x00, 0x00, 0x04, 0x00})
			return
		}
		srv.ackSubneg(option, value)
	}
	srv.mu.Unlock()

	err := p.SetBaud(context.Background(), 115200)
	require.Error(t, err)
	var portErr *serialio.PortError
	require.ErrorAs(t, err, &portErr)
	require.Equal(t, serialio.ErrNegotiationFailed, portErr.Kind)
	require.Equal(t, stateReallyInactive, p.comSettings["baudrate"].currentState())
}

// ResetOutputBuffer sends the plain PURGE_DATA(TRANSMIT) frame, and a literal
// 0xFF in a subnegotiation payload is doubled on the wire.
func TestResetOutputBufferSendsPurgeFrame(t *testing.T) {
	p, srv := openTestPort(t)

	var captured []byte
	srv.mu.Lock()
	srv.onSubneg = func(option byte, value []byte) {
		if option == purgeData {
			captured = append([]byte{option}, value...)
		}
		srv.ackSubneg(option, value)
	}
	srv.mu.Unlock()

	require.NoError(t, p.ResetOutputBuffer(context.Background()))
	require.Equal(t, []byte{purgeData, purgeTransmit}, captured)

	// a purge value of 0xFF (not a real purge code, but the escaping rule
	// applies to any subnegotiation payload byte) doubles on the wire.
	framed := escapeIAC([]byte{purgeData, 0xFF})
	require.Equal(t, []byte{purgeData, iac, iac}, framed)
}

// CTS triggers NOTIFY_MODEMSTATE when the cache is stale and poll_modem is
// enabled; the pushed byte answers CTS/DSR/RI/CD.
func TestModemLinesPollWhenStale(t *testing.T) {
	p, srv := openTestPort(t, WithPollModemState())

	srv.mu.Lock()
	srv.onSubneg = func(option byte, value []byte) {
		if option == notifyModemstate {
			srv.sendSubFrame([]byte{notifyModemstate, 0x30})
			return
		}
		srv.ackSubneg(option, value)
	}
	srv.mu.Unlock()

	cts, err := p.CTS(context.Background())
	require.NoError(t, err)
	require.True(t, cts)

	dsr, err := p.DSR(context.Background())
	require.NoError(t, err)
	require.True(t, dsr)

	ri, err := p.RI(context.Background())
	require.NoError(t, err)
	require.False(t, ri)

	cd, err := p.CD(context.Background())
	require.NoError(t, err)
	require.False(t, cd)
}

func TestOpenTwiceFails(t *testing.T) {
	p, _ := openTestPort(t)
	err := p.Open(context.Background())
	require.Error(t, err)
	var portErr *serialio.PortError
	require.ErrorAs(t, err, &portErr)
	require.Equal(t, serialio.ErrAlreadyOpen, portErr.Kind)
}

func TestCloseIsIdempotent(t *testing.T) {
	p, _ := openTestPort(t)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	require.False(t, p.IsOpen())
}

func TestReadAfterCloseFails(t *testing.T) {
	p, _ := openTestPort(t)
	require.NoError(t, p.Close())
	_, err := p.Read(context.Background(), make([]byte, 1))
	require.Error(t, err)
	var portErr *serialio.PortError
	require.ErrorAs(t, err, &portErr)
	require.Equal(t, serialio.ErrNotOpen, portErr.Kind)
}
