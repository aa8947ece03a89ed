package rfc2217

import (
	"io"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/tiagocoutinho/serialio/internal/chunkqueue"
)

const readerChunkSize = 1024

// reader is the single background consumer of the network stream. It owns
// no state of its own beyond the codec; all protocol state lives in the
// options/parameters/caches it drives, which it is the sole writer of for
// the lifetime of the connection.
type reader struct {
	conn    io.Reader
	options []*telnetOption
	params  map[byte]*comPortParameter // keyed by ackOption
	modem   *modemCache
	queue   *chunkqueue.Queue
	logger  *zap.SugaredLogger

	// writeRaw transmits an immediate reply (e.g. a refusal of an unknown
	// option); bound to the port's raw write path.
	writeRaw func([]byte)

	remoteSuspendFlow atomic.Bool

	done chan struct{}
}

func newReader(conn io.Reader, options []*telnetOption, params map[byte]*comPortParameter, modem *modemCache, queue *chunkqueue.Queue, writeRaw func([]byte), logger *zap.SugaredLogger) *reader {
	return &reader{
		conn:     conn,
		options:  options,
		params:   params,
		modem:    modem,
		queue:    queue,
		writeRaw: writeRaw,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// run drives the read loop until the stream ends or errors; it always
// leaves the queue terminated with an EOF sentinel and closes r.done.
func (r *reader) run() {
	defer close(r.done)
	defer r.queue.CloseEOF()
	c := newCodec(r)
	buf := make([]byte, readerChunkSize)
	for {
		n, err := r.conn.Read(buf)
		if n > 0 {
			c.feedAll(buf[:n])
		}
		if err != nil {
			if r.logger != nil {
				r.logger.Debugf("reader stopped: %v", err)
			}
			return
		}
		if n == 0 {
			return
		}
	}
}

// Done is closed once the reader goroutine has exited.
func (r *reader) Done() <-chan struct{} { return r.done }

// --- frameSink ---

func (r *reader) onData(b byte) {
	r.queue.Push([]byte{b})
}

func (r *reader) onCommand(command byte) {
	if r.logger != nil {
		r.logger.Warnf("ignoring telnet command 0x%02x", command)
	}
}

func (r *reader) onNegotiate(command, option byte) {
	known := false
	for _, opt := range r.options {
		if opt.option == option {
			opt.processIncoming(command)
			known = true
		}
	}
	if known {
		return
	}
	if command == will || command == do {
		reply := wont
		if command == will {
			reply = dont
		}
		r.writeRaw([]byte{iac, reply, option})
		if r.logger != nil {
			r.logger.Warnf("rejected unknown telnet option %d", option)
		}
	}
}

func (r *reader) onSubnegotiation(frame []byte) {
	if len(frame) < 2 || frame[0] != optionComPort {
		if r.logger != nil {
			r.logger.Warnf("ignoring subnegotiation: %v", frame)
		}
		return
	}
	option := frame[1]
	rest := frame[2:]
	switch option {
	case notifyLinestate:
		if len(frame) >= 3 {
			r.modem.onLinestate(frame[2])
		}
	case notifyModemstate:
		if len(frame) >= 3 {
			r.modem.onNotify(frame[2])
		}
	case flowcontrolSuspend:
		r.remoteSuspendFlow.Store(true)
	case flowcontrolResume:
		r.remoteSuspendFlow.Store(false)
	default:
		if p, ok := r.params[option]; ok {
			p.checkAnswer(rest)
		} else if r.logger != nil {
			r.logger.Warnf("ignoring COM_PORT_OPTION: %v", frame)
		}
	}
}
