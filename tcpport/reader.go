package tcpport

import (
	"io"

	"go.uber.org/zap"

	"github.com/tiagocoutinho/serialio/internal/chunkqueue"
)

const readerChunkSize = 1024

// reader is the single background consumer of the socket, mirroring the
// split rfc2217.reader and uartport.reader use between the raw stream and
// Port.Read.
type reader struct {
	conn   io.Reader
	queue  *chunkqueue.Queue
	logger *zap.SugaredLogger
	done   chan struct{}
}

func newReader(conn io.Reader, queue *chunkqueue.Queue, logger *zap.SugaredLogger) *reader {
	return &reader{conn: conn, queue: queue, logger: logger, done: make(chan struct{})}
}

func (r *reader) run() {
	defer close(r.done)
	defer r.queue.CloseEOF()
	buf := make([]byte, readerChunkSize)
	for {
		n, err := r.conn.Read(buf)
		if n > 0 {
			r.queue.Push(buf[:n])
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

func (r *reader) Done() <-chan struct{} { return r.done }
