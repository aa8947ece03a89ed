package uartport

import (
	"os"

	"go.uber.org/zap"

	"github.com/tiagocoutinho/serialio/internal/chunkqueue"
)

const readerChunkSize = 1024

// reader is the single goroutine that turns blocking fd reads into pushes
// onto the chunk queue, the same split the rfc2217 transport uses between
// its network reader and Port.Read.
type reader struct {
	f      *os.File
	queue  *chunkqueue.Queue
	logger *zap.SugaredLogger
	done   chan struct{}
}

func newReader(f *os.File, queue *chunkqueue.Queue, logger *zap.SugaredLogger) *reader {
	return &reader{f: f, queue: queue, logger: logger, done: make(chan struct{})}
}

func (r *reader) run() {
	defer close(r.done)
	defer r.queue.CloseEOF()
	buf := make([]byte, readerChunkSize)
	for {
		n, err := r.f.Read(buf)
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
