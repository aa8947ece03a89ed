package syncio

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tiagocoutinho/serialio"
)

// fakePort is a minimal in-memory serialio.Port for exercising the driver
// goroutine's ordering guarantees without a real transport.
type fakePort struct {
	mu   sync.Mutex
	open bool
	buf  []byte
	cfg  serialio.PortConfig
}

func (f *fakePort) Open(ctx context.Context) error { f.open = true; return nil }
func (f *fakePort) Close() error                    { f.open = false; return nil }
func (f *fakePort) IsOpen() bool                    { return f.open }

func (f *fakePort) Read(ctx context.Context, p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := copy(p, f.buf)
	f.buf = f.buf[n:]
	return n, nil
}

func (f *fakePort) Write(ctx context.Context, p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buf = append(f.buf, p...)
	return len(p), nil
}

func (f *fakePort) ReadUntil(ctx context.Context, sep []byte, max int) ([]byte, error) {
	return nil, nil
}
func (f *fakePort) InWaiting() int                      { return len(f.buf) }
func (f *fakePort) Config() serialio.PortConfig         { return f.cfg }
func (f *fakePort) SetConfig(ctx context.Context, c serialio.PortConfig) error {
	f.cfg = c
	return nil
}
func (f *fakePort) ResetInputBuffer(ctx context.Context) error  { f.buf = nil; return nil }
func (f *fakePort) ResetOutputBuffer(ctx context.Context) error { return nil }
func (f *fakePort) SendBreak(ctx context.Context, d time.Duration) error { return nil }
func (f *fakePort) CTS(ctx context.Context) (bool, error)               { return true, nil }
func (f *fakePort) DSR(ctx context.Context) (bool, error)               { return false, nil }
func (f *fakePort) RI(ctx context.Context) (bool, error)                { return false, nil }
func (f *fakePort) CD(ctx context.Context) (bool, error)                { return false, nil }

var _ serialio.Port = (*fakePort)(nil)

func TestWriteThenRead(t *testing.T) {
	p := New(&fakePort{})
	defer p.Stop()

	require.NoError(t, p.Open(time.Second))
	n, err := p.Write(time.Second, []byte("hello"))
	require.NoError(t, err)
	require.Equal(t, 5, n)

	buf := make([]byte, 5)
	n, err = p.Read(time.Second, buf)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf[:n]))
}

func TestConcurrentCallsSerialize(t *testing.T) {
	p := New(&fakePort{})
	defer p.Stop()
	require.NoError(t, p.Open(time.Second))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = p.Write(time.Second, []byte("x"))
		}()
	}
	wg.Wait()
	require.Equal(t, 20, p.InWaiting())
}
