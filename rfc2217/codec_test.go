package rfc2217

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// recordingSink captures everything a codec classifies, for assertions.
type recordingSink struct {
	data       []byte
	negotiate  [][2]byte
	subneg     [][]byte
	commands   []byte
}

func (s *recordingSink) onData(b byte) { s.data = append(s.data, b) }
func (s *recordingSink) onNegotiate(command, option byte) {
	s.negotiate = append(s.negotiate, [2]byte{command, option})
}
func (s *recordingSink) onSubnegotiation(frame []byte) {
	cp := append([]byte(nil), frame...)
	s.subneg = append(s.subneg, cp)
}
func (s *recordingSink) onCommand(b byte) { s.commands = append(s.commands, b) }

func TestCodecPlainData(t *testing.T) {
	sink := &recordingSink{}
	c := newCodec(sink)
	c.feedAll([]byte("hello"))
	require.Equal(t, []byte("hello"), sink.data)
}

func TestCodecDoubledIACIsLiteral(t *testing.T) {
	sink := &recordingSink{}
	c := newCodec(sink)
	c.feedAll([]byte{'a', iac, iac, 'b'})
	require.Equal(t, []byte{'a', iac, 'b'}, sink.data)
}

func TestCodecNegotiation(t *testing.T) {
	sink := &recordingSink{}
	c := newCodec(sink)
	c.feedAll([]byte{iac, do, optionComPort})
	require.Equal(t, [][2]byte{{do, optionComPort}}, sink.negotiate)
}

func TestCodecSubnegotiation(t *testing.T) {
	sink := &recordingSink{}
	c := newCodec(sink)
	c.feedAll([]byte{iac, sb, optionComPort, setBaudrate, 0, 0, 0x25, 0x80, iac, se})
	require.Len(t, sink.subneg, 1)
	require.Equal(t, []byte{optionComPort, setBaudrate, 0, 0, 0x25, 0x80}, sink.subneg[0])
}

func TestCodecSubnegotiationWithEscapedIAC(t *testing.T) {
	sink := &recordingSink{}
	c := newCodec(sink)
	// a sub-option payload carrying a literal 0xFF byte, which the wire
	// format doubles when framing.
	c.feedAll([]byte{iac, sb, optionComPort, setControl, iac, iac, iac, se})
	require.Len(t, sink.subneg, 1)
	require.Equal(t, []byte{optionComPort, setControl, iac}, sink.subneg[0])
}

func TestCodecArbitraryChunkBoundariesMatchWholeBuffer(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		stream := rapid.SliceOfN(rapid.Byte(), 0, 64).Draw(rt, "stream")

		whole := &recordingSink{}
		newCodec(whole).feedAll(stream)

		chunked := &recordingSink{}
		c := newCodec(chunked)
		remaining := stream
		for len(remaining) > 0 {
			n := rapid.IntRange(1, len(remaining)).Draw(rt, "chunk")
			c.feedAll(remaining[:n])
			remaining = remaining[n:]
		}

		require.Equal(rt, whole.data, chunked.data)
		require.Equal(rt, whole.negotiate, chunked.negotiate)
		require.Equal(rt, len(whole.subneg), len(chunked.subneg))
		for i := range whole.subneg {
			require.True(rt, bytes.Equal(whole.subneg[i], chunked.subneg[i]))
		}
	})
}

func TestEscapeIACDoublesEveryOccurrence(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		data := rapid.SliceOfN(rapid.Byte(), 0, 64).Draw(rt, "data")
		escaped := escapeIAC(data)

		// round-trip: feeding the escaped bytes through the codec as plain
		// data must reproduce the original, unescaped data exactly.
		sink := &recordingSink{}
		newCodec(sink).feedAll(escaped)
		require.Equal(rt, data, sink.data)

		count := 0
		for _, b := range data {
			if b == iac {
				count++
			}
		}
		require.Equal(rt, len(data)+count, len(escaped))
	})
}
