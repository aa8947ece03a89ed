package rfc2217

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestComPortParameterAckOptionIsPlus100(t *testing.T) {
	p := newComPortParameter("baudrate", setBaudrate)
	require.Equal(t, setBaudrate, p.option)
	require.Equal(t, setBaudrate+100, p.ackOption)
}

func TestComPortParameterExactEchoCompletes(t *testing.T) {
	p := newComPortParameter("baudrate", setBaudrate)
	_, value := p.prepare(encodeBaudrate(9600))
	wait := p.waitChan()

	p.checkAnswer(value)

	select {
	case <-wait:
	default:
		t.Fatal("done channel not closed after matching echo")
	}
	require.Equal(t, stateActive, p.currentState())
}

func TestComPortParameterPrefixEchoCompletes(t *testing.T) {
	// servers may echo back more than was requested (e.g. datasize echoes
	// include a trailing status byte); a matching prefix still completes.
	p := newComPortParameter("datasize", setDatasize)
	_, value := p.prepare([]byte{8})
	wait := p.waitChan()

	p.checkAnswer(append(append([]byte{}, value...), 0x00))

	select {
	case <-wait:
	default:
		t.Fatal("done channel not closed after matching prefix echo")
	}
	require.Equal(t, stateActive, p.currentState())
}

func TestComPortParameterMismatchedEchoGoesReallyInactive(t *testing.T) {
	p := newComPortParameter("baudrate", setBaudrate)
	p.prepare(encodeBaudrate(9600))

	p.checkAnswer(encodeBaudrate(19200))

	require.Equal(t, stateReallyInactive, p.currentState())
}

func TestComPortParameterReprepareArmsFreshSignal(t *testing.T) {
	p := newComPortParameter("baudrate", setBaudrate)
	_, v1 := p.prepare(encodeBaudrate(9600))
	first := p.waitChan()
	p.checkAnswer(v1)

	_, v2 := p.prepare(encodeBaudrate(19200))
	second := p.waitChan()
	require.NotEqual(t, first, second)

	p.checkAnswer(v2)
	select {
	case <-second:
	case <-time.After(time.Second):
		t.Fatal("second done channel never closed")
	}
}
