package rfc2217

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestOption(initial optionState) (*telnetOption, *[][2]byte) {
	var sent [][2]byte
	send := func(command, option byte) {
		sent = append(sent, [2]byte{command, option})
	}
	o := newTelnetOption("binary", optionBinary, do, dont, will, wont, initial, send)
	return o, &sent
}

func TestTelnetOptionRequestedToActiveOnAck(t *testing.T) {
	o, sent := newTestOption(stateRequested)
	activated := false
	o.onActivate = func() { activated = true }

	o.processIncoming(will)

	require.Equal(t, stateActive, o.state)
	require.True(t, o.active)
	require.True(t, activated)
	require.Empty(t, *sent)
}

func TestTelnetOptionInactiveReflectsPeerInitiatedYes(t *testing.T) {
	o, sent := newTestOption(stateInactive)

	o.processIncoming(will)

	require.Equal(t, stateActive, o.state)
	require.True(t, o.active)
	require.Equal(t, [][2]byte{{do, optionBinary}}, *sent)
}

func TestTelnetOptionReallyInactiveRefusesLateYes(t *testing.T) {
	o, sent := newTestOption(stateReallyInactive)

	o.processIncoming(will)

	require.Equal(t, stateReallyInactive, o.state)
	require.False(t, o.active)
	require.Equal(t, [][2]byte{{dont, optionBinary}}, *sent)
}

func TestTelnetOptionRequestedToInactiveOnNo(t *testing.T) {
	o, _ := newTestOption(stateRequested)

	o.processIncoming(wont)

	require.Equal(t, stateInactive, o.state)
	require.False(t, o.active)
}

func TestTelnetOptionActiveWithdrawnOnNo(t *testing.T) {
	o, sent := newTestOption(stateActive)
	o.active = true

	o.processIncoming(wont)

	require.Equal(t, stateInactive, o.state)
	require.False(t, o.active)
	require.Equal(t, [][2]byte{{dont, optionBinary}}, *sent)
}

func TestTelnetOptionIgnoresUnrelatedCommand(t *testing.T) {
	o, sent := newTestOption(stateInactive)

	o.processIncoming(dont)

	require.Equal(t, stateInactive, o.state)
	require.Empty(t, *sent)
}

func TestTelnetOptionFireChangeOnTransition(t *testing.T) {
	o, _ := newTestOption(stateRequested)
	var changed *telnetOption
	o.onChange = func(opt *telnetOption) { changed = opt }

	o.processIncoming(will)

	require.Same(t, o, changed)
}
