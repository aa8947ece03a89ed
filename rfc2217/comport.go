package rfc2217

import "sync"

// comPortParameter tracks one outstanding Com Port Option subnegotiation
// request: baudrate, datasize, parity, stopsize, purge, control. The done
// channel is a one-shot signal recreated on every prepare().
type comPortParameter struct {
	name      string
	option    byte // client -> server code
	ackOption byte // server -> client code (== option+100)

	mu      sync.Mutex
	pending []byte
	state   optionState
	done    chan struct{}
}

func newComPortParameter(name string, option byte) *comPortParameter {
	return &comPortParameter{
		name:      name,
		option:    option,
		ackOption: serverAck(option),
		state:     stateInactive,
		done:      make(chan struct{}),
	}
}

// prepare records the value about to be requested and arms a fresh
// completion signal. Returns the option code and value to transmit.
func (p *comPortParameter) prepare(value []byte) (byte, []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = value
	p.state = stateRequested
	p.done = make(chan struct{})
	return p.option, p.pending
}

// checkAnswer compares a received sub-option echo against the pending
// value by prefix match and transitions state accordingly.
func (p *comPortParameter) checkAnswer(echo []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	match := len(echo) >= len(p.pending)
	if match {
		for i, b := range p.pending {
			if echo[i] != b {
				match = false
				break
			}
		}
	}
	if match {
		p.state = stateActive
		close(p.done)
	} else {
		p.state = stateReallyInactive
	}
}

// waitChan returns the current completion signal to wait on; must be read
// right after prepare() to avoid racing a concurrent re-prepare.
func (p *comPortParameter) waitChan() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

func (p *comPortParameter) currentState() optionState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}
