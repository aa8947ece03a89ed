package rfc2217

// optionState is the four-valued Telnet option negotiation state.
type optionState int

const (
	stateInactive optionState = iota
	stateRequested
	stateActive
	stateReallyInactive
)

func (s optionState) String() string {
	switch s {
	case stateInactive:
		return "INACTIVE"
	case stateRequested:
		return "REQUESTED"
	case stateActive:
		return "ACTIVE"
	case stateReallyInactive:
		return "REALLY_INACTIVE"
	default:
		return "UNKNOWN"
	}
}

// telnetOption tracks DO/DONT/WILL/WONT for a single option, as seen from
// one side of the negotiation (a port registers two entries for options
// negotiated separately for "we" and "they"). Only ever mutated from the
// reader goroutine (C4); read by the facade via the single-word `active`
// field. Not safe for concurrent writers.
type telnetOption struct {
	name     string
	option   byte
	sendYes  byte
	sendNo   byte
	ackYes   byte
	ackNo    byte
	state    optionState
	active   bool
	mandatory bool

	onActivate func()
	onChange   func(*telnetOption)

	// send is invoked to transmit a negotiation reply; bound to the port's
	// write path when the option is registered.
	send func(command, option byte)
}

func newTelnetOption(name string, option, sendYes, sendNo, ackYes, ackNo byte, initial optionState, send func(byte, byte)) *telnetOption {
	return &telnetOption{
		name:    name,
		option:  option,
		sendYes: sendYes,
		sendNo:  sendNo,
		ackYes:  ackYes,
		ackNo:   ackNo,
		state:   initial,
		send:    send,
	}
}

// processIncoming applies a received DO/DONT/WILL/WONT to this option's
// state machine.
func (o *telnetOption) processIncoming(command byte) {
	switch command {
	case o.ackYes:
		switch o.state {
		case stateRequested:
			o.state = stateActive
			o.active = true
			o.fireActivate()
		case stateActive:
			// stay
		case stateInactive:
			o.state = stateActive
			o.send(o.sendYes, o.option)
			o.active = true
			o.fireActivate()
		case stateReallyInactive:
			o.send(o.sendNo, o.option)
		}
	case o.ackNo:
		switch o.state {
		case stateRequested:
			o.state = stateInactive
			o.active = false
		case stateActive:
			o.state = stateInactive
			o.send(o.sendNo, o.option)
			o.active = false
		case stateInactive, stateReallyInactive:
			// stay
		}
	default:
		return
	}
	o.fireChange()
}

func (o *telnetOption) fireActivate() {
	if o.onActivate != nil {
		o.onActivate()
	}
}

func (o *telnetOption) fireChange() {
	if o.onChange != nil {
		o.onChange(o)
	}
}
