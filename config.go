package serialio

import "time"

// Parity is the communication parity setting.
type Parity byte

const (
	ParityNone Parity = iota
	ParityEven
	ParityOdd
	ParityMark
	ParitySpace
)

// StopBits is the number of stop bits used per frame.
type StopBits byte

const (
	StopBitsOne StopBits = iota
	StopBitsOneHalf
	StopBitsTwo
)

// FlowControl is a bitset of flow control modes. XonXoff and RtsCts are
// mutually exclusive on an open port; see PortConfig.Validate.
type FlowControl uint8

const (
	FlowNone FlowControl = 0
	XonXoff  FlowControl = 1 << iota
	RtsCts
	DsrDtr
)

// RS485Config mirrors the Linux struct serial_rs485 feature flags.
type RS485Config struct {
	Enabled            bool
	RTSOnSend          bool
	RTSAfterSend       bool
	RXDuringTX         bool
	TerminateBus       bool
	DelayRTSBeforeSend time.Duration
	DelayRTSAfterSend  time.Duration
}

// PortConfig holds the user-settable communication parameters shared by
// every transport. Not every field applies to every transport (e.g. Baud is
// meaningless over a raw TCP socket); transports that cannot honor a field
// simply store and ignore it.
type PortConfig struct {
	Baud             uint32
	ByteSize         int // 5, 6, 7 or 8
	Parity           Parity
	StopBits         StopBits
	Flow             FlowControl
	ReadTimeout      *time.Duration
	WriteTimeout     *time.Duration
	InterByteTimeout *time.Duration
	RS485            *RS485Config
	EOL              byte
	AutoReconnect    bool
}

// DefaultConfig returns the conventional 9600-8N1 configuration with LF as
// the line terminator.
func DefaultConfig() PortConfig {
	return PortConfig{
		Baud:     9600,
		ByteSize: 8,
		Parity:   ParityNone,
		StopBits: StopBitsOne,
		EOL:      '\n',
	}
}

// Validate checks invariants that must hold regardless of which transport
// consumes the configuration. It does not validate transport-specific
// ranges (e.g. a baud rate table); that is each transport's job.
func (c PortConfig) Validate() error {
	if c.Baud < 1 {
		return NewPortError(ErrConfig, "validate", "", "", nil).WithMsg("baud rate must be at least 1")
	}
	if c.Flow&RtsCts != 0 && c.Flow&XonXoff != 0 {
		return NewPortError(ErrConfig, "validate", "", "", nil).WithMsg("rtscts and xonxoff are mutually exclusive")
	}
	switch c.ByteSize {
	case 5, 6, 7, 8:
	default:
		return NewPortError(ErrConfig, "validate", "", "", nil).WithMsg("invalid byte size")
	}
	return nil
}
