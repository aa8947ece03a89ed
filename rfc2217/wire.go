// Package rfc2217 implements a client for RFC 2217 (Telnet Com Port
// Control): the Telnet option-negotiation state machine, the Com Port
// Option subnegotiation protocol, the read-loop byte parser, modem/line
// state caching, and a serialio.Port facade over all of it.
package rfc2217

import "github.com/tiagocoutinho/serialio"

// Telnet command bytes (RFC 854).
const (
	iac  byte = 255
	se   byte = 240
	nop  byte = 241
	sb   byte = 250
	will byte = 251
	wont byte = 252
	do   byte = 253
	dont byte = 254
)

const iacDoubled = iac

// Telnet options used by RFC 2217 negotiation.
const (
	optionBinary      byte = 0
	optionEcho        byte = 1
	optionSGA         byte = 3
	optionComPort     byte = 44 // 0x2C
	serverComPortBase byte = 100
)

// Com Port Option sub-option codes (client → server). Server → client acks
// are the same code plus 100.
const (
	setBaudrate byte = 1
	setDatasize byte = 2
	setParity   byte = 3
	setStopsize byte = 4
	setControl  byte = 5

	notifyLinestate  byte = 6
	notifyModemstate byte = 7

	flowcontrolSuspend byte = 8
	flowcontrolResume  byte = 9

	setLinestateMask byte = 10
	setModemstateMask byte = 11

	purgeData byte = 12
)

func serverAck(clientCode byte) byte { return clientCode + serverComPortBase }

// Purge targets for the PURGE_DATA sub-option.
const (
	purgeReceive byte = 1
	purgeTransmit byte = 2
	purgeBoth     byte = 3
)

// SET_CONTROL values.
const (
	controlFlowNone byte = 1
	controlFlowSW   byte = 2
	controlFlowHW   byte = 3

	controlBreakOn  byte = 5
	controlBreakOff byte = 6

	controlDTROn  byte = 8
	controlDTROff byte = 9

	controlRTSOn  byte = 11
	controlRTSOff byte = 12
)

// Modem state bitmask (SERVER_NOTIFY_MODEMSTATE payload).
const (
	modemstateCTS byte = 0x10
	modemstateDSR byte = 0x20
	modemstateRI  byte = 0x40
	modemstateCD  byte = 0x80
)

// parityWire maps serialio.Parity to its RFC 2217 wire value.
var parityWire = map[serialio.Parity]byte{
	serialio.ParityNone:  1,
	serialio.ParityOdd:   2,
	serialio.ParityEven:  3,
	serialio.ParityMark:  4,
	serialio.ParitySpace: 5,
}

// stopBitsWire maps serialio.StopBits to its RFC 2217 wire value.
var stopBitsWire = map[serialio.StopBits]byte{
	serialio.StopBitsOne:     1,
	serialio.StopBitsTwo:     2,
	serialio.StopBitsOneHalf: 3,
}
