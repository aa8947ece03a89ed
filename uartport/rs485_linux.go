package uartport

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/tiagocoutinho/serialio"
)

// rs485Flags mirrors struct serial_rs485's feature bitmask.
type rs485Flags uint32

const (
	rs485Enabled      rs485Flags = 1 << 0
	rs485RTSOnSend    rs485Flags = 1 << 1
	rs485RTSAfterSend rs485Flags = 1 << 2
	rs485RXDuringTX   rs485Flags = 1 << 4
	rs485Terminate    rs485Flags = 1 << 5
)

// rawRS485 mirrors struct serial_rs485 field-for-field, including the kernel
// ABI's trailing padding.
type rawRS485 struct {
	flags              rs485Flags
	delayRTSBeforeSend uint32
	delayRTSAfterSend  uint32
	padding            [5]uint32
}

func getRS485(fd int) (rawRS485, error) {
	var cfg rawRS485
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(unix.TIOCGRS485), uintptr(unsafe.Pointer(&cfg)))
	if errno != 0 {
		return cfg, errno
	}
	return cfg, nil
}

func setRS485(fd int, cfg rawRS485) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(unix.TIOCSRS485), uintptr(unsafe.Pointer(&cfg)))
	if errno != 0 {
		return errno
	}
	return nil
}

func fromRS485Config(c *serialio.RS485Config) rawRS485 {
	var raw rawRS485
	if c == nil {
		return raw
	}
	if c.Enabled {
		raw.flags |= rs485Enabled
	}
	if c.RTSOnSend {
		raw.flags |= rs485RTSOnSend
	}
	if c.RTSAfterSend {
		raw.flags |= rs485RTSAfterSend
	}
	if c.RXDuringTX {
		raw.flags |= rs485RXDuringTX
	}
	if c.TerminateBus {
		raw.flags |= rs485Terminate
	}
	raw.delayRTSBeforeSend = uint32(c.DelayRTSBeforeSend.Milliseconds())
	raw.delayRTSAfterSend = uint32(c.DelayRTSAfterSend.Milliseconds())
	return raw
}
