package uartport

import "golang.org/x/sys/unix"

// getModemLines reads the live TIOCM_* bitmask. Unlike rfc2217 there is no
// cache: the ioctl is a local syscall, cheap enough to call directly on
// every CTS/DSR/RI/CD query.
func getModemLines(fd int) (int, error) {
	return unix.IoctlGetInt(fd, unix.TIOCMGET)
}

func setModemBits(fd int, bits int) error {
	return unix.IoctlSetPointerInt(fd, unix.TIOCMBIS, bits)
}

func clearModemBits(fd int, bits int) error {
	return unix.IoctlSetPointerInt(fd, unix.TIOCMBIC, bits)
}
