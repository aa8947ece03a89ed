// Package uartport implements serialio.Port directly over a local character
// device (/dev/ttyUSB0, /dev/ttyS0, ...) via termios and the handful of
// serial-specific ioctls Linux exposes on top of it. Unlike rfc2217, there is
// no protocol negotiation: configuration is a direct termios read-modify-
// write, and modem lines are read synchronously off TIOCMGET with no cache.
package uartport
