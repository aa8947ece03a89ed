// Package tcpport implements serialio.Port over a plain TCP socket, with no
// protocol layer and no remote configuration: baud/parity/stopbits/modem
// lines are concepts the wire simply doesn't carry. Grounded on the
// original aio/tcp.py Serial, which is a thin pass-through over a raw
// socket for exactly the same reason.
package tcpport
