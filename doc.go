// Package serialio defines the transport-agnostic contract for asynchronous
// byte-stream serial communication: the Port interface, its configuration,
// and the typed errors every concrete transport (rfc2217, uartport, tcpport)
// reports through.
package serialio
