package rfc2217

import "encoding/binary"

// encodeBaudrate packs a baud rate as the 4-byte big-endian value the wire
// protocol expects. Valid range is 1 <= b < 2^32.
func encodeBaudrate(b uint32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, b)
	return buf
}

func decodeBaudrate(buf []byte) uint32 {
	if len(buf) < 4 {
		return 0
	}
	return binary.BigEndian.Uint32(buf)
}
