package rfc2217

// codecMode is the frame codec's parse state.
type codecMode int

const (
	modeNormal codecMode = iota
	modeIACSeen
	modeNegotiate
)

// frameSink receives the classified output of the codec: plain data bytes,
// a completed DO/DONT/WILL/WONT negotiation, or a completed subnegotiation
// frame (the bytes between IAC SB and IAC SE, with IAC already unescaped).
type frameSink interface {
	onData(b byte)
	onNegotiate(command, option byte)
	onSubnegotiation(frame []byte)
	onCommand(command byte) // any other telnet command (rare/ignored)
}

// codec is a one-byte-at-a-time Telnet/RFC2217 frame classifier. Feeding it
// a stream in arbitrary chunk sizes yields identical classification to
// feeding it as one buffer, since all state lives in the struct.
type codec struct {
	mode        codecMode
	pendingCmd  byte
	inSubneg    bool
	subneg      []byte
	sink        frameSink
}

func newCodec(sink frameSink) *codec {
	return &codec{sink: sink}
}

// feed classifies a single incoming byte.
func (c *codec) feed(b byte) {
	switch c.mode {
	case modeNormal:
		if b == iac {
			c.mode = modeIACSeen
			return
		}
		c.emitData(b)
	case modeIACSeen:
		switch b {
		case iac:
			// doubled IAC -> literal 0xFF data byte
			c.emitData(iac)
			c.mode = modeNormal
		case sb:
			c.inSubneg = true
			c.subneg = c.subneg[:0]
			c.mode = modeNormal
		case se:
			frame := c.subneg
			c.inSubneg = false
			c.subneg = nil
			c.mode = modeNormal
			c.sink.onSubnegotiation(frame)
		case do, dont, will, wont:
			c.pendingCmd = b
			c.mode = modeNegotiate
		default:
			c.sink.onCommand(b)
			c.mode = modeNormal
		}
	case modeNegotiate:
		c.sink.onNegotiate(c.pendingCmd, b)
		c.mode = modeNormal
	}
}

// feedAll classifies every byte of buf in order.
func (c *codec) feedAll(buf []byte) {
	for _, b := range buf {
		c.feed(b)
	}
}

func (c *codec) emitData(b byte) {
	if c.inSubneg {
		c.subneg = append(c.subneg, b)
		return
	}
	c.sink.onData(b)
}

// escapeIAC returns data with every 0xFF byte doubled, so a literal 0xFF in
// the payload can't be mistaken for the start of a Telnet command.
func escapeIAC(data []byte) []byte {
	count := 0
	for _, b := range data {
		if b == iac {
			count++
		}
	}
	if count == 0 {
		return data
	}
	out := make([]byte, 0, len(data)+count)
	for _, b := range data {
		if b == iac {
			out = append(out, iac, iac)
		} else {
			out = append(out, b)
		}
	}
	return out
}
