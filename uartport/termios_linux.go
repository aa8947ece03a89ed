package uartport

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/tiagocoutinho/serialio"
)

// baudToCflag maps a numeric baud rate onto the CBAUD bits Linux termios
// expects, using golang.org/x/sys/unix's Bxxx constants rather than
// hand-rolled octal values.
var baudToCflag = map[uint32]uint32{
	50:      unix.B50,
	75:      unix.B75,
	110:     unix.B110,
	134:     unix.B134,
	150:     unix.B150,
	200:     unix.B200,
	300:     unix.B300,
	600:     unix.B600,
	1200:    unix.B1200,
	1800:    unix.B1800,
	2400:    unix.B2400,
	4800:    unix.B4800,
	9600:    unix.B9600,
	19200:   unix.B19200,
	38400:   unix.B38400,
	57600:   unix.B57600,
	115200:  unix.B115200,
	230400:  unix.B230400,
	460800:  unix.B460800,
	500000:  unix.B500000,
	576000:  unix.B576000,
	921600:  unix.B921600,
	1000000: unix.B1000000,
	1152000: unix.B1152000,
	1500000: unix.B1500000,
	2000000: unix.B2000000,
	2500000: unix.B2500000,
	3000000: unix.B3000000,
	3500000: unix.B3500000,
	4000000: unix.B4000000,
}

// applyConfig rewrites attrs in place to reflect cfg; VMIN/VTIME are left to
// the caller, which derives them from InterByteTimeout rather than the
// communication parameters.
func applyConfig(attrs *unix.Termios, cfg serialio.PortConfig) error {
	cflag, ok := baudToCflag[cfg.Baud]
	if !ok {
		return fmt.Errorf("unsupported baud rate %d", cfg.Baud)
	}

	attrs.Cflag &^= unix.CBAUD
	attrs.Cflag |= cflag

	attrs.Cflag &^= unix.CSIZE
	switch cfg.ByteSize {
	case 5:
		attrs.Cflag |= unix.CS5
	case 6:
		attrs.Cflag |= unix.CS6
	case 7:
		attrs.Cflag |= unix.CS7
	case 8:
		attrs.Cflag |= unix.CS8
	default:
		return fmt.Errorf("unsupported byte size %d", cfg.ByteSize)
	}

	attrs.Cflag &^= unix.PARENB | unix.PARODD | unix.CMSPAR
	attrs.Iflag &^= unix.INPCK | unix.ISTRIP
	switch cfg.Parity {
	case serialio.ParityNone:
	case serialio.ParityEven:
		attrs.Cflag |= unix.PARENB
		attrs.Iflag |= unix.INPCK
	case serialio.ParityOdd:
		attrs.Cflag |= unix.PARENB | unix.PARODD
		attrs.Iflag |= unix.INPCK
	case serialio.ParityMark:
		attrs.Cflag |= unix.PARENB | unix.PARODD | unix.CMSPAR
	case serialio.ParitySpace:
		attrs.Cflag |= unix.PARENB | unix.CMSPAR
	default:
		return fmt.Errorf("unsupported parity %v", cfg.Parity)
	}

	if cfg.StopBits == serialio.StopBitsTwo {
		attrs.Cflag |= unix.CSTOPB
	} else {
		attrs.Cflag &^= unix.CSTOPB
	}

	attrs.Iflag &^= unix.IXON | unix.IXOFF
	attrs.Cflag &^= unix.CRTSCTS
	if cfg.Flow&serialio.XonXoff != 0 {
		attrs.Iflag |= unix.IXON | unix.IXOFF
	}
	if cfg.Flow&serialio.RtsCts != 0 {
		attrs.Cflag |= unix.CRTSCTS
	}

	attrs.Cflag |= unix.CREAD | unix.CLOCAL
	attrs.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.INLCR | unix.IGNCR | unix.ICRNL
	attrs.Oflag &^= unix.OPOST
	attrs.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	return nil
}

func makeRaw(attrs *unix.Termios) {
	attrs.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	attrs.Oflag &^= unix.OPOST
	attrs.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	attrs.Cflag &^= unix.CSIZE | unix.PARENB
	attrs.Cflag |= unix.CS8
}
