package serialio

import "context"

// ReadLine reads a single line up to and including eol, per readuntil/
// readline in the source SerialBase.
func ReadLine(ctx context.Context, p Port, eol []byte) ([]byte, error) {
	if eol == nil {
		eol = []byte{'\n'}
	}
	return p.ReadUntil(ctx, eol, 0)
}

// ReadLines reads n lines in sequence, stopping early (with a short final
// slice) if an error, including io.EOF, interrupts it.
func ReadLines(ctx context.Context, p Port, n int, eol []byte) ([][]byte, error) {
	lines := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		line, err := ReadLine(ctx, p, eol)
		if len(line) > 0 {
			lines = append(lines, line)
		}
		if err != nil {
			return lines, err
		}
	}
	return lines, nil
}

// WriteReadLine writes data then reads a single reply line, the common
// request/response idiom for line-oriented instruments.
func WriteReadLine(ctx context.Context, p Port, data, eol []byte) ([]byte, error) {
	if _, err := p.Write(ctx, data); err != nil {
		return nil, err
	}
	return ReadLine(ctx, p, eol)
}

// WriteReadLines writes data then reads n reply lines.
func WriteReadLines(ctx context.Context, p Port, data []byte, n int, eol []byte) ([][]byte, error) {
	if _, err := p.Write(ctx, data); err != nil {
		return nil, err
	}
	return ReadLines(ctx, p, n, eol)
}

// WriteLinesReadLines writes every item in lines concatenated, then reads n
// reply lines (n defaults to len(lines) when 0).
func WriteLinesReadLines(ctx context.Context, p Port, lines [][]byte, n int, eol []byte) ([][]byte, error) {
	if n <= 0 {
		n = len(lines)
	}
	var data []byte
	for _, l := range lines {
		data = append(data, l...)
	}
	if _, err := p.Write(ctx, data); err != nil {
		return nil, err
	}
	return ReadLines(ctx, p, n, eol)
}
