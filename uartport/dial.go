package uartport

import (
	"context"

	"github.com/tiagocoutinho/serialio"
	"github.com/tiagocoutinho/serialio/serialurl"
)

func init() {
	serialurl.Register("serial", dial)
}

func dial(ctx context.Context, t *serialurl.Target, cfg serialio.PortConfig) (serialio.Port, error) {
	p := New(t.Path, cfg)
	if err := p.Open(ctx); err != nil {
		return nil, err
	}
	return p, nil
}
