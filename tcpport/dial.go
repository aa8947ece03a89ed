package tcpport

import (
	"context"

	"github.com/tiagocoutinho/serialio"
	"github.com/tiagocoutinho/serialio/serialurl"
)

func init() {
	serialurl.Register("tcp", dial)
}

func dial(ctx context.Context, t *serialurl.Target, cfg serialio.PortConfig) (serialio.Port, error) {
	var opts []Option
	if t.HasNetworkTimeout {
		opts = append(opts, WithDialTimeout(t.NetworkTimeout))
	}
	p := New(t.Host, t.Port, cfg, opts...)
	if err := p.Open(ctx); err != nil {
		return nil, err
	}
	return p, nil
}
