package rfc2217

import (
	"context"

	"github.com/tiagocoutinho/serialio"
	"github.com/tiagocoutinho/serialio/serialurl"
)

func init() {
	serialurl.Register("rfc2217", dial)
	serialurl.Register("serial+rfc2217", dial)
}

func dial(ctx context.Context, t *serialurl.Target, cfg serialio.PortConfig) (serialio.Port, error) {
	var opts []Option
	if t.IgnoreSetControl {
		opts = append(opts, WithIgnoreSetControlAnswer())
	}
	if t.PollModem {
		opts = append(opts, WithPollModemState())
	}
	if t.HasNetworkTimeout {
		opts = append(opts, WithNetworkTimeout(t.NetworkTimeout))
	}
	p := New(t.Host, t.Port, cfg, opts...)
	if err := p.Open(ctx); err != nil {
		return nil, err
	}
	return p, nil
}
