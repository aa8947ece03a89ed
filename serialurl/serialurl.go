// Package serialurl parses a single string identifying a serial channel —
// host:port, a scheme URL, or a bare device path — into a Target, and
// dispatches to whichever transport registered itself for that scheme.
// Transports register their Dialer from an init() so this package never
// imports rfc2217/uartport/tcpport directly, avoiding the import cycle those
// packages would otherwise have back to here.
package serialurl

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tiagocoutinho/serialio"
)

// Target is a parsed channel identifier plus whatever query options
// accompanied it.
type Target struct {
	Scheme string // "", "rfc2217", "serial+rfc2217", "tcp", or "serial" (bare device path)
	Host   string
	Port   string
	Path   string // populated instead of Host/Port for a bare device path

	LogLevel          string
	IgnoreSetControl  bool
	PollModem         bool
	NetworkTimeout    time.Duration
	HasNetworkTimeout bool
}

// Dialer opens a serialio.Port for a parsed Target, applying cfg.
type Dialer func(ctx context.Context, t *Target, cfg serialio.PortConfig) (serialio.Port, error)

var dialers = map[string]Dialer{}

// Register associates scheme with a Dialer. Called from each transport
// package's init(). Registering the same scheme twice panics, since it
// indicates two transports claim the same URL form.
func Register(scheme string, dial Dialer) {
	if _, exists := dialers[scheme]; exists {
		panic(fmt.Sprintf("serialurl: scheme %q already registered", scheme))
	}
	dialers[scheme] = dial
}

// Parse accepts "host:port", "rfc2217://host:port", "serial+rfc2217://host:port",
// "tcp://host:port", or a bare local device path (e.g. "/dev/ttyUSB0",
// "COM3"), each optionally followed by "?option=value[&...]".
func Parse(raw string) (*Target, error) {
	scheme, rest, hasScheme := strings.Cut(raw, "://")
	if !hasScheme {
		rest = raw
		scheme = ""
	}

	rest, query, _ := strings.Cut(rest, "?")

	t := &Target{Scheme: scheme}

	switch scheme {
	case "":
		if host, port, err := splitHostPort(rest); err == nil {
			t.Scheme, t.Host, t.Port = "rfc2217", host, port
		} else if _, port, cutErr := splitLast(rest, ':'); cutErr == nil && isNumeric(port) {
			// "host:port" shape with a numeric port that is out of range.
			return nil, configErr("parse", err)
		} else {
			// No parseable "host:port" shape: treat it as a bare local
			// device path (e.g. "/dev/ttyUSB0", "COM3").
			t.Scheme, t.Path = "serial", rest
		}
	case "rfc2217", "serial+rfc2217", "tcp":
		host, port, err := splitHostPort(rest)
		if err != nil {
			return nil, configErr("parse", err)
		}
		t.Host, t.Port = host, port
	case "serial":
		t.Path = rest
	default:
		return nil, configErr("parse", fmt.Errorf("unknown scheme %q", scheme))
	}

	if err := applyQuery(t, query); err != nil {
		return nil, err
	}
	return t, nil
}

func splitHostPort(s string) (host, port string, err error) {
	host, port, err = splitLast(s, ':')
	if err != nil {
		return "", "", err
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return "", "", fmt.Errorf("invalid port %q", port)
	}
	if n < 0 || n > 65535 {
		return "", "", fmt.Errorf("port %d out of range", n)
	}
	return host, port, nil
}

func isNumeric(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}

func splitLast(s string, sep byte) (string, string, error) {
	i := strings.LastIndexByte(s, sep)
	if i < 0 {
		return "", "", fmt.Errorf("missing %q in %q", string(sep), s)
	}
	return s[:i], s[i+1:], nil
}

func applyQuery(t *Target, query string) error {
	if query == "" {
		return nil
	}
	values, err := url.ParseQuery(query)
	if err != nil {
		return configErr("parse", err)
	}
	for key, vals := range values {
		v := ""
		if len(vals) > 0 {
			v = vals[0]
		}
		switch key {
		case "logging":
			t.LogLevel = v
		case "ign_set_control":
			t.IgnoreSetControl = true
		case "poll_modem":
			t.PollModem = true
		case "timeout":
			secs, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return configErr("parse", fmt.Errorf("invalid timeout %q", v))
			}
			t.NetworkTimeout = time.Duration(secs * float64(time.Second))
			t.HasNetworkTimeout = true
		default:
			return configErr("parse", fmt.Errorf("unknown option %q", key))
		}
	}
	return nil
}

// Open parses raw and dials it through the Dialer registered for its
// scheme.
func Open(ctx context.Context, raw string, cfg serialio.PortConfig) (serialio.Port, error) {
	t, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	dial, ok := dialers[t.Scheme]
	if !ok {
		return nil, configErr("open", fmt.Errorf("no transport registered for scheme %q", t.Scheme))
	}
	return dial(ctx, t, cfg)
}

func configErr(op string, err error) *serialio.PortError {
	return serialio.NewPortError(serialio.ErrConfig, op, "", "", err)
}
