package cdp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wirebird/cdpgo/log"
)

const (
	handshakeTimeout = 10 * time.Second

	// handshakeResumeMax caps how often an interrupted handshake is resumed
	// on the same endpoint before treating it as a hard failure.
	handshakeResumeMax = 8

	wsReadBufferSize  = 1 << 20
	wsWriteBufferSize = 1 << 20
)

// handshakeState tracks the upgrade attempt against one endpoint.
type handshakeState int

const (
	handshakeNotStarted handshakeState = iota
	handshakeInProgress
	handshakeDone
	handshakeFailed
)

func (s handshakeState) String() string {
	switch s {
	case handshakeNotStarted:
		return "not started"
	case handshakeInProgress:
		return "in progress"
	case handshakeDone:
		return "done"
	case handshakeFailed:
		return "failed"
	}
	return "unknown"
}

// establish dials the channel URL, trying each resolved endpoint in order
// until one completes the websocket upgrade. The first successful handshake
// wins; an endpoint that hard-fails is abandoned and the next one tried. Only
// when every endpoint is exhausted does the whole dial fail.
func establish(ctx context.Context, wsURL string, logger *log.Logger) (*websocket.Conn, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing channel URL %q: %v", ErrCannotConnect, wsURL, err)
	}

	endpoints, err := resolveEndpoints(ctx, u)
	if err != nil {
		return nil, err
	}

	for _, ep := range endpoints {
		conn, err := upgrade(ctx, u, ep, logger)
		if err == nil {
			return conn, nil
		}
		logger.Debugf("cdp:dial", "endpoint %s: %v", ep, err)
	}
	return nil, fmt.Errorf("%w: no endpoint of %q accepted the upgrade", ErrCannotConnect, wsURL)
}

// resolveEndpoints expands the URL's host into dialable host:port endpoints,
// IPv4 before IPv6 so the dial doesn't stall on address families unlikely to
// be reachable first.
func resolveEndpoints(ctx context.Context, u *url.URL) ([]string, error) {
	port := u.Port()
	if port == "" {
		if u.Scheme == "wss" {
			port = "443"
		} else {
			port = "80"
		}
	}

	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, u.Hostname())
	if err != nil {
		return nil, fmt.Errorf("%w: resolving %q: %v", ErrCannotConnect, u.Hostname(), err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: no addresses for %q", ErrCannotConnect, u.Hostname())
	}
	return orderEndpoints(addrs, port), nil
}

func orderEndpoints(addrs []net.IPAddr, port string) []string {
	sort.SliceStable(addrs, func(i, j int) bool {
		return addrs[i].IP.To4() != nil && addrs[j].IP.To4() == nil
	})
	eps := make([]string, 0, len(addrs))
	for _, a := range addrs {
		eps = append(eps, net.JoinHostPort(a.IP.String(), port))
	}
	return eps
}

// wsDialer is the subset of websocket.Dialer the handshake loop needs; tests
// substitute their own.
type wsDialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

// newEndpointDialer returns a dialer pinned to one resolved endpoint, so the
// upgrade request carries the original URL's host while the TCP connection
// goes where candidate ordering decided.
func newEndpointDialer(endpoint string) *websocket.Dialer {
	return &websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
		ReadBufferSize:   wsReadBufferSize,
		WriteBufferSize:  wsWriteBufferSize,
		NetDialContext: func(ctx context.Context, network, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, endpoint)
		},
	}
}

// upgrade runs the handshake against a single endpoint.
func upgrade(ctx context.Context, u *url.URL, endpoint string, logger *log.Logger) (*websocket.Conn, error) {
	return resumeHandshake(ctx, newEndpointDialer(endpoint), u.String(), endpoint, logger)
}

// resumeHandshake drives the upgrade to completion. A handshake cut short by
// a transient network condition is a continuation signal, not a failure: it
// is resumed on the same endpoint rather than failing over. The resume budget
// is bounded so an unresponsive peer cannot stall the dial forever.
func resumeHandshake(ctx context.Context, dialer wsDialer, urlStr, endpoint string, logger *log.Logger) (*websocket.Conn, error) {
	state := handshakeNotStarted
	logger.Debugf("cdp:dial", "handshake %s on %s", state, endpoint)
	var lastErr error
	for attempt := 0; ; attempt++ {
		state = handshakeInProgress
		conn, resp, err := dialer.DialContext(ctx, urlStr, http.Header{})
		if err != nil && resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err == nil {
			state = handshakeDone
			logger.Debugf("cdp:dial", "handshake %s on %s", state, endpoint)
			return conn, nil
		}
		if interrupted(err) && attempt < handshakeResumeMax {
			logger.Debugf("cdp:dial", "handshake interrupted on %s, resuming (%d/%d)",
				endpoint, attempt+1, handshakeResumeMax)
			continue
		}
		state = handshakeFailed
		lastErr = err
		break
	}
	logger.Debugf("cdp:dial", "handshake %s on %s: %v", state, endpoint, lastErr)
	return nil, fmt.Errorf("upgrade handshake: %w", lastErr)
}

// interrupted reports whether a handshake error is a resumable condition
// rather than a rejection or refused connection.
func interrupted(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
