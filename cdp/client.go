// Package cdp is a client for the Chrome DevTools Protocol. A Client lists
// the debuggable targets a browser exposes on its remote debugging port; a
// Session is a live connection to one of them, over which commands are sent
// and events observed.
package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/wirebird/cdpgo/log"
)

const (
	// DefaultHost and DefaultPort match a locally launched browser with
	// --remote-debugging-port=9222.
	DefaultHost = "localhost"
	DefaultPort = 9222
)

// Client locates debuggable targets on a browser's remote debugging port. Its
// only job is to hand out Sessions; it holds no connection state of its own.
type Client struct {
	host   string
	port   int
	httpc  *http.Client
	logger *log.Logger
}

// New returns a Client for the default localhost:9222 instance. A nil logger
// disables logging.
func New(logger *log.Logger) *Client {
	return NewWithHostPort(logger, DefaultHost, DefaultPort)
}

// NewWithHostPort returns a Client for a browser listening on a custom host
// and port.
func NewWithHostPort(logger *log.Logger, host string, port int) *Client {
	if logger == nil {
		logger = log.NullLogger()
	}
	return &Client{
		host:   host,
		port:   port,
		httpc:  http.DefaultClient,
		logger: logger,
	}
}

// Targets performs the discovery call and returns the browser's current
// target list, in the order the browser reports it.
func (c *Client) Targets(ctx context.Context) ([]Target, error) {
	url := fmt.Sprintf("http://%s:%d/json", c.host, c.port)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building discovery request: %w", err)
	}
	res, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCannotConnect, err)
	}
	defer res.Body.Close() //nolint:errcheck
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: discovery returned %s", ErrCannotConnect, res.Status)
	}

	var targets []Target
	if err := json.NewDecoder(res.Body).Decode(&targets); err != nil {
		return nil, fmt.Errorf("%w: decoding target list: %v", ErrCannotConnect, err)
	}
	c.logger.Debugf("cdp", "discovery returned %d targets", len(targets))
	return targets, nil
}

// ConnectToTab opens a session to the tab at the given index of the target
// list, as returned by Targets.
func (c *Client) ConnectToTab(ctx context.Context, index int) (*Session, error) {
	targets, err := c.Targets(ctx)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(targets) {
		return nil, fmt.Errorf("%w: index %d with %d targets", ErrInvalidTab, index, len(targets))
	}
	return c.connect(ctx, targets[index].WebSocketDebuggerURL)
}

// ConnectToTarget opens a session to the target with the given id, without a
// prior discovery call.
func (c *Client) ConnectToTarget(ctx context.Context, targetID string) (*Session, error) {
	wsURL := fmt.Sprintf("ws://%s:%d/devtools/page/%s", c.host, c.port, targetID)
	return c.connect(ctx, wsURL)
}

func (c *Client) connect(ctx context.Context, wsURL string) (*Session, error) {
	conn, err := establish(ctx, wsURL, c.logger)
	if err != nil {
		return nil, err
	}
	c.logger.Infof("cdp", "established CDP connection to %q", wsURL)
	return newSession(conn, c.logger), nil
}
