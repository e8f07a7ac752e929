package stream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/coder/websocket"
)

// StreamPath is the Signal K v1 delta stream endpoint.
const StreamPath = "/signalk/v1/stream"

// maxMessageSize bounds a single delta frame.
const maxMessageSize = 1 << 20

// StreamURL builds the delta stream URL for a Signal K server. base may use
// http(s) or ws(s); subscribe must be "all" or "self".
func StreamURL(base, subscribe string) (string, error) {
	if subscribe != "all" && subscribe != "self" {
		return "", fmt.Errorf("invalid subscribe mode %q: expected all or self", subscribe)
	}
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("server url %q has no host", base)
	}
	u.Path = StreamPath
	u.RawQuery = url.Values{"subscribe": {subscribe}}.Encode()
	return u.String(), nil
}

// WebSocketDialer connects to a Signal K delta stream over WebSocket.
type WebSocketDialer struct {
	URL string

	// Client is used for the opening handshake; nil means http.DefaultClient.
	Client *http.Client
	Header http.Header
}

// Dial opens the stream.
func (d *WebSocketDialer) Dial(ctx context.Context) (Conn, error) {
	c, _, err := websocket.Dial(ctx, d.URL, &websocket.DialOptions{
		HTTPClient: d.Client,
		HTTPHeader: d.Header,
	})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", d.URL, err)
	}
	c.SetReadLimit(maxMessageSize)
	return &wsConn{c: c}, nil
}

type wsConn struct {
	c *websocket.Conn
}

// Read returns the next text or binary frame.
func (w *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := w.c.Read(ctx)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (w *wsConn) Close() error {
	return w.c.Close(websocket.StatusNormalClosure, "")
}
