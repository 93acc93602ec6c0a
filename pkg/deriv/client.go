// Package deriv is a small client for the Deriv WebSocket API (v3).
//
// Each call opens a short-lived session: dial, optionally authorize, send
// one or more requests correlated by req_id, close. That matches how the
// engine uses the API (a candle pull or a single trade) and avoids keeping
// subscription state across reconnects.
//
// Usage example:
//
//	c := deriv.NewClient(deriv.Config{AppID: "1089", Token: os.Getenv("DERIV_API_TOKEN")})
//	candles, err := c.Candles(ctx, "R_100", 200, 300)
//	if err != nil { log.Fatal(err) }
//	contractID, err := c.Trade(ctx, deriv.TradeRequest{Symbol: "R_100", ContractType: deriv.ContractCall, Amount: 1})
package deriv

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultURL is the public Deriv endpoint.
const DefaultURL = "wss://ws.binaryws.com/websockets/v3"

// Config configures a Client.
type Config struct {
	URL     string        // default: DefaultURL
	AppID   string        // appended as ?app_id=
	Token   string        // API token; empty means unauthenticated calls only
	Timeout time.Duration // per-session bound when the context has no deadline; default 10s
}

// Client opens Deriv sessions. Safe for concurrent use; each call uses its
// own connection.
type Client struct {
	cfg    Config
	Dialer *websocket.Dialer
}

// NewClient creates a client.
func NewClient(cfg Config) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{cfg: cfg, Dialer: websocket.DefaultDialer}
}

// HasToken reports whether an API token is configured.
func (c *Client) HasToken() bool { return c.cfg.Token != "" }

func (c *Client) endpoint() (string, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("deriv: parse url: %w", err)
	}
	if c.cfg.AppID != "" {
		q := u.Query()
		q.Set("app_id", c.cfg.AppID)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Open dials a new session. When authorize is true and a token is
// configured, the session is authorized before it is returned.
func (c *Client) Open(ctx context.Context, authorize bool) (*Session, error) {
	endpoint, err := c.endpoint()
	if err != nil {
		return nil, err
	}
	conn, resp, err := c.Dialer.DialContext(ctx, endpoint, http.Header{})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("deriv: dial failed, status %s: %w", resp.Status, err)
		}
		return nil, fmt.Errorf("deriv: dial: %w", err)
	}
	s := newSession(conn)
	if authorize && c.cfg.Token != "" {
		if _, err := s.Authorize(ctx, c.cfg.Token); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

// withSession runs fn on a fresh session bounded by the configured timeout.
func (c *Client) withSession(ctx context.Context, authorize bool, fn func(ctx context.Context, s *Session) error) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}
	s, err := c.Open(ctx, authorize)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s)
}

// Candles fetches the latest count candles of granularity seconds.
// The session is authorized first when a token is configured, which the
// real-market (frx/OTC) symbols require.
func (c *Client) Candles(ctx context.Context, symbol string, count, granularity int) ([]Candle, error) {
	var out []Candle
	err := c.withSession(ctx, true, func(ctx context.Context, s *Session) error {
		var err error
		out, err = s.Candles(ctx, symbol, count, granularity)
		return err
	})
	return out, err
}

// Trade prices a contract and buys it at the stake, returning the contract id.
func (c *Client) Trade(ctx context.Context, req TradeRequest) (int64, error) {
	if c.cfg.Token == "" {
		return 0, ErrNoToken
	}
	var contractID int64
	err := c.withSession(ctx, true, func(ctx context.Context, s *Session) error {
		p, err := s.Proposal(ctx, req)
		if err != nil {
			return err
		}
		b, err := s.Buy(ctx, p.ID, req.Amount)
		if err != nil {
			return err
		}
		contractID = b.ContractID
		return nil
	})
	return contractID, err
}
