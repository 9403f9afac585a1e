// Package feed consumes the external signal stream over WebSocket and
// turns JSON frames into typed signals. The connection is kept alive with
// pings and re-established with capped exponential backoff; the engine
// never sees the transport.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"trust-trader/internal/domain"
	"trust-trader/internal/observability"
)

// ErrMissingEndpoint is returned at construction when no feed endpoint is
// configured.
var ErrMissingEndpoint = errors.New("feed: endpoint is required")

// Config configures feed connection behavior.
type Config struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// HandshakeTimeout bounds the dial.
	HandshakeTimeout time.Duration
	// Buffer is the signal channel capacity.
	Buffer int
}

// DefaultConfig returns default feed configuration.
func DefaultConfig() Config {
	return Config{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		HandshakeTimeout:  10 * time.Second,
		Buffer:            256,
	}
}

// frame is the wire shape of one inbound signal.
type frame struct {
	Type          string  `json:"type"`
	PositionID    string  `json:"positionId"`
	TokenAddress  string  `json:"tokenAddress"`
	RecommenderID string  `json:"recommenderId"`
	Amount        int64   `json:"amount"`
	PriceChange   float64 `json:"priceChange"`

	// Recommendation frames only.
	Platform       string            `json:"platform"`
	PlatformUserID string            `json:"platformUserId"`
	Username       string            `json:"username"`
	Chain          string            `json:"chain"`
	Conviction     string            `json:"conviction"`
	Recommendation string            `json:"recommendation"`
	Metadata       map[string]string `json:"metadata"`
}

// Client reads signal frames from one WebSocket endpoint.
type Client struct {
	endpoint string
	cfg      Config
	log      zerolog.Logger
	signals  chan domain.Signal
}

// NewClient creates a feed client. The endpoint is required.
func NewClient(endpoint string, cfg Config, log zerolog.Logger) (*Client, error) {
	if endpoint == "" {
		return nil, ErrMissingEndpoint
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultConfig().Buffer
	}
	return &Client{
		endpoint: endpoint,
		cfg:      cfg,
		log:      log.With().Str("component", "feed").Logger(),
		signals:  make(chan domain.Signal, cfg.Buffer),
	}, nil
}

// Signals returns the channel Run feeds. Closed when Run returns.
func (c *Client) Signals() <-chan domain.Signal {
	return c.signals
}

// Run connects and reads until ctx is cancelled, reconnecting with capped
// exponential backoff on any connection failure.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.signals)

	delay := c.cfg.ReconnectDelay
	for {
		if err := c.readConnection(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Warn().Err(err).Dur("retry_in", delay).Msg("feed connection lost")
			observability.RecordFeedReconnect()

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			delay *= 2
			if delay > c.cfg.MaxReconnectDelay {
				delay = c.cfg.MaxReconnectDelay
			}
			continue
		}
		return nil
	}
}

// readConnection holds one connection for its lifetime. A nil return means
// ctx was cancelled; any error asks the caller to reconnect.
func (c *Client) readConnection(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()
	c.log.Info().Str("endpoint", c.endpoint).Msg("feed connected")

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	})

	pingCtx, stopPing := context.WithCancel(ctx)
	defer stopPing()
	go c.pingLoop(pingCtx, conn)

	// Unblock ReadMessage when ctx is cancelled.
	go func() {
		<-pingCtx.Done()
		conn.Close()
	}()

	for {
		conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read frame: %w", err)
		}

		sig, err := decodeFrame(message)
		if err != nil {
			// A malformed frame is the sender's bug, not a transport
			// failure; skip it and keep the connection.
			c.log.Warn().Err(err).Str("frame", string(message)).Msg("dropping malformed frame")
			continue
		}

		select {
		case c.signals <- sig:
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				// Reader will observe the dead connection and reconnect.
				return
			}
		}
	}
}

// decodeFrame maps a JSON frame to its typed signal.
func decodeFrame(message []byte) (domain.Signal, error) {
	var f frame
	if err := json.Unmarshal(message, &f); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if f.Type == "recommendation" {
		if f.Platform == "" || f.PlatformUserID == "" || f.TokenAddress == "" {
			return nil, fmt.Errorf("recommendation frame missing identity or token")
		}
		if f.Chain == "" {
			f.Chain = string(domain.ChainSolana)
		}
		if f.Conviction == "" {
			f.Conviction = string(domain.ConvictionNone)
		}
		if f.Recommendation == "" {
			f.Recommendation = string(domain.RecommendationBuy)
		}
		return domain.RecommendationSignal{
			Platform:       f.Platform,
			PlatformUserID: f.PlatformUserID,
			Username:       f.Username,
			Chain:          domain.Chain(f.Chain),
			TokenAddress:   f.TokenAddress,
			Conviction:     domain.Conviction(f.Conviction),
			Type:           domain.RecommendationType(f.Recommendation),
			Metadata:       f.Metadata,
		}, nil
	}

	if f.PositionID == "" || f.TokenAddress == "" {
		return nil, fmt.Errorf("frame type %q missing position or token", f.Type)
	}

	switch f.Type {
	case "buy":
		return domain.BuySignal{
			PositionID:    f.PositionID,
			TokenAddress:  f.TokenAddress,
			RecommenderID: f.RecommenderID,
		}, nil
	case "sell":
		return domain.SellSignal{
			PositionID:        f.PositionID,
			TokenAddress:      f.TokenAddress,
			Amount:            f.Amount,
			SellRecommenderID: f.RecommenderID,
		}, nil
	case "price":
		return domain.PriceSignal{
			PositionID:   f.PositionID,
			TokenAddress: f.TokenAddress,
			PriceChange:  f.PriceChange,
		}, nil
	default:
		return nil, fmt.Errorf("unknown frame type %q", f.Type)
	}
}
