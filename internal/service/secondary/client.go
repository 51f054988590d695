package secondary

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Altav1sta/stocks-checker/internal/domain/models"
	drepo "github.com/Altav1sta/stocks-checker/internal/domain/repository"
	phttp "github.com/Altav1sta/stocks-checker/pkg/http"

	"github.com/gorilla/websocket"
)

// Client implements a SecondaryFeed backed by the secondary venue's quote
// stream and its last-quote REST endpoint.
type Client struct {
	keyID        string
	secretKey    string
	restURL      string
	websocketURL string
	pingInterval time.Duration

	rest *phttp.Client

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
}

type subscription struct {
	ticker string
}

func (s *subscription) Ticker() string { return s.ticker }

// Config holds the secondary venue connection settings.
type Config struct {
	KeyID        string
	SecretKey    string
	RestURL      string
	WebsocketURL string
	PingInterval time.Duration
}

// New creates a new secondary venue feed.
func New(cfg Config) drepo.SecondaryFeed {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	return &Client{
		keyID:        cfg.KeyID,
		secretKey:    cfg.SecretKey,
		restURL:      cfg.RestURL,
		websocketURL: cfg.WebsocketURL,
		pingInterval: cfg.PingInterval,
		rest:         phttp.NewClient(phttp.WithTimeout(10 * time.Second)),
	}
}

// Connect dials the stream and authenticates.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.websocketURL, nil)
	if err != nil {
		return fmt.Errorf("secondary connect: %w", err)
	}
	auth := map[string]string{"action": "auth", "key": c.keyID, "secret": c.secretKey}
	if err := conn.WriteJSON(auth); err != nil {
		_ = conn.Close()
		return fmt.Errorf("secondary auth: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	log.Printf("secondary: connected")
	return nil
}

// SubscribeQuote opens a live quote channel for one ticker.
func (c *Client) SubscribeQuote(ctx context.Context, ticker string) (drepo.LiveSubscription, error) {
	if err := c.writeAction("subscribe", ticker); err != nil {
		return nil, err
	}
	return &subscription{ticker: ticker}, nil
}

// Unsubscribe closes the live channel of the given handle.
func (c *Client) Unsubscribe(ctx context.Context, sub drepo.LiveSubscription) error {
	if sub == nil {
		return fmt.Errorf("secondary unsubscribe: nil handle")
	}
	return c.writeAction("unsubscribe", sub.Ticker())
}

func (c *Client) writeAction(action, ticker string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || !c.connected {
		return fmt.Errorf("secondary not connected")
	}
	msg := map[string]interface{}{"action": action, "quotes": []string{ticker}}
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("secondary %s %s: %w", action, ticker, err)
	}
	return nil
}

type lastQuoteResponse struct {
	Status string `json:"status"`
	Symbol string `json:"symbol"`
	Last   struct {
		BidExchange int64   `json:"bidexchange"`
		BidPrice    float64 `json:"bidprice"`
		BidSize     float64 `json:"bidsize"`
		AskExchange int64   `json:"askexchange"`
		AskPrice    float64 `json:"askprice"`
		AskSize     float64 `json:"asksize"`
		Timestamp   int64   `json:"timestamp"` // ns
	} `json:"last"`
}

// LastQuote fetches the most recent quote snapshot over REST. The status
// field of the payload is passed through untouched so callers can apply
// their own eviction policy.
func (c *Client) LastQuote(ctx context.Context, ticker string) (*models.SecondaryQuote, error) {
	var resp lastQuoteResponse
	err := c.rest.SendAndParse(ctx, &phttp.RequestOptions{
		Method: phttp.MethodGet,
		URL:    c.restURL + "/last_quote/stocks/" + ticker,
		Headers: map[string]string{
			"APCA-API-KEY-ID":     c.keyID,
			"APCA-API-SECRET-KEY": c.secretKey,
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("secondary last quote %s: %w", ticker, err)
	}
	return &models.SecondaryQuote{
		Ticker:      resp.Symbol,
		Status:      resp.Status,
		BidExchange: resp.Last.BidExchange,
		BidPrice:    resp.Last.BidPrice,
		BidSize:     resp.Last.BidSize,
		AskExchange: resp.Last.AskExchange,
		AskPrice:    resp.Last.AskPrice,
		AskSize:     resp.Last.AskSize,
		Time:        time.Unix(0, resp.Last.Timestamp),
	}, nil
}

type wsQuote struct {
	Type        string  `json:"T"`
	Symbol      string  `json:"S"`
	BidExchange int64   `json:"bx"`
	BidPrice    float64 `json:"bp"`
	BidSize     float64 `json:"bs"`
	AskExchange int64   `json:"ax"`
	AskPrice    float64 `json:"ap"`
	AskSize     float64 `json:"as"`
	Timestamp   int64   `json:"t"` // ns
}

// Read streams pushed quotes and errors.
func (c *Client) Read(ctx context.Context) (<-chan *models.SecondaryQuote, <-chan error) {
	quotes := make(chan *models.SecondaryQuote, 1024)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.mu.Lock()
				conn := c.conn
				c.mu.Unlock()
				if conn != nil {
					_ = conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(quotes)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				c.mu.Lock()
				conn := c.conn
				c.mu.Unlock()
				if conn == nil {
					errs <- fmt.Errorf("secondary conn nil")
					return
				}
				_, b, err := conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("secondary read: %w", err)
					return
				}
				var batch []wsQuote
				if err := json.Unmarshal(b, &batch); err != nil {
					// ignore non-quote frames
					continue
				}
				for _, q := range batch {
					if q.Type != "q" {
						continue
					}
					out := &models.SecondaryQuote{
						Ticker:      q.Symbol,
						Status:      "success",
						BidExchange: q.BidExchange,
						BidPrice:    q.BidPrice,
						BidSize:     q.BidSize,
						AskExchange: q.AskExchange,
						AskPrice:    q.AskPrice,
						AskSize:     q.AskSize,
						Time:        time.Unix(0, q.Timestamp),
					}
					select {
					case quotes <- out:
					default:
						// drop on backpressure
					}
				}
			}
		}
	}()

	return quotes, errs
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
