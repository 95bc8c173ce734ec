package feeds

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"CoinPulse/internal/domain/models"
	"CoinPulse/internal/domain/service"
	xhttp "CoinPulse/pkg/http"
)

type Config struct {
	PriceURL     string
	SentimentURL string
	NarrativeURL string
	APIKey       string
	Timeout      time.Duration
	Attempts     int
}

// Client pulls already normalized price, sentiment and narrative readings
// from HTTP JSON endpoints. Each endpoint takes ?symbols=BTC,ETH and returns
// a JSON array.
type Client struct {
	cfg    Config
	client *xhttp.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	opts := []xhttp.ClientOption{xhttp.WithTimeout(cfg.Timeout)}
	if cfg.APIKey != "" {
		opts = append(opts, xhttp.WithHeader("X-API-Key", cfg.APIKey))
	}
	return &Client{cfg: cfg, client: xhttp.NewClient(opts...)}
}

func (c *Client) FetchPrices(ctx context.Context, symbols []string) ([]models.PriceTick, error) {
	var out []models.PriceTick
	err := c.getJSON(ctx, c.cfg.PriceURL, symbols, &out)
	return out, err
}

func (c *Client) FetchSentiment(ctx context.Context, symbols []string) ([]models.SentimentSample, error) {
	var out []models.SentimentSample
	err := c.getJSON(ctx, c.cfg.SentimentURL, symbols, &out)
	return out, err
}

func (c *Client) FetchNarratives(ctx context.Context, symbols []string) ([]models.NarrativeItem, error) {
	var out []models.NarrativeItem
	err := c.getJSON(ctx, c.cfg.NarrativeURL, symbols, &out)
	return out, err
}

// getJSON retries transport errors and retryable statuses with a linear backoff.
func (c *Client) getJSON(ctx context.Context, url string, symbols []string, dest interface{}) error {
	if url == "" {
		return fmt.Errorf("feed url not configured")
	}
	opts := &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         url,
		QueryParams: map[string][]string{"symbols": {strings.Join(symbols, ",")}},
	}

	var err error
	for i := 1; i <= c.cfg.Attempts; i++ {
		err = c.client.SendAndParse(ctx, opts, dest)
		if err == nil {
			return nil
		}
		var se *xhttp.StatusError
		if errors.As(err, &se) && !se.Retryable() {
			break
		}
		if i == c.cfg.Attempts {
			break
		}
		select {
		case <-time.After(time.Duration(i) * 200 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("get %s: %w", url, err)
}

var (
	_ service.PriceFeed     = (*Client)(nil)
	_ service.SentimentFeed = (*Client)(nil)
	_ service.NarrativeFeed = (*Client)(nil)
)
