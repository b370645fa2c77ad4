package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Result is the outcome of one channel post of a fan-out.
type Result struct {
	Channel string
	Err     error
}

// OK reports whether the post for this channel succeeded.
func (r Result) OK() bool { return r.Err == nil }

// Client posts messages to a single webhook URL. Delivery is
// at-most-once: a timeout or non-2xx response is reported as an error
// on that post and nothing is retried.
type Client struct {
	url        string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger
}

type ClientOption func(*Client)

// WithHTTPClient replaces the default transport. The caller keeps
// ownership of the client's lifecycle unless the sink owns it.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRateLimit throttles outbound posts to ratePerSec requests per
// second with an equal burst. Zero or negative disables throttling.
func WithRateLimit(ratePerSec int) ClientOption {
	return func(c *Client) {
		if ratePerSec > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec)
		}
	}
}

// WithLogger routes delivery diagnostics to log.
func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) { c.log = log }
}

func NewClient(url string, timeout time.Duration, opts ...ClientOption) *Client {
	c := &Client{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Post sends one message to the webhook. A nil return means the
// endpoint answered 2xx.
func (c *Client) Post(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	if err := c.sendRequest(ctx, body); err != nil {
		c.log.Warn().Str("channel", msg.Channel).Err(err).Msg("webhook post failed")
		return err
	}
	c.log.Debug().Str("channel", msg.Channel).Msg("webhook post delivered")
	return nil
}

// PostToChannels sends one independent request per channel, overriding
// the message's channel field for each. The posts are dispatched
// concurrently and all of them are joined before the results are
// returned; relative completion order among channels is not defined.
func (c *Client) PostToChannels(ctx context.Context, msg Message, channels []string) []Result {
	if len(channels) == 0 {
		return []Result{{Channel: msg.Channel, Err: c.Post(ctx, msg)}}
	}

	results := make([]Result, len(channels))
	var wg sync.WaitGroup

	for i, channel := range channels {
		wg.Add(1)
		go func(i int, channel string) {
			defer wg.Done()
			results[i] = Result{
				Channel: channel,
				Err:     c.Post(ctx, msg.WithChannel(channel)),
			}
		}(i, channel)
	}

	wg.Wait()
	return results
}

// Close releases idle connections held by the transport.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) sendRequest(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		responseBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(responseBody))
	}

	return nil
}
