package httpx

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"cexarb/internal/config"
	"cexarb/pkg/domain"
)

// Signer produces the headers and/or query additions a signed request
// needs. Each adapter supplies its own (HMAC-SHA256 for MEXC spot,
// HMAC-SHA512 for Gate.io) per spec §4.2.1/§6.1.
type Signer interface {
	Sign(method, path, query, body string, timestamp int64) (headers map[string]string, err error)
}

// Client is a rate-limited, retrying REST client shared by every adapter.
// Idempotent reads retry on transient transport errors and 5xx; mutating
// calls (order placement, cancel) are never retried on ambiguous failure.
type Client struct {
	exchange   domain.ExchangeEnum
	http       *resty.Client
	rl         *RateLimiter
	signer     Signer
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger
}

// NewClient builds a REST client for one exchange from its ExchangeConfig.
func NewClient(exchange domain.ExchangeEnum, cfg config.ExchangeConfig, signer Signer, logger *slog.Logger) *Client {
	requestTimeout := cfg.Network.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 10 * time.Second
	}
	maxRetries := cfg.Network.MaxRetries
	retryDelay := cfg.Network.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 500 * time.Millisecond
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(requestTimeout).
		SetHeader("Content-Type", "application/json")

	rps := cfg.RateLimit.RequestsPerSecond
	burst := cfg.RateLimit.Burst
	if burst <= 0 {
		burst = rps
	}

	return &Client{
		exchange:   exchange,
		http:       httpClient,
		rl:         NewRateLimiter(cfg.RateLimit.GlobalConcurrency, rps, burst, 0),
		signer:     signer,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		logger:     logger.With("component", "rest_client", "exchange", string(exchange)),
	}
}

// Request issues a REST call, applying rate limiting and, for idempotent
// reads, retry on 5xx/transport errors. method is the HTTP verb; endpoint
// is the path; query is added as URL query params; body, if non-empty, is
// signed and sent as the JSON request body; auth requests a signed call.
func (c *Client) Request(ctx context.Context, method, endpoint string, query map[string]string, body string, auth bool, result interface{}) error {
	release, err := c.rl.Acquire(ctx, endpoint)
	if err != nil {
		return err
	}
	defer release()

	isIdempotent := method == http.MethodGet
	attempts := 1
	if isIdempotent {
		attempts += c.maxRetries
	}

	var lastErr error
	wait := c.retryDelay
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			wait *= 2
			if wait > 5*time.Second {
				wait = 5 * time.Second
			}
		}

		req := c.http.R().SetContext(ctx)
		if result != nil {
			req.SetResult(result)
		}
		for k, v := range query {
			req.SetQueryParam(k, v)
		}

		if auth {
			if c.signer == nil {
				return fmt.Errorf("%s: signed request to %s requires credentials", c.exchange, endpoint)
			}
			queryStr := encodeQuery(query)
			headers, err := c.signer.Sign(method, endpoint, queryStr, body, time.Now().UnixMilli())
			if err != nil {
				return fmt.Errorf("sign request: %w", err)
			}
			req.SetHeaders(headers)
		}
		if body != "" {
			req.SetBody(body)
		}

		resp, err := req.Execute(method, endpoint)
		if err != nil {
			lastErr = &domain.ExchangeTimeout{Exchange: c.exchange, Op: endpoint}
			continue
		}

		switch {
		case resp.StatusCode() >= 500:
			lastErr = &domain.ExchangeServerError{Exchange: c.exchange, StatusCode: resp.StatusCode(), Body: resp.String()}
			if !isIdempotent {
				return lastErr
			}
			continue
		case resp.StatusCode() >= 400:
			return &domain.ExchangeClientError{Exchange: c.exchange, StatusCode: resp.StatusCode(), Body: resp.String()}
		}
		return nil
	}
	return lastErr
}

func encodeQuery(query map[string]string) string {
	if len(query) == 0 {
		return ""
	}
	s := ""
	for k, v := range query {
		if s != "" {
			s += "&"
		}
		s += k + "=" + v
	}
	return s
}
