package delivery

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/net/http2"

	"callrelay/internal/config"
	"callrelay/internal/constants"
	"callrelay/internal/logger"
	"callrelay/pkg/circuitbreaker"
	pkgerrors "callrelay/pkg/errors"
	"callrelay/pkg/metrics"
	"callrelay/pkg/models"
)

// Client posts envelopes to the downstream target over a pooled connection.
// One client serves one target URL for the lifetime of the process.
type Client struct {
	httpClient *http.Client
	url        string
	breaker    *circuitbreaker.Wrapper
	logger     logger.Logger
}

type Result struct {
	StatusCode int
}

// NewClient builds a delivery client for the already-resolved target URL.
// The breaker is optional; nil delivers without one.
func NewClient(cfg config.DeliveryConfig, targetURL string, breaker *circuitbreaker.Wrapper, log logger.Logger) (*Client, error) {
	u, err := url.Parse(targetURL)
	if err != nil {
		return nil, fmt.Errorf("invalid target URL %q: %w", targetURL, err)
	}

	return &Client{
		httpClient: &http.Client{
			Transport: newTransport(cfg, u.Scheme),
			Timeout:   cfg.RequestTimeout,
		},
		url:     targetURL,
		breaker: breaker,
		logger:  log,
	}, nil
}

// newTransport picks the connection pool for the target. A plain-http
// target with UseHTTP2 set speaks h2c; an https target negotiates the
// protocol through ALPN.
func newTransport(cfg config.DeliveryConfig, scheme string) http.RoundTripper {
	if cfg.UseHTTP2 && scheme == "http" {
		return &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, network, addr)
			},
		}
	}

	return &http.Transport{
		MaxIdleConns:        cfg.MaxKeepAliveConns,
		MaxIdleConnsPerHost: cfg.MaxKeepAliveConns,
		IdleConnTimeout:     cfg.KeepAliveExpiry,
		ForceAttemptHTTP2:   cfg.UseHTTP2,
	}
}

// Close drops the pooled connections. The client must not be used after.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// Deliver forwards the envelope to the target system. Errors carry the
// taxonomy the bridge acts on: transport failures and non-2xx responses
// are downstream errors, anything that fails before the wire is unexpected.
func (c *Client) Deliver(ctx context.Context, env models.Envelope) (*Result, error) {
	start := time.Now()

	result, err := c.deliver(ctx, env)

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.ObserveDeliveryRequest(time.Since(start), status)

	return result, err
}

func (c *Client) deliver(ctx context.Context, env models.Envelope) (*Result, error) {
	if c.breaker == nil {
		return c.send(ctx, env)
	}

	res, err := c.breaker.ExecuteWithContext(ctx, func() (interface{}, error) {
		return c.send(ctx, env)
	})
	c.breaker.RecordRequest(err == nil)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, pkgerrors.Wrap(err, pkgerrors.ErrDownstream).WithDetail("breaker", c.breaker.Name())
		}
		return nil, err
	}

	return res.(*Result), nil
}

func (c *Client) send(ctx context.Context, env models.Envelope) (*Result, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrUnexpected)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrUnexpected)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(constants.RequestIDHeader, env.CorrelationID())

	c.logger.DebugwCtx(ctx, "Forwarding message to target",
		"url", c.url,
		"message_id", env.ID,
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		appErr := pkgerrors.Wrap(err, pkgerrors.ErrDownstream)
		if pkgerrors.IsTimeout(err) {
			appErr = appErr.WithDetail("timeout", true)
		}
		return nil, appErr
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrDownstream)
	}

	if resp.StatusCode < constants.HTTPStatusOKMin || resp.StatusCode >= constants.HTTPStatusOKMax {
		return nil, pkgerrors.ErrDownstream.
			WithDetail("status_code", resp.StatusCode).
			WithDetail("body", truncate(string(respBody), constants.DefaultTruncateLen))
	}

	return &Result{StatusCode: resp.StatusCode}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
