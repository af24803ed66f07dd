package pay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"trattoria/models"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

var (
	ErrNotConfigured = errors.New("payments are not configured")
	ErrUnavailable   = errors.New("payment provider unavailable")
)

// ProviderError is a non-retryable error reported by PayPal.
type ProviderError struct {
	Status int
	Body   string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("paypal: status %d: %s", e.Status, e.Body)
}

// Gateway is what the handlers need from a payment provider.
type Gateway interface {
	CreateOrder(ctx context.Context, amountCents int64, currency, reference string) (id, approveURL string, err error)
	CaptureOrder(ctx context.Context, id string) (status string, err error)
}

// Client talks to the PayPal Orders v2 API. Access tokens are cached until
// shortly before they expire.
type Client struct {
	BaseURL  string
	ClientID string
	Secret   string
	HTTP     *http.Client

	cb *gobreaker.CircuitBreaker

	mu      sync.Mutex
	token   string
	expires time.Time
	now     func() time.Time
}

func NewClient(baseURL, clientID, secret string) *Client {
	c := &Client{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		ClientID: clientID,
		Secret:   secret,
		HTTP:     &http.Client{Timeout: 15 * time.Second},
		now:      time.Now,
	}
	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "paypal",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			var pe *ProviderError
			return err == nil || errors.As(err, &pe) && pe.Status < 500
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})
	return c
}

func (c *Client) configured() bool {
	return c.BaseURL != "" && c.ClientID != "" && c.Secret != ""
}

// accessToken returns a cached token or fetches a new one, retrying
// transient failures with exponential backoff.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.now().Before(c.expires) {
		return c.token, nil
	}

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	operation := func() error {
		form := url.Values{"grant_type": {"client_credentials"}}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.SetBasicAuth(c.ClientID, c.Secret)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		err = c.do(req, &out)
		var pe *ProviderError
		if errors.As(err, &pe) && pe.Status < 500 {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = 5 * time.Second
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return "", err
	}

	c.token = out.AccessToken
	ttl := time.Duration(out.ExpiresIn) * time.Second
	if ttl > time.Minute {
		ttl -= time.Minute
	}
	c.expires = c.now().Add(ttl)
	return c.token, nil
}

// do sends req and decodes a JSON response into dst. Non-2xx responses
// become *ProviderError.
func (c *Client) do(req *http.Request, dst any) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ProviderError{Status: resp.StatusCode, Body: string(body)}
	}
	if dst == nil {
		return nil
	}
	return json.Unmarshal(body, dst)
}

// call runs an authenticated JSON request through the circuit breaker.
func (c *Client) call(ctx context.Context, method, path string, payload, dst any) error {
	if !c.configured() {
		return ErrNotConfigured
	}
	_, err := c.cb.Execute(func() (interface{}, error) {
		token, err := c.accessToken(ctx)
		if err != nil {
			return nil, err
		}
		var buf io.Reader
		if payload != nil {
			data, err := json.Marshal(payload)
			if err != nil {
				return nil, err
			}
			buf = bytes.NewReader(data)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, buf)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")
		return nil, c.do(req, dst)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrUnavailable
	}
	return err
}

type link struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

// CreateOrder opens a PayPal order for amountCents and returns its id and
// the buyer approval link.
func (c *Client) CreateOrder(ctx context.Context, amountCents int64, currency, reference string) (string, string, error) {
	payload := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"reference_id": reference,
			"amount": map[string]string{
				"currency_code": currency,
				"value":         fmt.Sprintf("%.2f", models.FromCents(amountCents)),
			},
		}},
	}
	var out struct {
		ID    string `json:"id"`
		Links []link `json:"links"`
	}
	if err := c.call(ctx, http.MethodPost, "/v2/checkout/orders", payload, &out); err != nil {
		return "", "", err
	}
	approve := ""
	for _, l := range out.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			approve = l.Href
			break
		}
	}
	return out.ID, approve, nil
}

// CaptureOrder captures an approved order and returns the PayPal status,
// "COMPLETED" on success.
func (c *Client) CaptureOrder(ctx context.Context, id string) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.call(ctx, http.MethodPost, "/v2/checkout/orders/"+url.PathEscape(id)+"/capture", map[string]any{}, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}
