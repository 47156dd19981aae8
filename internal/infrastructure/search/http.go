package search

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
	"time"

	"WebResearcher/internal/domain"
)

const (
	// DefaultLimit is used when the caller does not ask for a count.
	DefaultLimit = 10
	// MaxLimit is the hard cap on results requested from any provider.
	MaxLimit = 20
	// DefaultRetryDelay is the pause before the single network retry.
	DefaultRetryDelay = 500 * time.Millisecond

	maxErrorBody = 512
)

// ClampLimit bounds a caller-supplied result count to [1, MaxLimit].
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// Options are shared by every adapter.
type Options struct {
	Client     *http.Client
	RetryDelay time.Duration
	UserAgent  string
}

func (o Options) withDefaults() Options {
	if o.Client == nil {
		o.Client = &http.Client{Timeout: 20 * time.Second}
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	return o
}

// transport performs one provider call and maps failures to ProviderError.
type transport struct {
	provider string
	opts     Options
}

func newTransport(provider string, opts Options) transport {
	return transport{provider: provider, opts: opts.withDefaults()}
}

// do executes the request built by build, retrying once after a fixed delay
// when the first attempt failed at the network level.
func (t transport) do(ctx context.Context, build func(context.Context) (*http.Request, error)) ([]byte, error) {
	data, err := t.once(ctx, build)
	if err == nil {
		return data, nil
	}

	var pe *domain.ProviderError
	if !errors.As(err, &pe) || !pe.Transient() || ctx.Err() != nil {
		return nil, err
	}

	timer := time.NewTimer(t.opts.RetryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, t.fail(domain.ProviderNetwork, 0, ctx.Err())
	case <-timer.C:
	}
	return t.once(ctx, build)
}

func (t transport) once(ctx context.Context, build func(context.Context) (*http.Request, error)) ([]byte, error) {
	req, err := build(ctx)
	if err != nil {
		return nil, t.fail(domain.ProviderUnknown, 0, fmt.Errorf("build request: %w", err))
	}
	if t.opts.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", t.opts.UserAgent)
	}

	resp, err := t.opts.Client.Do(req)
	if err != nil {
		return nil, t.fail(domain.ProviderNetwork, 0, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, t.fail(domain.ProviderNetwork, resp.StatusCode, fmt.Errorf("read body: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, t.fail(kindForStatus(resp.StatusCode), resp.StatusCode, errors.New(snippet(data)))
	}
	return data, nil
}

func (t transport) postJSON(ctx context.Context, endpoint string, headers map[string]string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, t.fail(domain.ProviderUnknown, 0, fmt.Errorf("encode payload: %w", err))
	}
	return t.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return req, nil
	})
}

func (t transport) getJSON(ctx context.Context, endpoint string, headers map[string]string) ([]byte, error) {
	return t.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return req, nil
	})
}

func (t transport) decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return t.fail(domain.ProviderUnknown, 0, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (t transport) fail(kind domain.ProviderErrorKind, status int, err error) *domain.ProviderError {
	return &domain.ProviderError{Provider: t.provider, Kind: kind, Status: status, Err: err}
}

func (t transport) missingKey() *domain.ProviderError {
	return t.fail(domain.ProviderInvalidKey, 0, errors.New("api key is missing"))
}

func kindForStatus(status int) domain.ProviderErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return domain.ProviderRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.ProviderInvalidKey
	case status >= 500:
		return domain.ProviderNetwork
	default:
		return domain.ProviderUnknown
	}
}

func snippet(data []byte) string {
	text := strings.TrimSpace(string(data))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody] + "..."
	}
	if text == "" {
		return "empty response body"
	}
	return text
}

// searchURL appends path to the provider base URL, keeping any base path.
func searchURL(baseURL, path string) string {
	base := strings.TrimSpace(baseURL)
	if base == "" {
		return ""
	}
	joined, err := url.JoinPath(base, path)
	if err != nil {
		return strings.TrimSuffix(base, "/") + path
	}
	return joined
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if limit <= 0 || len(runes) <= limit {
		return value
	}
	return string(runes[:limit]) + "..."
}
