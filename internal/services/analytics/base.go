package analytics

import (
	"context"
	"fmt"
	"time"

	xhttp "github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/http"
)

// HTTPServiceBase holds the client and base URL shared by remote model services.
type HTTPServiceBase struct {
	baseURL string
	client  *xhttp.Client
}

// NewHTTPServiceBase builds an HTTP client for baseURL; timeout <= 0 falls back to 3s.
func NewHTTPServiceBase(baseURL string, timeout time.Duration) *HTTPServiceBase {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPServiceBase{
		baseURL: baseURL,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

// GetJSON decodes the JSON body of GET baseURL+path into dest.
func (b *HTTPServiceBase) GetJSON(ctx context.Context, path string, dest interface{}) error {
	return b.do(ctx, xhttp.MethodGet, path, nil, dest)
}

// PostJSON posts payload to baseURL+path and decodes the JSON response into dest.
func (b *HTTPServiceBase) PostJSON(ctx context.Context, path string, payload interface{}, dest interface{}) error {
	return b.do(ctx, xhttp.MethodPost, path, payload, dest)
}

func (b *HTTPServiceBase) do(ctx context.Context, method, path string, payload, dest interface{}) error {
	if b.client == nil || b.baseURL == "" {
		return fmt.Errorf("model service client not initialized")
	}
	if err := b.client.JSON(ctx, method, b.baseURL+path, payload, dest); err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	return nil
}

// PostJSONWithRetry retries PostJSON up to attempts times with linear
// backoff. Client errors are not retried.
func (b *HTTPServiceBase) PostJSONWithRetry(ctx context.Context, path string, payload interface{}, dest interface{}, attempts int) error {
	var err error
	for i := 1; ; i++ {
		err = b.PostJSON(ctx, path, payload, dest)
		if err == nil || i >= attempts || !xhttp.Retryable(err) {
			return err
		}
		select {
		case <-time.After(time.Duration(i) * 50 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
