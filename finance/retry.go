package finance

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"
)

const (
	requestTimeout    = 30 * time.Second
	retryBaseDelay    = 1000 * time.Millisecond
	defaultMaxRetries = 3
)

// doWithRetry performs an outbound lender call with bounded retries.
//
// Retries apply only to connection-level failure, never to completed HTTP
// responses: a 400 is the lender telling us something, a dropped connection
// is not. Completed responses of any status are returned as-is for the
// caller to interpret. A per-attempt timeout is terminal, as is retry
// exhaustion; both surface as a network-kind error wrapping the last failure
// and the attempted URL.
//
// build constructs a fresh request per attempt so bodies are re-readable.
func doWithRetry(ctx context.Context, client *http.Client, build func(ctx context.Context) (*http.Request, error), maxRetries int) (*http.Response, error) {
	if maxRetries < 0 {
		maxRetries = defaultMaxRetries
	}

	var lastErr error
	var lastURL string

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, NewNetworkError(lastURL, ctx.Err())
			}
		}

		req, err := build(ctx)
		if err != nil {
			return nil, NewNetworkError(lastURL, err)
		}
		lastURL = req.URL.String()

		resp, err := client.Do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if isTimeout(err) {
			// The 30s per-attempt budget is the total patience we have;
			// retrying past an abort only stacks more waiting.
			return nil, NewNetworkError(lastURL, err)
		}
	}

	return nil, NewNetworkError(lastURL, lastErr)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ue *url.Error
	if errors.As(err, &ue) && ue.Timeout() {
		return true
	}
	return false
}
