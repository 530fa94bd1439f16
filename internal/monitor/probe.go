package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/fuomag9/kabomba-status/internal/models"
)

// UserAgent identifies probe requests to the monitored services.
const UserAgent = "kabomba-status/1.0"

const maxResponseBodySize = 1 << 20 // 1MB

// connection pooling limits for polling many endpoints
const (
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 10
	defaultIdleConnTimeout     = 60 * time.Second
)

// HTTPProber implements Prober with a GET request.
type HTTPProber struct {
	client *http.Client
}

// NewHTTPProber creates a prober with a pooled transport. Timeouts are applied
// per request through the context. A non-nil guard vets every dialed address.
func NewHTTPProber(guard *URLGuard) *HTTPProber {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	if guard != nil {
		dialer.Control = guard.Control
	}
	return &HTTPProber{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
				DialContext:         dialer.DialContext,
			},
		},
	}
}

// NewHTTPProberWithClient is used by tests and by callers that need a custom transport.
func NewHTTPProberWithClient(client *http.Client) *HTTPProber {
	return &HTTPProber{client: client}
}

// Probe issues GET svc.URL and classifies the response against the
// service's expectations.
func (p *HTTPProber) Probe(ctx context.Context, svc *models.Service, timeout time.Duration) Result {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	res := p.do(ctx, svc)
	res.ResponseTimeMs = time.Since(start).Milliseconds()
	return res
}

func (p *HTTPProber) do(ctx context.Context, svc *models.Service) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, svc.URL, nil)
	if err != nil {
		return Result{ErrorMessage: fmt.Sprintf("Failed to create request: %v", err)}
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return failure(ctx, err)
	}
	defer resp.Body.Close()

	var body []byte
	if svc.ExpectedBody != nil && *svc.ExpectedBody != "" {
		body, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
		if err != nil {
			return failure(ctx, err)
		}
	} else {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBodySize))
	}

	code := resp.StatusCode
	failures := Classify(svc, code, resp.Header.Get("Content-Type"), body)
	res := Result{StatusCode: &code, Success: len(failures) == 0}
	if !res.Success {
		res.ErrorMessage = strings.Join(failures, "; ")
	}
	return res
}

// Classify returns a description of every expectation the response fails.
// An empty slice means the probe succeeded.
func Classify(svc *models.Service, status int, contentType string, body []byte) []string {
	var failures []string

	expected := svc.ExpectedStatus
	if expected == 0 {
		expected = models.DefaultExpectedStatus
	}
	if status != expected {
		failures = append(failures, fmt.Sprintf("Expected status %d, got %d", expected, status))
	}

	if svc.ExpectedContentType != nil && *svc.ExpectedContentType != "" {
		if !strings.Contains(contentType, *svc.ExpectedContentType) {
			failures = append(failures, fmt.Sprintf("Expected content-type to contain %q, got %q", *svc.ExpectedContentType, contentType))
		}
	}

	if svc.ExpectedBody != nil && *svc.ExpectedBody != "" {
		if !MatchBody(*svc.ExpectedBody, string(body)) {
			failures = append(failures, "Response body does not match expected content")
		}
	}

	return failures
}

func failure(ctx context.Context, err error) Result {
	if isTimeout(ctx, err) {
		return Result{ErrorMessage: TimeoutMessage, TimedOut: true}
	}
	return Result{ErrorMessage: err.Error()}
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if ctx.Err() != nil {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
