// Package aggregation fetches per-branch demand rows for exports, either straight from
// the database or from the upstream aggregation endpoint.
package aggregation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sangkips/coopmart-api/internal/domain/repository"
)

// Aggregator returns the demand rows of one branch, optionally for one department
type Aggregator interface {
	Aggregate(ctx context.Context, branchCode, department string) ([]repository.DemandRow, error)
}

// ThrottledError is returned when the upstream asks the caller to slow down
type ThrottledError struct {
	Status int
	// RetryAfter is the server hint; zero when absent
	RetryAfter time.Duration
}

func (e *ThrottledError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("aggregation upstream throttled (status %d, retry after %s)", e.Status, e.RetryAfter)
	}
	return fmt.Sprintf("aggregation upstream throttled (status %d)", e.Status)
}

// IsRetryable reports whether err is throttling or a per-call timeout
func IsRetryable(err error) bool {
	var throttled *ThrottledError
	if errors.As(err, &throttled) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// RetryAfterHint extracts the server hint from a throttled error
func RetryAfterHint(err error) time.Duration {
	var throttled *ThrottledError
	if errors.As(err, &throttled) {
		return throttled.RetryAfter
	}
	return 0
}

// DBAggregator runs the demand query directly
type DBAggregator struct {
	reports repository.ReportRepository
}

func NewDBAggregator(reports repository.ReportRepository) *DBAggregator {
	return &DBAggregator{reports: reports}
}

func (a *DBAggregator) Aggregate(ctx context.Context, branchCode, department string) ([]repository.DemandRow, error) {
	return a.reports.Demand(ctx, repository.DemandFilter{BranchCode: branchCode, Department: department})
}

// HTTPAggregator calls GET {base}/branches/{code}/demand on the aggregation upstream
type HTTPAggregator struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPAggregator creates a client whose every call is bounded by timeout
func NewHTTPAggregator(baseURL, apiKey string, timeout time.Duration) *HTTPAggregator {
	return &HTTPAggregator{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type demandResponse struct {
	Rows []repository.DemandRow `json:"rows"`
}

func (a *HTTPAggregator) Aggregate(ctx context.Context, branchCode, department string) ([]repository.DemandRow, error) {
	endpoint := fmt.Sprintf("%s/branches/%s/demand", a.baseURL, url.PathEscape(branchCode))
	if department != "" {
		endpoint += "?" + url.Values{"department": {department}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if a.apiKey != "" {
		req.Header.Set("X-API-Key", a.apiKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
		return nil, &ThrottledError{Status: resp.StatusCode, RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("aggregation upstream returned status %d for branch %s", resp.StatusCode, branchCode)
	}

	var body demandResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode aggregation response: %w", err)
	}
	return body.Rows, nil
}

// parseRetryAfter accepts delay-seconds or an HTTP date
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
