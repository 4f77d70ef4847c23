package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/TobiSchelling/ReviewGuide/internal/logger"
	"github.com/TobiSchelling/ReviewGuide/internal/metrics"
	"github.com/TobiSchelling/ReviewGuide/internal/review"
)

const (
	endpointAnalyze = "analyze-product"
	endpointGuide   = "purchase-guide"
)

// Guide reply statuses. Any other status means the guide is still pending.
const (
	GuideCompleted = "completed"
	GuideError     = "error"
)

// GuideReply is the body of a purchase guide status query.
type GuideReply struct {
	Status  string                `json:"status"`
	Guide   *review.PurchaseGuide `json:"guide,omitempty"`
	Error   string                `json:"error,omitempty"`
	Message string                `json:"message,omitempty"`
}

// Client talks to the review analysis backend.
type Client struct {
	BaseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewClient creates a backend client. A requestsPerMinute of zero or less
// disables client-side rate limiting.
func NewClient(baseURL string, timeout time.Duration, requestsPerMinute int) *Client {
	if timeout == 0 {
		timeout = 180 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if requestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), 1)
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
	}
}

// Submit requests the analysis of a product.
func (c *Client) Submit(ctx context.Context, productName string) (*review.AnalysisResult, error) {
	productName = strings.TrimSpace(productName)
	if productName == "" {
		return nil, ErrEmptyProductName
	}

	data, err := json.Marshal(map[string]string{"product_name": productName})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/api/analyze-product", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	logger.WithProduct(productName).Debug("submitting analysis request")
	resp, err := c.do(req, endpointAnalyze)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.BackendRequestsTotal.WithLabelValues(endpointAnalyze, "network_error").Inc()
		return nil, &NetworkError{Op: "reading analysis response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var envelope struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(body, &envelope)
		metrics.BackendRequestsTotal.WithLabelValues(endpointAnalyze, "backend_error").Inc()
		return nil, newBackendError(resp.StatusCode, envelope.Error)
	}

	var result review.AnalysisResult
	if err := json.Unmarshal(body, &result); err != nil {
		metrics.BackendRequestsTotal.WithLabelValues(endpointAnalyze, "backend_error").Inc()
		return nil, &BackendError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("malformed response: %v", err)}
	}
	if result.ProductName == "" {
		result.ProductName = productName
	}

	metrics.BackendRequestsTotal.WithLabelValues(endpointAnalyze, "ok").Inc()
	return &result, nil
}

// FetchGuide queries the purchase guide status for a product. The body is
// decoded whatever the HTTP status, since the backend reports pending and
// failed guides with 404 and 500 responses.
func (c *Client) FetchGuide(ctx context.Context, productName string) (*GuideReply, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.BaseURL+"/api/purchase-guide/"+url.PathEscape(productName), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.do(req, endpointGuide)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var reply GuideReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		metrics.BackendRequestsTotal.WithLabelValues(endpointGuide, "backend_error").Inc()
		return nil, fmt.Errorf("decoding guide status (HTTP %d): %w", resp.StatusCode, err)
	}

	outcome := "ok"
	if reply.Status == GuideError {
		outcome = "backend_error"
	}
	metrics.BackendRequestsTotal.WithLabelValues(endpointGuide, outcome).Inc()
	return &reply, nil
}

func (c *Client) do(req *http.Request, endpoint string) (*http.Response, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, &NetworkError{Op: endpoint, Err: err}
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	metrics.BackendRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.BackendRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, &NetworkError{Op: endpoint, Err: err}
	}
	return resp, nil
}
