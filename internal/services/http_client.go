package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"spacesweep/internal/domain"
	"spacesweep/internal/logging"
)

var (
	// ErrAPI marks a well-formed backend reply with status "error".
	ErrAPI = errors.New("backend reported an error")
	// ErrHTTPStatus marks a non-2xx HTTP response.
	ErrHTTPStatus = errors.New("unexpected http status")
	// ErrNoResult means the backend has no completed scan to return.
	ErrNoResult = errors.New("no scan result available")
)

const maxResponseBytes = 64 << 20

type HTTPClient struct {
	baseURL    *url.URL
	httpClient *http.Client
	token      string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

type ClientOption func(*HTTPClient)

func WithToken(token string) ClientOption {
	return func(client *HTTPClient) {
		client.token = token
	}
}

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(client *HTTPClient) {
		client.httpClient = httpClient
	}
}

// WithRateLimit paces outgoing requests. A non-positive rps disables pacing.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(client *HTTPClient) {
		if rps <= 0 {
			client.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		client.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithLogger(logger *slog.Logger) ClientOption {
	return func(client *HTTPClient) {
		client.logger = logger
	}
}

func NewHTTPClient(baseURL string, opts ...ClientOption) (*HTTPClient, error) {
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("base url %q needs a scheme and host", baseURL)
	}
	client := &HTTPClient{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(5), 5),
		logger:     logging.Discard(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

func (client *HTTPClient) StartScan(ctx context.Context) error {
	return client.do(ctx, http.MethodPost, pathScanStart, nil, struct{}{}, nil)
}

func (client *HTTPClient) ScanProgress(ctx context.Context) (domain.ScanProgress, error) {
	var resp scanProgressResponse
	if err := client.do(ctx, http.MethodGet, pathScanProgress, nil, nil, &resp); err != nil {
		return domain.ScanProgress{}, err
	}
	return resp.toDomain(), nil
}

// ScanResult returns the backend's cached result of the last completed scan.
func (client *HTTPClient) ScanResult(ctx context.Context) (domain.ScanResult, error) {
	var resp *scanResultResponse
	if err := client.do(ctx, http.MethodGet, pathScanResult, nil, nil, &resp); err != nil {
		return domain.ScanResult{}, err
	}
	if resp == nil {
		return domain.ScanResult{}, ErrNoResult
	}
	return resp.toDomain(), nil
}

func (client *HTTPClient) StartCleanup(ctx context.Context, req domain.CleanupRequest) (string, error) {
	var resp cleanupStartResponse
	if err := client.do(ctx, http.MethodPost, pathCleanupStart, nil, newCleanupStartRequest(req), &resp); err != nil {
		return "", err
	}
	if resp.TaskID == "" {
		return "", fmt.Errorf("%w: cleanup started without a task id", ErrAPI)
	}
	return resp.TaskID, nil
}

func (client *HTTPClient) CleanupProgress(ctx context.Context, taskID string) (domain.CleanupProgress, error) {
	var resp cleanupProgressResponse
	query := url.Values{"task_id": []string{taskID}}
	if err := client.do(ctx, http.MethodGet, pathCleanupProgress, query, nil, &resp); err != nil {
		return domain.CleanupProgress{}, err
	}
	return resp.toDomain(taskID), nil
}

func (client *HTTPClient) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	if client.limiter != nil {
		if err := client.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	endpoint := client.baseURL.JoinPath(path)
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if client.token != "" {
		req.Header.Set("Authorization", "Bearer "+client.token)
	}

	start := time.Now()
	resp, err := client.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}
	client.logger.Debug("backend call",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s %s returned %d", ErrHTTPStatus, method, path, resp.StatusCode)
	}

	var wrapped envelope
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	if wrapped.Status != "" && wrapped.Status != "ok" {
		message := wrapped.Message
		if message == "" {
			message = wrapped.Status
		}
		return fmt.Errorf("%w: %s", ErrAPI, message)
	}
	if out == nil || len(wrapped.Data) == 0 || string(wrapped.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(wrapped.Data, out); err != nil {
		return fmt.Errorf("decode %s data: %w", path, err)
	}
	return nil
}
