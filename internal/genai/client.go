package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// Static errors for Gemini client operations.
var (
	// ErrAPIKeyNotSet is returned when no API key is provided and the
	// GEMINI_API_KEY environment variable is not set.
	ErrAPIKeyNotSet = errors.New("genai: GEMINI_API_KEY environment variable is not set")
	// ErrVideoModelRequired is returned when the video model name is empty.
	ErrVideoModelRequired = errors.New("genai: video model is required")
	// ErrTextModelRequired is returned when the text model name is empty.
	ErrTextModelRequired = errors.New("genai: text model is required")
	// ErrOperationNameRequired is returned when the operation name is not provided.
	ErrOperationNameRequired = errors.New("genai: operation name is required")
	// ErrNoOperationReturned is returned when the submit response contains no operation name.
	ErrNoOperationReturned = errors.New("genai: submit failed: no operation name returned")
	// ErrNoCandidates is returned when a generateContent response has no candidates.
	ErrNoCandidates = errors.New("genai: no candidates in response")
	// ErrServerError is returned when the server returns a 5xx status code.
	ErrServerError = errors.New("genai: server error")
	// ErrRateLimited is returned when the server returns a 429 status code.
	ErrRateLimited = errors.New("genai: rate limited")
	// ErrRequestFailed is returned when the request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("genai: request failed")
	// ErrDownloadFailed is returned when a video download fails.
	ErrDownloadFailed = errors.New("genai: download failed")
)

// Client defines the interface for interacting with the Gemini API.
type Client interface {
	// GenerateVideos starts a long-running video generation and returns
	// the operation name used for polling.
	GenerateVideos(ctx context.Context, req VideoRequest) (operationName string, err error)

	// GetOperation fetches the current state of a long-running operation.
	// It is safe to call repeatedly for the same operation.
	GetOperation(ctx context.Context, name string) (Operation, error)

	// DownloadFile streams the file at uri to destPath.
	DownloadFile(ctx context.Context, uri, destPath string) error

	// GenerateContent performs a single-shot text completion and returns
	// the first candidate's text.
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// HTTPClient is the HTTP implementation of the Gemini Client interface.
type HTTPClient struct {
	apiKey      string
	videoModel  string
	textModel   string
	baseURL     string
	httpClient  *http.Client
	maxRetries  int
	baseBackoff time.Duration
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithAPIKey sets the API key for authentication.
func WithAPIKey(key string) ClientOption {
	return func(hc *HTTPClient) {
		hc.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithBaseURL sets a custom base URL for the Gemini API.
func WithBaseURL(url string) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithMaxRetries sets the maximum number of transport-level retries.
func WithMaxRetries(n int) ClientOption {
	return func(hc *HTTPClient) {
		hc.maxRetries = n
	}
}

// WithBaseBackoff sets the initial backoff duration between transport retries.
func WithBaseBackoff(d time.Duration) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseBackoff = d
	}
}

// NewClient creates a new Gemini HTTP client.
// The API key can be set via the WithAPIKey option. If not provided,
// it is read from the environment variable GEMINI_API_KEY.
func NewClient(videoModel, textModel string, opts ...ClientOption) (*HTTPClient, error) {
	if videoModel == "" {
		return nil, ErrVideoModelRequired
	}
	if textModel == "" {
		return nil, ErrTextModelRequired
	}

	c := &HTTPClient{
		videoModel:  videoModel,
		textModel:   textModel,
		baseURL:     "https://generativelanguage.googleapis.com/v1beta",
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		maxRetries:  3,
		baseBackoff: 1 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.apiKey == "" {
		c.apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if c.apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	return c, nil
}

// GenerateVideos starts a long-running Veo generation and returns the
// operation name.
func (c *HTTPClient) GenerateVideos(ctx context.Context, req VideoRequest) (string, error) {
	instance := predictInstance{Prompt: req.Prompt}
	if len(req.ImageBytes) > 0 {
		mime := req.ImageMimeType
		if mime == "" {
			mime = "image/jpeg"
		}
		instance.Image = &inlineImage{
			BytesBase64Encoded: base64.StdEncoding.EncodeToString(req.ImageBytes),
			MimeType:           mime,
		}
	}

	reqBody := predictRequest{
		Instances: []predictInstance{instance},
		Parameters: predictParameters{
			AspectRatio:     req.AspectRatio,
			Resolution:      req.Resolution,
			DurationSeconds: req.DurationSeconds,
			NegativePrompt:  req.NegativePrompt,
			SampleCount:     1,
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("genai: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:predictLongRunning", c.baseURL, c.videoModel)

	var resp operationResponse
	if err := c.doRequestWithRetry(ctx, http.MethodPost, url, bodyBytes, &resp); err != nil {
		return "", err
	}

	if resp.Name == "" {
		if resp.Error != nil {
			return "", fmt.Errorf("genai: submit failed: %s", resp.Error.Message)
		}
		return "", ErrNoOperationReturned
	}

	return resp.Name, nil
}

// GetOperation fetches the current state of a long-running operation.
func (c *HTTPClient) GetOperation(ctx context.Context, name string) (Operation, error) {
	if name == "" {
		return Operation{}, ErrOperationNameRequired
	}

	url := fmt.Sprintf("%s/%s", c.baseURL, strings.TrimPrefix(name, "/"))

	var resp operationResponse
	if err := c.doRequestWithRetry(ctx, http.MethodGet, url, nil, &resp); err != nil {
		return Operation{}, err
	}

	op := Operation{
		Name: resp.Name,
		Done: resp.Done,
	}

	if resp.Error != nil {
		op.Error = resp.Error.Message
		if op.Error == "" {
			op.Error = fmt.Sprintf("operation failed with code %d", resp.Error.Code)
		}
		return op, nil
	}

	if resp.Done && resp.Response != nil && resp.Response.GenerateVideoResponse != nil {
		samples := resp.Response.GenerateVideoResponse.GeneratedSamples
		if len(samples) > 0 {
			op.VideoURI = samples[0].Video.URI
		}
	}

	return op, nil
}

// DownloadFile streams the file at uri to destPath. The API key is passed
// as a query parameter since download URIs are served outside the JSON API.
func (c *HTTPClient) DownloadFile(ctx context.Context, uri, destPath string) error {
	u, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("genai: parse download uri: %w", err)
	}
	q := u.Query()
	if q.Get("key") == "" {
		q.Set("key", c.apiKey)
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("genai: create download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("genai: download request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w with status %d: %s", ErrDownloadFailed, resp.StatusCode, string(body))
	}

	f, err := os.Create(destPath) // #nosec G304 - destPath is provided by trusted internal code
	if err != nil {
		return fmt.Errorf("genai: create output file: %w", err)
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(destPath)
		return fmt.Errorf("genai: write output file: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("genai: close output file: %w", err)
	}

	return nil
}

// GenerateContent performs a single-shot text completion.
func (c *HTTPClient) GenerateContent(ctx context.Context, prompt string) (string, error) {
	reqBody := generateContentRequest{
		Contents: []content{
			{Role: "user", Parts: []part{{Text: prompt}}},
		},
		GenerationConfig: &generationConfig{
			Temperature:     0.7,
			TopP:            0.9,
			TopK:            40,
			MaxOutputTokens: 4096,
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("genai: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.textModel)

	var resp generateContentResponse
	if err := c.doRequestWithRetry(ctx, http.MethodPost, url, bodyBytes, &resp); err != nil {
		return "", err
	}

	if resp.Error != nil {
		return "", fmt.Errorf("genai: generate content: %s", resp.Error.Message)
	}
	if len(resp.Candidates) == 0 {
		return "", ErrNoCandidates
	}

	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

// doRequestWithRetry performs an HTTP request with exponential backoff retry
// for transport-level transient failures.
func (c *HTTPClient) doRequestWithRetry(ctx context.Context, method, url string, body []byte, result interface{}) error {
	var lastErr error
	backoff := c.baseBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("genai: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		err := c.doRequest(ctx, method, url, body, result)
		if err == nil {
			return nil
		}

		if !isRetryable(err) {
			return err
		}

		lastErr = err
	}

	return fmt.Errorf("genai: max retries exceeded: %w", lastErr)
}

// doRequest performs a single HTTP request.
func (c *HTTPClient) doRequest(ctx context.Context, method, url string, body []byte, result interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("genai: create request: %w", err)
	}

	req.Header.Set("x-goog-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &retryableError{err: fmt.Errorf("genai: request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &retryableError{err: fmt.Errorf("genai: read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode >= 500 {
			return &retryableError{err: fmt.Errorf("%w %d: %s", ErrServerError, resp.StatusCode, string(respBody))}
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return &retryableError{err: fmt.Errorf("%w: %s", ErrRateLimited, string(respBody))}
		}
		// 4xx errors are permanent. The status code stays in the message so
		// callers can classify auth and quota failures.
		return fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("genai: unmarshal response: %w", err)
		}
	}

	return nil
}

// retryableError wraps transport errors that should be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryable returns true if the error should be retried at transport level.
func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}
