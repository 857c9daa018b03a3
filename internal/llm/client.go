// Package llm structures statement text into transactions using a hosted
// Claude model.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/statement-ai/converter/internal/observability"
	"github.com/statement-ai/converter/internal/statement"
)

const (
	defaultBaseURL   = "https://api.anthropic.com/v1/messages"
	defaultModel     = "claude-3-5-sonnet-20241022"
	anthropicVersion = "2023-06-01"
	maxTokens        = 4096
	maxBackoff       = 30 * time.Second
)

// Non-retryable failures.
var (
	// ErrUnauthorized indicates the API key was rejected.
	ErrUnauthorized = errors.New("extraction api rejected the api key")

	// ErrBadResponse indicates the model reply did not contain a usable
	// transaction array.
	ErrBadResponse = errors.New("extraction api returned an unusable response")
)

// Config holds client settings.
type Config struct {
	APIKey         string
	Model          string
	BaseURL        string
	MaxRetries     int
	RetryDelay     time.Duration
	RequestTimeout time.Duration
}

// Client calls the messages API with per-attempt timeouts and a bounded
// retry schedule: 429 honours Retry-After, 5xx and transport errors back off
// exponentially, authentication and response-shape failures abort
// immediately.
type Client struct {
	logger     *observability.Logger
	cfg        Config
	httpClient *http.Client
}

// NewClient creates an extraction client. Zero config fields fall back to
// production defaults.
func NewClient(logger *observability.Logger, cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 1 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	return &Client{
		logger:     logger,
		cfg:        cfg,
		httpClient: &http.Client{},
	}
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ExtractTransactions asks the model to structure raw statement text and
// returns the resulting table.
func (c *Client) ExtractTransactions(ctx context.Context, text string) (statement.TableData, error) {
	payload, err := json.Marshal(messagesRequest{
		Model:     c.cfg.Model,
		MaxTokens: maxTokens,
		Messages: []message{
			{Role: "user", Content: buildPrompt(text)},
		},
	})
	if err != nil {
		return statement.TableData{}, fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return statement.TableData{}, err
		}

		table, err := c.attempt(ctx, payload)
		if err == nil {
			return table, nil
		}

		var rerr *retryableError
		if !errors.As(err, &rerr) {
			return statement.TableData{}, err
		}
		lastErr = err

		if attempt == c.cfg.MaxRetries-1 {
			break
		}

		delay := rerr.retryAfter
		if delay <= 0 {
			delay = backoffDelay(c.cfg.RetryDelay, attempt)
		}

		c.logger.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Int("max_retries", c.cfg.MaxRetries).
			Dur("delay", delay).
			Msg("Extraction request failed, retrying")

		select {
		case <-ctx.Done():
			return statement.TableData{}, ctx.Err()
		case <-time.After(delay):
		}
	}

	return statement.TableData{}, fmt.Errorf("extraction api failed after %d attempts: %w", c.cfg.MaxRetries, lastErr)
}

// attempt performs one request with its own timeout.
func (c *Client) attempt(ctx context.Context, payload []byte) (statement.TableData, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return statement.TableData{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The caller's own cancellation is not retryable.
		if ctx.Err() != nil {
			return statement.TableData{}, ctx.Err()
		}
		return statement.TableData{}, retryable(fmt.Errorf("send request: %w", err), 0)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return c.parseResponse(resp)
	case resp.StatusCode == http.StatusUnauthorized:
		return statement.TableData{}, ErrUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests:
		return statement.TableData{}, retryable(statusError(resp.StatusCode), parseRetryAfter(resp.Header))
	case resp.StatusCode >= 500:
		return statement.TableData{}, retryable(statusError(resp.StatusCode), 0)
	default:
		return statement.TableData{}, statusError(resp.StatusCode)
	}
}

func (c *Client) parseResponse(resp *http.Response) (statement.TableData, error) {
	var body messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return statement.TableData{}, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}

	var reply strings.Builder
	for _, block := range body.Content {
		if block.Type == "text" {
			reply.WriteString(block.Text)
		}
	}
	if reply.Len() == 0 {
		return statement.TableData{}, fmt.Errorf("%w: empty content", ErrBadResponse)
	}

	raw, err := extractJSONArray(reply.String())
	if err != nil {
		return statement.TableData{}, err
	}

	var txns []statement.Transaction
	if err := json.Unmarshal([]byte(raw), &txns); err != nil {
		return statement.TableData{}, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if len(txns) == 0 {
		return statement.TableData{}, fmt.Errorf("%w: no transactions in reply", ErrBadResponse)
	}

	return statement.FromTransactions(txns), nil
}

// extractJSONArray pulls the transaction array out of the model reply,
// accepting either a fenced ```json block or a bare array.
func extractJSONArray(reply string) (string, error) {
	if idx := strings.Index(reply, "```json"); idx >= 0 {
		rest := reply[idx+len("```json"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end]), nil
		}
	}

	start := strings.Index(reply, "[")
	end := strings.LastIndex(reply, "]")
	if start < 0 || end <= start {
		return "", fmt.Errorf("%w: no JSON array in reply", ErrBadResponse)
	}
	return reply[start : end+1], nil
}

func buildPrompt(text string) string {
	var b strings.Builder
	b.WriteString("Extract every transaction from the bank statement text below.\n")
	b.WriteString("Respond with only a JSON array, one object per transaction, using exactly these keys:\n")
	b.WriteString(`[{"date": "MM/DD/YY", "description": "...", "amount": "-123.45"}]` + "\n")
	b.WriteString("Use negative amounts for debits. Do not include any prose outside the array.\n\n")
	b.WriteString("Statement text:\n")
	b.WriteString(text)
	return b.String()
}
