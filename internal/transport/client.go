// Package transport is the JSON-over-HTTP layer shared by the auth gateway and
// the request gateway. It knows nothing about sessions or retries.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/apperr"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/model"
)

const (
	HeaderRequestID = "X-Request-ID"

	maxBodySize = 4 << 20
)

type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	// Token is sent as a bearer credential when non-empty.
	Token     string
	RequestID string
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func New(baseURL string, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// Do sends req. A failure to reach the backend is a *apperr.NetworkError; a
// non-2xx answer is a *apperr.StatusError carrying the envelope message.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	op := req.Method + " " + req.Path

	httpReq, err := c.build(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &apperr.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &apperr.NetworkError{Op: op, Err: fmt.Errorf("reading body: %w", err)}
	}

	c.logger.Debug("backend response",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.String("request_id", req.RequestID),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &apperr.StatusError{Code: resp.StatusCode, Message: envelopeMessage(body)}
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

func (c *Client) build(ctx context.Context, req Request) (*http.Request, error) {
	target := c.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		raw, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Token)
	}
	if req.RequestID != "" {
		httpReq.Header.Set(HeaderRequestID, req.RequestID)
	}
	return httpReq, nil
}

// DecodeEnvelope unwraps the data field of the standard response envelope.
// An empty body decodes to the zero value.
func DecodeEnvelope[T any](resp *Response) (T, error) {
	var env model.Envelope[T]
	if resp == nil || len(bytes.TrimSpace(resp.Body)) == 0 {
		return env.Data, nil
	}
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return env.Data, fmt.Errorf("failed to decode response: %w", err)
	}
	return env.Data, nil
}

func envelopeMessage(body []byte) string {
	var env struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}
	if env.Message != "" {
		return env.Message
	}
	return env.Error
}
