// Package transport provides the HTTP client of the remote sync API
package transport

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

	"github.com/possync/possync/internal/syncerr"
)

//go:generate mockgen -destination=mocks/mock_client.go -package=mocks -source=client.go Client

const (
	// DefaultTimeout bounds every remote call when no timeout is configured
	DefaultTimeout = 5 * time.Second

	// MaxResponseSize is the maximum allowed response size (32MB)
	MaxResponseSize = 32 * 1024 * 1024

	// UserAgent is the user agent string for HTTP requests
	UserAgent = "possync/1.0"

	// EmpresaHeader carries the tenant identifier on every request
	EmpresaHeader = "X-Empresa-Id"
)

// Client is the remote side of the sync protocol
type Client interface {
	// PullChanges returns the remote changes of table after the since cursor
	PullChanges(ctx context.Context, table, since string) (*PullResponse, error)

	// PushChanges uploads local changes; the server upserts by record id
	PushChanges(ctx context.Context, table string, changes []Change) (*PushResult, error)

	// CheckConnection probes the status endpoint. It never retries and never fails.
	CheckConnection(ctx context.Context) *ConnectionStatus
}

// Settings identifies and authenticates the remote endpoint
type Settings struct {
	APIURL    string
	EmpresaID string
	AuthToken string
	Timeout   time.Duration
}

// HTTPClient is the default Client implementation
type HTTPClient struct {
	client   *http.Client
	settings Settings
}

// NewHTTPClient creates a client for the given endpoint. If timeout is 0, uses DefaultTimeout.
// Missing credentials are reported by each call, before any network I/O.
func NewHTTPClient(settings Settings) *HTTPClient {
	if settings.Timeout == 0 {
		settings.Timeout = DefaultTimeout
	}
	settings.APIURL = strings.TrimRight(settings.APIURL, "/")
	return &HTTPClient{
		client: &http.Client{
			Timeout: settings.Timeout,
		},
		settings: settings,
	}
}

var _ Client = (*HTTPClient)(nil)

func (c *HTTPClient) checkConfigured() error {
	if c.settings.APIURL == "" {
		return syncerr.NewConfigurationError("api url is not configured")
	}
	if c.settings.AuthToken == "" {
		return syncerr.NewConfigurationError("auth token is not configured")
	}
	return nil
}

func (c *HTTPClient) changesURL(table string) string {
	return fmt.Sprintf("%s/sync/%s/changes", c.settings.APIURL, url.PathEscape(table))
}

// PullChanges performs GET {apiUrl}/sync/{table}/changes?since=
func (c *HTTPClient) PullChanges(ctx context.Context, table, since string) (*PullResponse, error) {
	if err := c.checkConfigured(); err != nil {
		return nil, err
	}

	target := c.changesURL(table) + "?" + url.Values{"since": []string{since}}.Encode()
	body, err := c.do(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}

	var resp PullResponse
	if err := decode(body, &resp); err != nil {
		return nil, err
	}
	for i, change := range resp.Changes {
		if change.RecordID == "" {
			return nil, syncerr.NewValidationError(fmt.Sprintf("changes[%d].recordId", i), "is required")
		}
		if !change.Operation.Valid() {
			return nil, syncerr.NewValidationError(fmt.Sprintf("changes[%d].operation", i),
				fmt.Sprintf("unknown operation %q", change.Operation))
		}
	}
	return &resp, nil
}

// PushChanges performs POST {apiUrl}/sync/{table}/changes
func (c *HTTPClient) PushChanges(ctx context.Context, table string, changes []Change) (*PushResult, error) {
	if err := c.checkConfigured(); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(PushRequest{EmpresaID: c.settings.EmpresaID, Changes: changes})
	if err != nil {
		return nil, syncerr.NewValidationError("changes", err.Error())
	}

	body, err := c.do(ctx, http.MethodPost, c.changesURL(table), payload)
	if err != nil {
		return nil, err
	}

	var resp PushResult
	if err := decode(body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CheckConnection performs GET {apiUrl}/status
func (c *HTTPClient) CheckConnection(ctx context.Context) *ConnectionStatus {
	if err := c.checkConfigured(); err != nil {
		return &ConnectionStatus{Connected: false, Message: "not configured"}
	}

	body, err := c.do(ctx, http.MethodGet, c.settings.APIURL+"/status", nil)
	if err != nil {
		return &ConnectionStatus{Connected: false, Message: err.Error()}
	}

	var resp statusResponse
	if err := decode(body, &resp); err != nil {
		return &ConnectionStatus{Connected: false, Message: err.Error()}
	}
	if resp.Status != "" && resp.Status != "ok" {
		return &ConnectionStatus{Connected: false, Message: "server status: " + resp.Status, ServerTime: resp.ServerTime}
	}
	return &ConnectionStatus{Connected: true, Message: "connected", ServerTime: resp.ServerTime}
}

func (c *HTTPClient) do(ctx context.Context, method, target string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, &syncerr.TransportError{URL: target, Message: "failed to create request", Err: err}
	}

	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.settings.AuthToken)
	if c.settings.EmpresaID != "" {
		req.Header.Set(EmpresaHeader, c.settings.EmpresaID)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(ctxErr, context.DeadlineExceeded) {
			// The caller gave up; surface the cancellation itself
			return nil, ctxErr
		}
		return nil, &syncerr.TransportError{URL: target, Message: "failed to execute request", Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, syncerr.NewHTTPError(resp.StatusCode, target, errorMessage(resp))
	}

	if resp.ContentLength > MaxResponseSize {
		return nil, syncerr.NewValidationError("body", fmt.Sprintf(
			"response size %d bytes exceeds maximum allowed size of %d bytes", resp.ContentLength, MaxResponseSize))
	}

	// +1 to detect if limit exceeded
	limitedReader := io.LimitReader(resp.Body, MaxResponseSize+1)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, &syncerr.TransportError{
			StatusCode: resp.StatusCode, URL: target, Message: "failed to read response body", Err: err,
		}
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, syncerr.NewValidationError("body",
			fmt.Sprintf("response size exceeds maximum allowed size of %d bytes", MaxResponseSize))
	}
	return body, nil
}

// errorMessage extracts a short error description from a failed response
func errorMessage(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &payload) == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return resp.Status
}

func decode(body []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return syncerr.NewValidationError("body", fmt.Sprintf("malformed payload: %v", err))
	}
	return nil
}
