package client

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
	"sync"
	"time"

	"github.com/dmitrijs2005/keyauth/internal/api"
	"github.com/dmitrijs2005/keyauth/internal/common"
	"github.com/hashicorp/go-retryablehttp"
)

type HTTPClient struct {
	baseURL string
	http    *retryablehttp.Client

	mu          sync.RWMutex
	accessToken string
}

var _ Client = (*HTTPClient)(nil)

// NewKeyAuthClient builds a client for the API rooted at baseURL. timeout
// bounds each attempt; retries is the number of extra attempts after a
// transport failure or a gateway error.
func NewKeyAuthClient(baseURL string, timeout time.Duration, retries int) (*HTTPClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server URL %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q: missing host", baseURL)
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = max(retries, 0)
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = nil
	rc.HTTPClient.Timeout = timeout
	rc.CheckRetry = retryPolicy
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &HTTPClient{baseURL: strings.TrimRight(u.String(), "/"), http: rc}, nil
}

// retryPolicy retries what cannot have reached the handlers: connection
// failures and gateway errors. Application errors are never retried since
// generate-key is not idempotent.
func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	switch resp.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true, nil
	}
	return false, nil
}

func (c *HTTPClient) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

func (c *HTTPClient) setToken(t string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = t
}

func (c *HTTPClient) IsLoggedIn() bool {
	return c.token() != ""
}

func (c *HTTPClient) Logout() {
	c.setToken("")
}

func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any, auth bool) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		t := c.token()
		if t == "" {
			return ErrNotLoggedIn
		}
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+t)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(status int, data []byte) error {
	apiErr := &APIError{StatusCode: status}
	var body api.ErrorResponse
	if err := json.Unmarshal(data, &body); err == nil && body.Message != "" {
		apiErr.Code = body.Code
		apiErr.Message = body.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(status)
		}
	}
	return apiErr
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, api.PathRoot, nil, &api.MessageResponse{}, false)
}

func (c *HTTPClient) Register(ctx context.Context, username, email, password string) error {
	req := api.RegisterRequest{Username: username, Email: email, Password: password}
	return c.do(ctx, http.MethodPost, api.PathRegister, req, nil, false)
}

// Login stores the returned access token for later calls.
func (c *HTTPClient) Login(ctx context.Context, username, password string) (*api.LoginResponse, error) {
	var resp api.LoginResponse
	if err := c.do(ctx, http.MethodPost, api.PathLogin, api.LoginRequest{Username: username, Password: password}, &resp, false); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, errors.New("server returned an empty access token")
	}
	c.setToken(resp.AccessToken)
	return &resp, nil
}

func (c *HTTPClient) Me(ctx context.Context) (*api.MeResponse, error) {
	var resp api.MeResponse
	if err := c.do(ctx, http.MethodGet, api.PathMe, nil, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) Activate(ctx context.Context, key, hwid string) (*api.ActivateResponse, error) {
	var resp api.ActivateResponse
	if err := c.do(ctx, http.MethodPost, api.PathActivate, api.LicenseRequest{LicenseKey: key, HWID: hwid}, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) Validate(ctx context.Context, key, hwid string) (*api.ValidateResponse, error) {
	var resp api.ValidateResponse
	if err := c.do(ctx, http.MethodPost, api.PathValidate, api.LicenseRequest{LicenseKey: key, HWID: hwid}, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) Status(ctx context.Context) (*api.StatusResponse, error) {
	var resp api.StatusResponse
	if err := c.do(ctx, http.MethodGet, api.PathStatus, nil, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) Users(ctx context.Context) ([]api.UserInfo, error) {
	var resp []api.UserInfo
	if err := c.do(ctx, http.MethodGet, api.PathUsers, nil, &resp, true); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *HTTPClient) Generate(ctx context.Context, licenseType string, durationDays *int) (*api.GenerateResponse, error) {
	var resp api.GenerateResponse
	req := api.GenerateRequest{LicenseType: licenseType, DurationDays: durationDays}
	if err := c.do(ctx, http.MethodPost, api.PathGenerateKey, req, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) Licenses(ctx context.Context) ([]api.LicenseInfo, error) {
	var resp []api.LicenseInfo
	if err := c.do(ctx, http.MethodGet, api.PathLicenses, nil, &resp, true); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *HTTPClient) Revoke(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, api.PathRevokeLicense+url.PathEscape(id), nil, &api.MessageResponse{}, true)
}

func (c *HTTPClient) Extend(ctx context.Context, id string, days int) (*api.ExtendResponse, error) {
	var resp api.ExtendResponse
	if err := c.do(ctx, http.MethodPost, api.PathExtendLicense+url.PathEscape(id), api.ExtendRequest{Days: days}, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) Export(ctx context.Context) (*api.ExportResponse, error) {
	var resp api.ExportResponse
	if err := c.do(ctx, http.MethodPost, api.PathExportLicenses, nil, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}
