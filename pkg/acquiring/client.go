package acquiring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lacucina/restaurant-backend/pkg/config"
	"github.com/lacucina/restaurant-backend/pkg/enums"
	pkgerrors "github.com/lacucina/restaurant-backend/pkg/errors"
)

const (
	registerPath        = "register.do"
	statusPath          = "getOrderStatusExtended.do"
	defaultTimeout      = 15 * time.Second
	redactedPlaceholder = "[REDACTED]"

	responseBodyLimit  int64 = 64 * 1024
	errorBodyReadLimit int64 = 1024
)

var (
	errCredentialsRequired = errors.New("acquiring username and password are required")
	errBaseURLRequired     = errors.New("acquiring base url is required")
)

// Client talks to the redirect-based acquiring gateway (register / status API).
type Client struct {
	httpClient *http.Client
	baseURL    string
	username   string
	password   string
	language   string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient builds the gateway client from configuration. Every request uses
// the configured timeout.
func NewClient(cfg config.AcquiringConfig, opts ...Option) (*Client, error) {
	username := strings.TrimSpace(cfg.Username)
	password := strings.TrimSpace(cfg.Password)
	if username == "" || password == "" {
		return nil, errCredentialsRequired
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		username:   username,
		password:   password,
		language:   strings.TrimSpace(cfg.Language),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	if client.httpClient.Timeout <= 0 {
		client.httpClient.Timeout = timeout
	}
	return client, nil
}

// Register creates a payment attempt at the gateway. It is never retried by
// this client; a failed registration must be retried with a new order number.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "acquiring client not configured")
	}
	if req.AmountMinor <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if strings.TrimSpace(req.OrderNumber) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order number is required")
	}
	if req.ReturnURL == "" || req.FailURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "return and fail urls are required")
	}

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(req.AmountMinor, 10))
	form.Set("orderNumber", req.OrderNumber)
	form.Set("returnUrl", req.ReturnURL)
	form.Set("failUrl", req.FailURL)
	if req.Description != "" {
		form.Set("description", req.Description)
	}

	var reply registerReply
	if err := c.post(ctx, registerPath, form, &reply); err != nil {
		return nil, err
	}
	if reply.ErrorCode != 0 {
		return nil, c.gatewayError(fmt.Errorf("error code %d: %s", reply.ErrorCode, reply.ErrorMessage), "register rejected")
	}
	if reply.OrderID == "" || reply.FormURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeGateway, "register response missing orderId or formUrl")
	}

	return &RegisterResponse{
		GatewayOrderID: reply.OrderID,
		FormURL:        reply.FormURL,
	}, nil
}

// OrderStatus queries the authoritative status of a registered attempt. The
// call performs no mutation at the gateway and is safe to repeat.
func (c *Client) OrderStatus(ctx context.Context, gatewayOrderID string) (*StatusResponse, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "acquiring client not configured")
	}
	gatewayOrderID = strings.TrimSpace(gatewayOrderID)
	if gatewayOrderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway order id is required")
	}

	form := url.Values{}
	form.Set("orderId", gatewayOrderID)

	var reply statusReply
	if err := c.post(ctx, statusPath, form, &reply); err != nil {
		return nil, err
	}
	if reply.ErrorCode != 0 {
		return nil, c.gatewayError(fmt.Errorf("error code %d: %s", reply.ErrorCode, reply.ErrorMessage), "status query rejected")
	}
	if reply.OrderStatus == nil {
		return nil, pkgerrors.New(pkgerrors.CodeGateway, "status response missing orderStatus")
	}
	status, err := enums.ParseGatewayStatus(int(*reply.OrderStatus))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "status response carried unknown orderStatus")
	}

	return &StatusResponse{
		OrderStatus:           status,
		ActionCode:            int(reply.ActionCode),
		ActionCodeDescription: reply.ActionCodeDescription,
		AmountMinor:           int64(reply.Amount),
		OrderNumber:           reply.OrderNumber,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, form url.Values, out any) error {
	form.Set("userName", c.username)
	form.Set("password", c.password)
	if c.language != "" {
		form.Set("language", c.language)
	}

	endpoint := c.baseURL + "/" + path
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return c.gatewayError(err, "build "+path+" request")
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return c.gatewayError(err, path+" timed out")
		}
		return c.gatewayError(err, "execute "+path+" request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		return c.gatewayError(fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), path+" request failed")
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, responseBodyLimit)).Decode(out); err != nil {
		return c.gatewayError(err, "decode "+path+" response")
	}
	return nil
}

// gatewayError wraps err as a gateway failure with credentials scrubbed from
// the message, since url errors and echoed bodies may repeat the request.
func (c *Client) gatewayError(err error, message string) error {
	return pkgerrors.Wrap(pkgerrors.CodeGateway, errors.New(c.redact(err.Error())), message)
}

func (c *Client) redact(s string) string {
	for _, secret := range []string{c.password, url.QueryEscape(c.password)} {
		if secret != "" {
			s = strings.ReplaceAll(s, secret, redactedPlaceholder)
		}
	}
	return s
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
