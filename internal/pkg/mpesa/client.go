// Package mpesa talks to the Safaricom Daraja API: OAuth tokens, STK push
// and STK push status queries.
package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	SandboxBaseURL    = "https://sandbox.safaricom.co.ke"
	ProductionBaseURL = "https://api.safaricom.co.ke"

	pathToken    = "/oauth/v1/generate?grant_type=client_credentials"
	pathSTKPush  = "/mpesa/stkpush/v1/processrequest"
	pathSTKQuery = "/mpesa/stkpushquery/v1/query"

	timestampLayout    = "20060102150405"
	defaultTxType      = "CustomerPayBillOnline"
	tokenSafetyMargin  = time.Minute
	maxAccountRefLen   = 12
	maxDescriptionLen  = 13
	queryPendingCode   = "500.001.1001"
	defaultHTTPTimeout = 30 * time.Second
)

// eat is the gateway's clock for password timestamps.
var eat = time.FixedZone("EAT", 3*60*60)

type Config struct {
	ConsumerKey     string
	ConsumerSecret  string
	Passkey         string
	Shortcode       string
	CallbackURL     string
	Environment     string
	BaseURL         string
	TransactionType string
}

type Client struct {
	cfg     Config
	baseURL string
	http    *http.Client
	now     func() time.Time

	mu    sync.Mutex
	token cachedToken
}

func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = SandboxBaseURL
		if strings.EqualFold(cfg.Environment, "production") {
			base = ProductionBaseURL
		}
	}
	if cfg.TransactionType == "" {
		cfg.TransactionType = defaultTxType
	}
	return &Client{cfg: cfg, baseURL: base, http: httpClient, now: time.Now}
}

func (c *Client) BaseURL() string { return c.baseURL }

// Initiate sends an STK push prompt to the payer's handset.
func (c *Client) Initiate(ctx context.Context, req PushRequest) (*PushResult, error) {
	phone, err := NormalizePhone(req.Phone)
	if err != nil {
		return nil, &Error{Op: "stk push", Reason: "invalid phone number format", Err: err}
	}
	amount := int64(math.Round(req.Amount))
	if amount < 1 {
		return nil, &Error{Op: "stk push", Reason: "amount must be at least 1"}
	}

	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	ts := c.now().In(eat).Format(timestampLayout)
	body := stkPushBody{
		BusinessShortCode: c.cfg.Shortcode,
		Password:          c.password(ts),
		Timestamp:         ts,
		TransactionType:   c.cfg.TransactionType,
		Amount:            amount,
		PartyA:            phone,
		PartyB:            c.cfg.Shortcode,
		PhoneNumber:       phone,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  truncate(req.Reference, maxAccountRefLen),
		TransactionDesc:   truncate(req.Description, maxDescriptionLen),
	}

	var out stkPushResponse
	status, apiErr, err := c.postJSON(ctx, pathSTKPush, token, body, &out)
	if err != nil {
		return nil, &Error{Op: "stk push", StatusCode: status, Reason: "payment service unavailable", Err: err}
	}
	if apiErr != nil {
		return nil, &Error{Op: "stk push", StatusCode: status, Code: apiErr.ErrorCode, Reason: apiErr.ErrorMessage}
	}
	if out.ResponseCode != "0" {
		reason := out.ResponseDescription
		if reason == "" {
			reason = "push request rejected"
		}
		return nil, &Error{Op: "stk push", StatusCode: status, Code: out.ResponseCode, Reason: reason}
	}
	if out.CheckoutRequestID == "" {
		return nil, &Error{Op: "stk push", StatusCode: status, Reason: "missing CheckoutRequestID in response"}
	}

	return &PushResult{
		MerchantRequestID:   out.MerchantRequestID,
		CheckoutRequestID:   out.CheckoutRequestID,
		ResponseDescription: out.ResponseDescription,
		CustomerMessage:     out.CustomerMessage,
	}, nil
}

// QueryStatus asks the gateway how a push payment ended. A transaction the
// payer has not answered yet comes back as Pending.
func (c *Client) QueryStatus(ctx context.Context, checkoutRequestID string) (*ProviderStatus, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	ts := c.now().In(eat).Format(timestampLayout)
	body := stkQueryBody{
		BusinessShortCode: c.cfg.Shortcode,
		Password:          c.password(ts),
		Timestamp:         ts,
		CheckoutRequestID: checkoutRequestID,
	}

	var out stkQueryResponse
	status, apiErr, err := c.postJSON(ctx, pathSTKQuery, token, body, &out)
	if err != nil {
		return nil, &Error{Op: "stk query", StatusCode: status, Reason: "payment service unavailable", Err: err}
	}
	if apiErr != nil {
		if apiErr.ErrorCode == queryPendingCode {
			return &ProviderStatus{CheckoutRequestID: checkoutRequestID, Pending: true, ResultDesc: apiErr.ErrorMessage}, nil
		}
		return nil, &Error{Op: "stk query", StatusCode: status, Code: apiErr.ErrorCode, Reason: apiErr.ErrorMessage}
	}
	if out.ResultCode == "" {
		return &ProviderStatus{CheckoutRequestID: checkoutRequestID, Pending: true, ResultDesc: out.ResponseDescription}, nil
	}
	code, err := strconv.Atoi(out.ResultCode)
	if err != nil {
		return nil, &Error{Op: "stk query", StatusCode: status, Reason: "unreadable ResultCode " + strconv.Quote(out.ResultCode)}
	}
	return &ProviderStatus{CheckoutRequestID: checkoutRequestID, ResultCode: code, ResultDesc: out.ResultDesc}, nil
}

// Password is base64(shortcode + passkey + timestamp).
func (c *Client) password(ts string) string {
	return base64.StdEncoding.EncodeToString([]byte(c.cfg.Shortcode + c.cfg.Passkey + ts))
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.token.value != "" && now.Before(c.token.expiresAt) {
		return c.token.value, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pathToken, nil)
	if err != nil {
		return "", &Error{Op: "oauth", Err: err}
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &Error{Op: "oauth", Reason: "payment service unavailable", Err: err}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return "", &Error{Op: "oauth", StatusCode: resp.StatusCode, Reason: "failed to obtain access token"}
	}
	var tr tokenResponse
	if err := json.Unmarshal(raw, &tr); err != nil || tr.AccessToken == "" {
		return "", &Error{Op: "oauth", StatusCode: resp.StatusCode, Reason: "malformed token response", Err: err}
	}

	ttl := 3599 * time.Second
	if secs, err := strconv.Atoi(strings.TrimSpace(tr.ExpiresIn)); err == nil && secs > 0 {
		ttl = time.Duration(secs) * time.Second
	}
	if ttl > tokenSafetyMargin {
		ttl -= tokenSafetyMargin
	}
	c.token = cachedToken{value: tr.AccessToken, expiresAt: now.Add(ttl)}
	return tr.AccessToken, nil
}

// postJSON returns the decoded provider error for non-2xx answers carrying
// one; err is reserved for transport and decoding failures.
func (c *Client) postJSON(ctx context.Context, path, token string, body, out any) (int, *apiError, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(raw, &apiErr) == nil && (apiErr.ErrorCode != "" || apiErr.ErrorMessage != "") {
			return resp.StatusCode, &apiErr, nil
		}
		return resp.StatusCode, nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return resp.StatusCode, nil, errors.Join(errors.New("decode response"), err)
	}
	return resp.StatusCode, nil, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n]
}
