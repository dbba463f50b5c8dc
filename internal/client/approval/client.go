package approval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/atinyakov/zkkeeper/internal/models"
)

const (
	apiRegister = "/api/register"
	apiLogin    = "/api/login"
	apiPending  = "/api/pending"
	apiAdminRPC = "/api/admin/rpc"
)

// RPCError is a failed call as reported by the server.
type RPCError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *RPCError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Code)
	}
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
}

// Client talks to the approver endpoints over mTLS.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New returns a client for baseURL.
func New(baseURL string, httpClient *http.Client) *Client {
	return &Client{BaseURL: baseURL, HTTP: httpClient}
}

// Login checks that the client certificate belongs to a registered
// approver and returns its login.
func (c *Client) Login(ctx context.Context) (string, error) {
	var out struct {
		Approver string `json:"approver"`
	}
	if err := c.do(ctx, http.MethodPost, apiLogin, nil, &out); err != nil {
		return "", err
	}
	return out.Approver, nil
}

// List returns pending requests matching filter.
func (c *Client) List(ctx context.Context, filter models.PendingRequestFilter) ([]models.PendingRequestSummary, error) {
	q := url.Values{}
	if filter.Status != "" {
		q.Set("status", string(filter.Status))
	}
	if filter.Type != "" {
		q.Set("type", string(filter.Type))
	}
	if filter.Origin != "" {
		q.Set("origin", filter.Origin)
	}
	if filter.IncludeSettled {
		q.Set("settled", "true")
	}
	path := apiPending
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out []models.PendingRequestSummary
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Decide posts a decision for request id. payload replaces the request's
// arguments when approving and may be nil.
func (c *Client) Decide(ctx context.Context, id string, decision models.Decision, payload json.RawMessage) error {
	body := models.DecisionRequest{Decision: decision, Payload: payload}
	var resp models.Response
	return c.do(ctx, http.MethodPost, apiPending+"/"+url.PathEscape(id)+"/decision", body, &resp)
}

// AbandonOrigin withdraws every request origin still has pending and
// returns how many were abandoned.
func (c *Client) AbandonOrigin(ctx context.Context, origin string) (int, error) {
	var resp struct {
		Result struct {
			Abandoned int `json:"abandoned"`
		} `json:"result"`
	}
	path := apiPending + "/abandon?" + url.Values{"origin": {origin}}.Encode()
	if err := c.do(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Abandoned, nil
}

// Call runs a trusted RPC method and decodes its result into out, which may
// be nil.
func (c *Client) Call(ctx context.Context, method models.OperationType, args any, out any) error {
	req := models.Request{Method: method}
	if args != nil {
		raw, err := json.Marshal(args)
		if err != nil {
			return err
		}
		req.Payload = raw
	}

	var resp struct {
		Success bool            `json:"success"`
		Result  json.RawMessage `json:"result"`
	}
	if err := c.do(ctx, http.MethodPost, apiAdminRPC, req, &resp); err != nil {
		return err
	}
	if out == nil || len(resp.Result) == 0 {
		return nil
	}
	return json.Unmarshal(resp.Result, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return decodeError(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

// decodeError prefers the JSON envelope and falls back to the plain-text
// bodies http.Error writes.
func decodeError(status int, data []byte) error {
	var r models.Response
	if err := json.Unmarshal(data, &r); err == nil && r.Error != "" {
		return &RPCError{StatusCode: status, Code: r.Code, Message: r.Error}
	}
	return &RPCError{StatusCode: status, Message: string(bytes.TrimSpace(data))}
}
