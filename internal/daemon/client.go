package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client is spec.md §4.10's thin client: it probes /health with a 50ms
// timeout and, on success, routes calls through RPC; on any failure it
// signals the caller to fall back to direct in-process execution.
// Grounded on original_source/src/cerberus/daemon/thin_client.py's
// is_daemon_available/send_rpc_call/auto_route, reimplemented with
// net/http instead of the original's requests library.
type Client struct {
	baseURL    string
	httpClient *http.Client
	nextID     int
}

// healthProbeTimeout matches thin_client.py's default 50ms availability
// check.
const healthProbeTimeout = 50 * time.Millisecond

// defaultRPCTimeout matches spec.md §5's "client timeout (default 10s
// for general calls, 5s for health)."
const defaultRPCTimeout = 10 * time.Second

// NewClient builds a thin client against a daemon listening on addr
// (host:port, as returned by Server.Addr()).
func NewClient(addr string) *Client {
	return &Client{
		baseURL:    fmt.Sprintf("http://%s", addr),
		httpClient: &http.Client{},
	}
}

// Available reports whether the daemon is reachable and healthy within
// a 50ms budget.
func (c *Client) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}
	var health struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return false
	}
	return health.Status == "ok"
}

// Get fetches a plain JSON GET endpoint (e.g. /status) that isn't a
// JSON-RPC method, returning the raw response body.
func (c *Client) Get(ctx context.Context, path string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultRPCTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to connect to daemon: %w", err)
	}
	defer resp.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Call sends one JSON-RPC request and returns its result, or an error
// describing either a transport failure or an RPC-level error.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultRPCTimeout)
	defer cancel()

	paramBytes, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	c.nextID++
	reqBody, err := json.Marshal(Request{
		JSONRPC: jsonRPCVersion,
		Method:  method,
		Params:  paramBytes,
		ID:      c.nextID,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rpc", bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w", err)
	}
	defer resp.Body.Close()

	var rpcResp Response
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("failed to decode daemon response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	result, err := json.Marshal(rpcResp.Result)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AutoRoute implements thin_client.py's auto_route: if the daemon is
// reachable, call method through it; otherwise (or on any RPC failure)
// run fallback directly in-process. The call is transparent to the
// caller beyond the function signature.
func AutoRoute[T any](ctx context.Context, c *Client, method string, params any, fallback func() (T, error)) (T, error) {
	if c == nil || !c.Available(ctx) {
		return fallback()
	}
	raw, err := c.Call(ctx, method, params)
	if err != nil {
		return fallback()
	}
	var result T
	if err := json.Unmarshal(raw, &result); err != nil {
		return fallback()
	}
	return result, nil
}
