package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Counter hands out monotonically increasing request ids. It is injected
// rather than ambient so independent clients in tests never interfere.
type Counter struct {
	n atomic.Int64
}

func (c *Counter) Next() int64 { return c.n.Add(1) }

type rpcReq struct {
	Jsonrpc string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	ID      int64  `json:"id"`
}

type rpcResp struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data,omitempty"`
	} `json:"error,omitempty"`
}

// RPCError is the typed failure for one attempt: HTTP status if the transport
// answered at all, JSON-RPC code/message/data if the node did.
type RPCError struct {
	HTTPStatus int
	Code       int
	Message    string
	Data       string // hex revert payload when the node provides one
}

func (e *RPCError) Error() string {
	switch {
	case e.Code != 0 || e.Message != "":
		return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
	case e.HTTPStatus != 0:
		return fmt.Sprintf("http %d", e.HTTPStatus)
	}
	return "rpc error"
}

// RevertData returns the decoded revert payload carried in the error, if any.
func (e *RPCError) RevertData() []byte {
	if strings.HasPrefix(e.Data, "0x") && len(e.Data) > 2 {
		return common.FromHex(e.Data)
	}
	return nil
}

// extractData digs the revert hex out of the error data field; nodes return
// either a bare string or an object wrapping one.
func extractData(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var obj struct {
		Data    string `json:"data"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &obj) == nil {
		if obj.Data != "" {
			return obj.Data
		}
		return obj.Message
	}
	return ""
}

// Client is a minimal JSON-RPC 2.0 client over HTTP POST.
type Client struct {
	URL        string
	HTTP       *http.Client
	IDs        *Counter
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Log        *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option     { return func(c *Client) { c.HTTP = h } }
func WithCounter(ids *Counter) Option          { return func(c *Client) { c.IDs = ids } }
func WithLogger(l *zap.Logger) Option          { return func(c *Client) { c.Log = l } }
func WithMaxRetries(n int) Option              { return func(c *Client) { c.MaxRetries = n } }
func WithBackoff(base, max time.Duration) Option {
	return func(c *Client) { c.BaseDelay, c.MaxDelay = base, max }
}

func NewClient(url string, opts ...Option) *Client {
	c := &Client{
		URL:        strings.TrimSpace(url),
		HTTP:       &http.Client{Timeout: 12 * time.Second},
		IDs:        &Counter{},
		MaxRetries: 4,
		BaseDelay:  250 * time.Millisecond,
		MaxDelay:   8 * time.Second,
		Log:        zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Call issues exactly one JSON-RPC request. Non-2xx HTTP or a JSON-RPC error
// field yields *RPCError; retry policy lives in CallRetry.
func (c *Client) Call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	if params == nil {
		params = []any{}
	}
	body, err := json.Marshal(rpcReq{Jsonrpc: "2.0", Method: method, Params: params, ID: c.IDs.Next()})
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RPCError{HTTPStatus: resp.StatusCode, Message: resp.Status}
	}
	var out rpcResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", method, err)
	}
	if out.Error != nil {
		return nil, &RPCError{
			HTTPStatus: resp.StatusCode,
			Code:       out.Error.Code,
			Message:    out.Error.Message,
			Data:       extractData(out.Error.Data),
		}
	}
	return out.Result, nil
}

// CallRetry wraps Call with bounded exponential backoff plus jitter. Only
// failures Retryable says yes to are retried; the last failure is re-raised
// unchanged after exhaustion.
func (c *Client) CallRetry(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		res, err := c.Call(ctx, method, params...)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if attempt >= c.MaxRetries || !Retryable(err) {
			return nil, lastErr
		}
		delay := backoffDelay(attempt, c.BaseDelay, c.MaxDelay)
		c.Log.Debug("retrying rpc call",
			zap.String("method", method), zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay), zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, lastErr
		case <-time.After(delay):
		}
	}
}
