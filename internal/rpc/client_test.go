package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rpcServer(t *testing.T, handler func(method string, params []json.RawMessage, id int64) (string, *string)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Jsonrpc string            `json:"jsonrpc"`
			Method  string            `json:"method"`
			Params  []json.RawMessage `json:"params"`
			ID      int64             `json:"id"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "2.0", req.Jsonrpc)
		result, errBody := handler(req.Method, req.Params, req.ID)
		w.Header().Set("Content-Type", "application/json")
		if errBody != nil {
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,"error":%s}`, req.ID, *errBody)
			return
		}
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,"result":%s}`, req.ID, result)
	}))
}

func TestCallReturnsResult(t *testing.T) {
	srv := rpcServer(t, func(method string, _ []json.RawMessage, _ int64) (string, *string) {
		assert.Equal(t, "eth_chainId", method)
		return `"0x64"`, nil
	})
	defer srv.Close()

	c := NewClient(srv.URL)
	id, err := c.ChainID(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 100, id.Int64())
}

func TestCallSurfacesTypedRPCError(t *testing.T) {
	body := `{"code":3,"message":"execution reverted","data":"0x08c379a0"}`
	srv := rpcServer(t, func(string, []json.RawMessage, int64) (string, *string) {
		return "", &body
	})
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Call(context.Background(), "eth_call")
	var re *RPCError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 3, re.Code)
	assert.Equal(t, "execution reverted", re.Message)
	assert.Equal(t, common.FromHex("0x08c379a0"), re.RevertData())
}

func TestCallExtractsNestedErrorData(t *testing.T) {
	body := `{"code":-32000,"message":"execution reverted","data":{"message":"revert","data":"0xdeadbeef"}}`
	srv := rpcServer(t, func(string, []json.RawMessage, int64) (string, *string) {
		return "", &body
	})
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Call(context.Background(), "eth_call")
	var re *RPCError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, common.FromHex("0xdeadbeef"), re.RevertData())
}

func TestRequestIDsAreMonotonic(t *testing.T) {
	var seen []int64
	srv := rpcServer(t, func(_ string, _ []json.RawMessage, id int64) (string, *string) {
		seen = append(seen, id)
		return `"0x1"`, nil
	})
	defer srv.Close()

	c := NewClient(srv.URL)
	for i := 0; i < 3; i++ {
		_, err := c.Call(context.Background(), "eth_blockNumber")
		require.NoError(t, err)
	}
	require.Len(t, seen, 3)
	assert.Less(t, seen[0], seen[1])
	assert.Less(t, seen[1], seen[2])
}

func TestIndependentCountersDoNotInterfere(t *testing.T) {
	a, b := &Counter{}, &Counter{}
	assert.EqualValues(t, 1, a.Next())
	assert.EqualValues(t, 2, a.Next())
	assert.EqualValues(t, 1, b.Next())
}

func TestCallRetryRecoversFromThrottle(t *testing.T) {
	attempts := 0
	throttle := `{"code":-32005,"message":"rate limit exceeded"}`
	srv := rpcServer(t, func(string, []json.RawMessage, int64) (string, *string) {
		attempts++
		if attempts < 3 {
			return "", &throttle
		}
		return `"0x2a"`, nil
	})
	defer srv.Close()

	c := NewClient(srv.URL, WithMaxRetries(4), WithBackoff(time.Millisecond, 4*time.Millisecond))
	n, err := c.BlockNumber(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 42, n)
	assert.Equal(t, 3, attempts)
}

func TestCallRetryDoesNotRetryReverts(t *testing.T) {
	attempts := 0
	revert := `{"code":3,"message":"execution reverted: STF"}`
	srv := rpcServer(t, func(string, []json.RawMessage, int64) (string, *string) {
		attempts++
		return "", &revert
	})
	defer srv.Close()

	c := NewClient(srv.URL, WithMaxRetries(4), WithBackoff(time.Millisecond, 4*time.Millisecond))
	_, err := c.CallRetry(context.Background(), "eth_call")
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestCallRetryExhaustionReturnsLastError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithMaxRetries(2), WithBackoff(time.Millisecond, 2*time.Millisecond))
	_, err := c.CallRetry(context.Background(), "eth_blockNumber")
	var re *RPCError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusServiceUnavailable, re.HTTPStatus)
}

func TestRetryableClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"ctx deadline", context.DeadlineExceeded, true},
		{"http 429", &RPCError{HTTPStatus: 429}, true},
		{"http 408", &RPCError{HTTPStatus: 408}, true},
		{"http 425", &RPCError{HTTPStatus: 425}, true},
		{"http 502", &RPCError{HTTPStatus: 502}, true},
		{"http 400", &RPCError{HTTPStatus: 400}, false},
		{"rpc throttle code", &RPCError{Code: -32005}, true},
		{"revert", &RPCError{Code: 3, Message: "execution reverted: LOK"}, false},
		{"rate limit text", &RPCError{Code: -32000, Message: "Rate Limit Reached"}, true},
		{"socket hang up", errors.New("socket hang up"), true},
		{"connection reset", errors.New("read: connection reset by peer"), true},
		{"plain failure", errors.New("invalid argument"), false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Retryable(c.err), c.name)
	}
}

func TestBackoffDelayBounds(t *testing.T) {
	base, max := 100*time.Millisecond, 800*time.Millisecond
	prevCeil := time.Duration(0)
	for attempt := 0; attempt < 8; attempt++ {
		d := backoffDelay(attempt, base, max)
		ceil := base << uint(attempt)
		if ceil > max {
			ceil = max
		}
		assert.GreaterOrEqual(t, d, ceil, "attempt %d at least the deterministic part", attempt)
		assert.LessOrEqual(t, d, ceil+ceil/5+time.Nanosecond, "attempt %d jitter within 20%%", attempt)
		assert.GreaterOrEqual(t, ceil, prevCeil)
		prevCeil = ceil
	}
}

func TestEthCallPinsBlockTag(t *testing.T) {
	var gotTag string
	srv := rpcServer(t, func(method string, params []json.RawMessage, _ int64) (string, *string) {
		require.Equal(t, "eth_call", method)
		require.Len(t, params, 2)
		require.NoError(t, json.Unmarshal(params[1], &gotTag))
		return `"0x0000000000000000000000000000000000000000000000000000000000000001"`, nil
	})
	defer srv.Close()

	c := NewClient(srv.URL)
	to := common.HexToAddress("0x1111111111111111111111111111111111111111")
	_, err := c.EthCall(context.Background(), CallMsg{To: to}, Number(19_000_000))
	require.NoError(t, err)
	assert.Equal(t, "0x121eac0", gotTag)

	_, err = c.EthCall(context.Background(), CallMsg{To: to}, Latest)
	require.NoError(t, err)
	assert.Equal(t, "latest", gotTag)
}

func TestQuantityReads(t *testing.T) {
	srv := rpcServer(t, func(method string, params []json.RawMessage, _ int64) (string, *string) {
		switch method {
		case "eth_gasPrice":
			return `"0x3b9aca00"`, nil
		case "eth_getBalance":
			var addr, tag string
			require.NoError(t, json.Unmarshal(params[0], &addr))
			require.NoError(t, json.Unmarshal(params[1], &tag))
			assert.Equal(t, "latest", tag)
			return `"0xde0b6b3a7640000"`, nil
		case "eth_estimateGas":
			var msg map[string]any
			require.NoError(t, json.Unmarshal(params[0], &msg))
			assert.Contains(t, msg, "from")
			assert.Contains(t, msg, "value")
			return `"0x5208"`, nil
		}
		t.Fatalf("unexpected method %s", method)
		return "", nil
	})
	defer srv.Close()

	c := NewClient(srv.URL)
	ctx := context.Background()

	price, err := c.GasPrice(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1_000_000_000, price.Int64())

	owner := common.HexToAddress("0x2222222222222222222222222222222222222222")
	bal, err := c.Balance(ctx, owner, Latest)
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000", bal.String())

	gas, err := c.EstimateGas(ctx, CallMsg{
		From:  &owner,
		To:    common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Value: big.NewInt(7),
	})
	require.NoError(t, err)
	assert.EqualValues(t, 21000, gas)
}

func TestTransactionReceiptPendingIsNil(t *testing.T) {
	srv := rpcServer(t, func(string, []json.RawMessage, int64) (string, *string) {
		return "null", nil
	})
	defer srv.Close()

	c := NewClient(srv.URL)
	r, err := c.TransactionReceipt(context.Background(), common.Hash{})
	require.NoError(t, err)
	assert.Nil(t, r)
}
