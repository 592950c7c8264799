package rpc

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"strings"
	"time"
)

var retryHTTP = map[int]bool{
	408: true, 425: true, 429: true,
	500: true, 502: true, 503: true, 504: true,
}

// Provider throttle codes seen in the wild (-32005 is the de-facto standard).
var retryRPCCodes = map[int]bool{
	-32005: true,
	-32016: true,
	429:    true,
}

var transientSubstrings = []string{
	"rate limit",
	"too many requests",
	"timeout",
	"timed out",
	"connection reset",
	"socket hang up",
	"connection refused",
	"eof",
}

// Retryable is a pure predicate over a call failure: transient transport
// conditions retry, everything else (a well-formed revert included) surfaces
// to the caller untouched.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	var re *RPCError
	if errors.As(err, &re) {
		if retryHTTP[re.HTTPStatus] {
			return true
		}
		if retryRPCCodes[re.Code] {
			return true
		}
		return containsTransient(re.Message)
	}
	return containsTransient(err.Error())
}

func containsTransient(s string) bool {
	ls := strings.ToLower(s)
	for _, sub := range transientSubstrings {
		if strings.Contains(ls, sub) {
			return true
		}
	}
	return false
}

// backoffDelay is min(max, base*2^attempt) plus random jitter up to 20%.
func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	d := base
	for i := 0; i < attempt && d < max; i++ {
		d *= 2
	}
	if d > max {
		d = max
	}
	jitter := time.Duration(rand.Int63n(int64(d)/5 + 1))
	return d + jitter
}
