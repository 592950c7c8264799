package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/avetls/rangekeeper/internal/rpc"
)

// ConfirmToken must be supplied out of band before anything is broadcast.
const ConfirmToken = "BROADCAST"

// A signed transaction is at least nonce+fees+to+signature; anything shorter
// than this many raw bytes cannot be one.
const minSignedTxBytes = 100

var (
	ErrNotConfirmed = errors.New("chain: broadcast not confirmed")
	ErrBadRawTx     = errors.New("chain: raw transaction payload is malformed")
)

// Broadcast forwards an already-signed raw transaction verbatim. This is the
// only write path in the engine and it constructs nothing itself.
func Broadcast(ctx context.Context, c *rpc.Client, rawHex, confirm string) (common.Hash, error) {
	if confirm != ConfirmToken {
		return common.Hash{}, ErrNotConfirmed
	}
	raw := strings.TrimSpace(rawHex)
	h := strings.TrimPrefix(strings.ToLower(raw), "0x")
	if len(h) == 0 || len(h)%2 != 0 {
		return common.Hash{}, fmt.Errorf("%w: odd or empty hex", ErrBadRawTx)
	}
	for _, ch := range h {
		if (ch < '0' || ch > '9') && (ch < 'a' || ch > 'f') {
			return common.Hash{}, fmt.Errorf("%w: non-hex character", ErrBadRawTx)
		}
	}
	if len(h)/2 < minSignedTxBytes {
		return common.Hash{}, fmt.Errorf("%w: %d bytes is too short for a signed transaction", ErrBadRawTx, len(h)/2)
	}
	return c.SendRawTransaction(ctx, "0x"+h)
}
