package rebalance

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/avetls/rangekeeper/internal/chain"
)

// ErrKeyNotResolved means every resolution path was exhausted. Callers must
// stop here: a guessed key in a later exit/claim call either reverts or is
// silently a no-op.
var ErrKeyNotResolved = errors.New("rebalance: incentive key could not be resolved")

// ScanBounds limit the nonce-window fallback. The defaults are policy, not a
// proven-sufficient constant, so they stay configurable.
type ScanBounds struct {
	Back    int64
	Forward int64
}

var DefaultScanBounds = ScanBounds{Back: 64, Forward: 8}

// KeyReader is the slice of the chain layer the resolver needs.
type KeyReader interface {
	ActiveIncentiveKey(ctx context.Context, pool common.Address) (*chain.IncentiveKey, error)
	DepositID(ctx context.Context, id *big.Int) (common.Hash, error)
}

// HistorySource extracts incentive keys from the account's own past
// enter/exit/claim calls against the farm. Implementations live outside this
// engine (explorer-backed); nil skips the last-resort path.
type HistorySource interface {
	PastIncentiveKeys(ctx context.Context, pool common.Address) ([]chain.IncentiveKey, error)
}

// ResolveIncentiveKey finds the reward-program key the position is actually
// enrolled under. Preferred path is the pool's active key; a stale enrollment
// under a rotated program falls back to a bounded nonce scan below, then
// above, then the account's transaction history.
func ResolveIncentiveKey(ctx context.Context, r KeyReader, hist HistorySource, pool common.Address, positionID *big.Int, bounds ScanBounds) (*chain.IncentiveKey, error) {
	active, err := r.ActiveIncentiveKey(ctx, pool)
	if err != nil {
		return nil, fmt.Errorf("read active key: %w", err)
	}
	deposit, err := r.DepositID(ctx, positionID)
	if err != nil {
		return nil, fmt.Errorf("read deposit id: %w", err)
	}
	if deposit == (common.Hash{}) {
		return nil, fmt.Errorf("%w: position %s has no deposit id", ErrKeyNotResolved, positionID)
	}

	matches := func(k chain.IncentiveKey) bool {
		id, err := k.ID()
		return err == nil && id == deposit
	}
	if matches(*active) {
		return active, nil
	}

	activeNonce := active.Nonce.Int64()
	candidate := *active
	// Stale enrollment: the program rotated forward, the position stayed on
	// an older nonce.
	for n := activeNonce - 1; n >= 0 && n >= activeNonce-bounds.Back; n-- {
		candidate.Nonce = big.NewInt(n)
		if matches(candidate) {
			out := candidate
			return &out, nil
		}
	}
	for n := activeNonce + 1; n <= activeNonce+bounds.Forward; n++ {
		candidate.Nonce = big.NewInt(n)
		if matches(candidate) {
			out := candidate
			return &out, nil
		}
	}

	if hist != nil {
		past, err := hist.PastIncentiveKeys(ctx, pool)
		if err != nil {
			return nil, fmt.Errorf("scan farm call history: %w", err)
		}
		for _, k := range past {
			if matches(k) {
				out := k
				return &out, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: deposit %s matched no candidate for pool %s", ErrKeyNotResolved, deposit.Hex(), pool.Hex())
}
