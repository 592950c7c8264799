package rebalance

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avetls/rangekeeper/internal/chain"
)

var (
	rewardToken = common.HexToAddress("0x4444444444444444444444444444444444444444")
	poolAddr    = common.HexToAddress("0x5555555555555555555555555555555555555555")
)

type fakeKeyReader struct {
	active    chain.IncentiveKey
	activeErr error
	deposit   common.Hash
}

func (f *fakeKeyReader) ActiveIncentiveKey(_ context.Context, _ common.Address) (*chain.IncentiveKey, error) {
	if f.activeErr != nil {
		return nil, f.activeErr
	}
	k := f.active
	return &k, nil
}

func (f *fakeKeyReader) DepositID(_ context.Context, _ *big.Int) (common.Hash, error) {
	return f.deposit, nil
}

type fakeHistory struct {
	keys []chain.IncentiveKey
	err  error
}

func (f *fakeHistory) PastIncentiveKeys(_ context.Context, _ common.Address) ([]chain.IncentiveKey, error) {
	return f.keys, f.err
}

func keyWithNonce(n int64) chain.IncentiveKey {
	return chain.IncentiveKey{RewardToken: rewardToken, Pool: poolAddr, Nonce: big.NewInt(n)}
}

func mustID(t *testing.T, k chain.IncentiveKey) common.Hash {
	t.Helper()
	id, err := k.ID()
	require.NoError(t, err)
	return id
}

func TestResolveActiveKeyFastPath(t *testing.T) {
	active := keyWithNonce(12)
	r := &fakeKeyReader{active: active, deposit: mustID(t, active)}
	got, err := ResolveIncentiveKey(context.Background(), r, nil, poolAddr, big.NewInt(1), DefaultScanBounds)
	require.NoError(t, err)
	assert.Zero(t, got.Nonce.Cmp(active.Nonce))
}

func TestResolveStaleEnrollmentBelowActive(t *testing.T) {
	// Program rotated to nonce 12, the position is still staked under 9.
	r := &fakeKeyReader{active: keyWithNonce(12), deposit: mustID(t, keyWithNonce(9))}
	got, err := ResolveIncentiveKey(context.Background(), r, nil, poolAddr, big.NewInt(1), DefaultScanBounds)
	require.NoError(t, err)
	assert.EqualValues(t, 9, got.Nonce.Int64())
}

func TestResolveScanAboveActive(t *testing.T) {
	r := &fakeKeyReader{active: keyWithNonce(12), deposit: mustID(t, keyWithNonce(15))}
	got, err := ResolveIncentiveKey(context.Background(), r, nil, poolAddr, big.NewInt(1), DefaultScanBounds)
	require.NoError(t, err)
	assert.EqualValues(t, 15, got.Nonce.Int64())
}

func TestResolveRespectsScanBounds(t *testing.T) {
	// The matching nonce sits outside a narrow window: without history this
	// must be a hard failure, never a guess.
	r := &fakeKeyReader{active: keyWithNonce(50), deposit: mustID(t, keyWithNonce(10))}
	_, err := ResolveIncentiveKey(context.Background(), r, nil, poolAddr, big.NewInt(1), ScanBounds{Back: 4, Forward: 2})
	assert.ErrorIs(t, err, ErrKeyNotResolved)
}

func TestResolveFallsBackToHistory(t *testing.T) {
	// Deposit matches a key with a different reward token, which no nonce
	// scan around the active key can reconstruct.
	staked := chain.IncentiveKey{
		RewardToken: common.HexToAddress("0x6666666666666666666666666666666666666666"),
		Pool:        poolAddr,
		Nonce:       big.NewInt(3),
	}
	r := &fakeKeyReader{active: keyWithNonce(12), deposit: mustID(t, staked)}
	hist := &fakeHistory{keys: []chain.IncentiveKey{keyWithNonce(2), staked}}
	got, err := ResolveIncentiveKey(context.Background(), r, hist, poolAddr, big.NewInt(1), DefaultScanBounds)
	require.NoError(t, err)
	assert.Equal(t, staked.RewardToken, got.RewardToken)
	assert.EqualValues(t, 3, got.Nonce.Int64())
}

func TestResolveExhaustionIsHardFailure(t *testing.T) {
	r := &fakeKeyReader{active: keyWithNonce(12), deposit: common.HexToHash("0x00000000000000000000000000000000000000000000000000000000000000ab")}
	hist := &fakeHistory{keys: []chain.IncentiveKey{keyWithNonce(1)}}
	_, err := ResolveIncentiveKey(context.Background(), r, hist, poolAddr, big.NewInt(1), DefaultScanBounds)
	assert.ErrorIs(t, err, ErrKeyNotResolved)
}

func TestResolveZeroDepositIsNotStaked(t *testing.T) {
	r := &fakeKeyReader{active: keyWithNonce(12)}
	_, err := ResolveIncentiveKey(context.Background(), r, nil, poolAddr, big.NewInt(1), DefaultScanBounds)
	assert.ErrorIs(t, err, ErrKeyNotResolved)
}

func TestResolveReadFailurePropagates(t *testing.T) {
	r := &fakeKeyReader{activeErr: errors.New("rpc: connection reset")}
	_, err := ResolveIncentiveKey(context.Background(), r, nil, poolAddr, big.NewInt(1), DefaultScanBounds)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrKeyNotResolved)
}
