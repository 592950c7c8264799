package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/avetls/rangekeeper/internal/abiword"
	"github.com/avetls/rangekeeper/internal/rpc"
)

var (
	selPositions      = abiword.Selector("positions(uint256)")
	selOwnerOf        = abiword.Selector("ownerOf(uint256)")
	selTokenFarmedIn  = abiword.Selector("tokenFarmedIn(uint256)")
	selPoolByPair     = abiword.Selector("poolByPair(address,address)")
	selCustomPool     = abiword.Selector("customPoolByPair(address,address,address)")
	selGlobalState    = abiword.Selector("globalState()")
	selTickSpacing    = abiword.Selector("tickSpacing()")
	selSymbol         = abiword.Selector("symbol()")
	selName           = abiword.Selector("name()")
	selDecimals       = abiword.Selector("decimals()")
	selBalanceOf      = abiword.Selector("balanceOf(address)")
	selAllowance      = abiword.Selector("allowance(address,address)")
	selDeposits       = abiword.Selector("deposits(uint256)")
	selIncentiveKeys  = abiword.Selector("incentiveKeys(address)")
	selGetRewardInfo  = abiword.Selector("getRewardInfo((address,address,address,uint256),uint256)")
)

var (
	ErrPoolNotFound  = errors.New("chain: no pool for pair")
	ErrPartialDecode = errors.New("chain: return data shorter than expected")
)

func (r *Reader) callWords(ctx context.Context, to common.Address, data []byte, block rpc.BlockRef, want int) ([]abiword.Word, error) {
	ret, err := r.RPC.EthCall(ctx, rpc.CallMsg{To: to, Data: data}, block)
	if err != nil {
		return nil, err
	}
	ws, err := abiword.Words(ret)
	if err != nil {
		return nil, err
	}
	if len(ws) < want {
		return nil, fmt.Errorf("%w: got %d words, want %d", ErrPartialDecode, len(ws), want)
	}
	return ws, nil
}

// Position reads the full position tuple from the position manager.
func (r *Reader) Position(ctx context.Context, id *big.Int) (*Position, error) {
	idw, err := abiword.EncodeUint(id, 256)
	if err != nil {
		return nil, err
	}
	// (nonce, operator, token0, token1, deployer, tickLower, tickUpper,
	//  liquidity, feeGrowth0, feeGrowth1, tokensOwed0, tokensOwed1)
	ws, err := r.callWords(ctx, r.C.PositionManager, abiword.CallData(selPositions, idw), rpc.Latest, 12)
	if err != nil {
		return nil, fmt.Errorf("positions(%s): %w", id, err)
	}
	lower, err := abiword.DecodeInt(ws[5], 24)
	if err != nil {
		return nil, err
	}
	upper, err := abiword.DecodeInt(ws[6], 24)
	if err != nil {
		return nil, err
	}
	liq, err := abiword.DecodeUint(ws[7], 128)
	if err != nil {
		return nil, err
	}
	owed0, err := abiword.DecodeUint(ws[10], 128)
	if err != nil {
		return nil, err
	}
	owed1, err := abiword.DecodeUint(ws[11], 128)
	if err != nil {
		return nil, err
	}
	return &Position{
		ID:        new(big.Int).Set(id),
		Token0:    abiword.DecodeAddress(ws[2]),
		Token1:    abiword.DecodeAddress(ws[3]),
		Deployer:  abiword.DecodeAddress(ws[4]),
		TickLower: lower.Int64(),
		TickUpper: upper.Int64(),
		Liquidity: liq,
		Owed0:     owed0,
		Owed1:     owed1,
	}, nil
}

// OwnerOf reads current NFT ownership. Always live: staking does not move
// custody, so ownership alone never proves stake state.
func (r *Reader) OwnerOf(ctx context.Context, id *big.Int) (common.Address, error) {
	idw, err := abiword.EncodeUint(id, 256)
	if err != nil {
		return common.Address{}, err
	}
	ws, err := r.callWords(ctx, r.C.PositionManager, abiword.CallData(selOwnerOf, idw), rpc.Latest, 1)
	if err != nil {
		return common.Address{}, fmt.Errorf("ownerOf(%s): %w", id, err)
	}
	return abiword.DecodeAddress(ws[0]), nil
}

// PoolByPair resolves the pool for a token pair under the default deployer.
func (r *Reader) PoolByPair(ctx context.Context, token0, token1 common.Address) (common.Address, error) {
	data := abiword.CallData(selPoolByPair, abiword.EncodeAddress(token0), abiword.EncodeAddress(token1))
	ws, err := r.callWords(ctx, r.C.Factory, data, rpc.Latest, 1)
	if err != nil {
		return common.Address{}, fmt.Errorf("poolByPair: %w", err)
	}
	pool := abiword.DecodeAddress(ws[0])
	if pool == (common.Address{}) {
		return common.Address{}, ErrPoolNotFound
	}
	return pool, nil
}

// PoolByPairAndDeployer resolves a custom-deployer pool for the pair.
func (r *Reader) PoolByPairAndDeployer(ctx context.Context, deployer, token0, token1 common.Address) (common.Address, error) {
	if deployer == (common.Address{}) {
		return r.PoolByPair(ctx, token0, token1)
	}
	data := abiword.CallData(selCustomPool,
		abiword.EncodeAddress(deployer), abiword.EncodeAddress(token0), abiword.EncodeAddress(token1))
	ws, err := r.callWords(ctx, r.C.Factory, data, rpc.Latest, 1)
	if err != nil {
		return common.Address{}, fmt.Errorf("customPoolByPair: %w", err)
	}
	pool := abiword.DecodeAddress(ws[0])
	if pool == (common.Address{}) {
		return common.Address{}, ErrPoolNotFound
	}
	return pool, nil
}

// GlobalTick reads the pool's current price and tick from globalState().
func (r *Reader) GlobalTick(ctx context.Context, pool common.Address, block rpc.BlockRef) (price *big.Int, tick int64, err error) {
	ws, err := r.callWords(ctx, pool, abiword.CallData(selGlobalState), block, 2)
	if err != nil {
		return nil, 0, fmt.Errorf("globalState: %w", err)
	}
	price, err = abiword.DecodeUint(ws[0], 160)
	if err != nil {
		return nil, 0, err
	}
	t, err := abiword.DecodeInt(ws[1], 24)
	if err != nil {
		return nil, 0, err
	}
	return price, t.Int64(), nil
}

func (r *Reader) TickSpacing(ctx context.Context, pool common.Address) (int64, error) {
	ws, err := r.callWords(ctx, pool, abiword.CallData(selTickSpacing), rpc.Latest, 1)
	if err != nil {
		return 0, fmt.Errorf("tickSpacing: %w", err)
	}
	s, err := abiword.DecodeInt(ws[0], 24)
	if err != nil {
		return 0, err
	}
	return s.Int64(), nil
}

// Label is a best-effort metadata value with the fallback baked in, so the
// failure path cannot be forgotten.
type Label struct {
	value    string
	fallback string
}

func (l Label) Text() string {
	if l.value == "" {
		return l.fallback
	}
	return l.value
}

func (l Label) Known() bool { return l.value != "" }

func (r *Reader) tokenLabel(ctx context.Context, token common.Address, sel []byte, fallback string) Label {
	ret, err := r.RPC.EthCall(ctx, rpc.CallMsg{To: token, Data: abiword.CallData(sel)}, rpc.Latest)
	if err != nil {
		return Label{fallback: fallback}
	}
	return Label{value: abiword.DecodeString(ret), fallback: fallback}
}

// TokenSymbol never fails; unknown tokens read as "TOKEN".
func (r *Reader) TokenSymbol(ctx context.Context, token common.Address) Label {
	return r.tokenLabel(ctx, token, selSymbol, "TOKEN")
}

func (r *Reader) TokenName(ctx context.Context, token common.Address) Label {
	return r.tokenLabel(ctx, token, selName, "Unknown Token")
}

// TokenDecimals defaults to 18 when the token returns nothing.
func (r *Reader) TokenDecimals(ctx context.Context, token common.Address) (int, error) {
	ret, err := r.RPC.EthCall(ctx, rpc.CallMsg{To: token, Data: abiword.CallData(selDecimals)}, rpc.Latest)
	if err != nil {
		return 0, fmt.Errorf("decimals: %w", err)
	}
	if len(ret) == 0 {
		return 18, nil
	}
	return int(ret[len(ret)-1]), nil
}

// BalanceOfAt reads an ERC-20 balance pinned to a block.
func (r *Reader) BalanceOfAt(ctx context.Context, token, owner common.Address, block rpc.BlockRef) (*big.Int, error) {
	data := abiword.CallData(selBalanceOf, abiword.EncodeAddress(owner))
	ws, err := r.callWords(ctx, token, data, block, 1)
	if err != nil {
		return nil, fmt.Errorf("balanceOf: %w", err)
	}
	return abiword.DecodeUint(ws[0], 256)
}

// AllowanceAt reads an ERC-20 allowance pinned to a block.
func (r *Reader) AllowanceAt(ctx context.Context, token, owner, spender common.Address, block rpc.BlockRef) (*big.Int, error) {
	data := abiword.CallData(selAllowance, abiword.EncodeAddress(owner), abiword.EncodeAddress(spender))
	ws, err := r.callWords(ctx, token, data, block, 1)
	if err != nil {
		return nil, fmt.Errorf("allowance: %w", err)
	}
	return abiword.DecodeUint(ws[0], 256)
}

// FarmedIn reads the farm-membership pointer on the position manager.
func (r *Reader) FarmedIn(ctx context.Context, id *big.Int) (common.Address, error) {
	idw, err := abiword.EncodeUint(id, 256)
	if err != nil {
		return common.Address{}, err
	}
	ws, err := r.callWords(ctx, r.C.PositionManager, abiword.CallData(selTokenFarmedIn, idw), rpc.Latest, 1)
	if err != nil {
		return common.Address{}, fmt.Errorf("tokenFarmedIn(%s): %w", id, err)
	}
	return abiword.DecodeAddress(ws[0]), nil
}

// DepositID reads the per-position incentive id on the farming center.
func (r *Reader) DepositID(ctx context.Context, id *big.Int) (common.Hash, error) {
	idw, err := abiword.EncodeUint(id, 256)
	if err != nil {
		return common.Hash{}, err
	}
	ws, err := r.callWords(ctx, r.C.FarmingCenter, abiword.CallData(selDeposits, idw), rpc.Latest, 1)
	if err != nil {
		return common.Hash{}, fmt.Errorf("deposits(%s): %w", id, err)
	}
	return common.Hash(ws[0]), nil
}

// IsStaked is the hard two-check conjunction: the membership pointer must
// equal the configured farm AND the deposit id must be non-zero. Either check
// failing means NOT staked; a failed read is an error, never a false.
func (r *Reader) IsStaked(ctx context.Context, id *big.Int) (bool, error) {
	farm, err := r.FarmedIn(ctx, id)
	if err != nil {
		return false, err
	}
	if farm != r.C.FarmingCenter {
		return false, nil
	}
	dep, err := r.DepositID(ctx, id)
	if err != nil {
		return false, err
	}
	return dep != (common.Hash{}), nil
}

// ActiveIncentiveKey reads the reward program currently attached to a pool.
func (r *Reader) ActiveIncentiveKey(ctx context.Context, pool common.Address) (*IncentiveKey, error) {
	data := abiword.CallData(selIncentiveKeys, abiword.EncodeAddress(pool))
	ws, err := r.callWords(ctx, r.C.EternalFarming, data, rpc.Latest, 4)
	if err != nil {
		return nil, fmt.Errorf("incentiveKeys: %w", err)
	}
	nonce, err := abiword.DecodeUint(ws[3], 256)
	if err != nil {
		return nil, err
	}
	return &IncentiveKey{
		RewardToken:      abiword.DecodeAddress(ws[0]),
		BonusRewardToken: abiword.DecodeAddress(ws[1]),
		Pool:             abiword.DecodeAddress(ws[2]),
		Nonce:            nonce,
	}, nil
}

// PendingRewards reads accrued-but-unclaimed rewards for a staked position.
func (r *Reader) PendingRewards(ctx context.Context, key IncentiveKey, id *big.Int) (reward, bonus *big.Int, err error) {
	kws, err := key.words()
	if err != nil {
		return nil, nil, err
	}
	idw, err := abiword.EncodeUint(id, 256)
	if err != nil {
		return nil, nil, err
	}
	data := abiword.CallData(selGetRewardInfo, kws[0], kws[1], kws[2], kws[3], idw)
	ws, err := r.callWords(ctx, r.C.EternalFarming, data, rpc.Latest, 2)
	if err != nil {
		return nil, nil, fmt.Errorf("getRewardInfo: %w", err)
	}
	reward, err = abiword.DecodeUint(ws[0], 256)
	if err != nil {
		return nil, nil, err
	}
	bonus, err = abiword.DecodeUint(ws[1], 256)
	if err != nil {
		return nil, nil, err
	}
	return reward, bonus, nil
}
