package chain

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/avetls/rangekeeper/internal/abiword"
)

// Builders encode write calldata only. Nothing here signs or sends; the
// output is handed to an external signer.

var (
	selCollect       = abiword.Selector("collect((uint256,address,uint128,uint128))")
	selDecrease      = abiword.Selector("decreaseLiquidity((uint256,uint128,uint256,uint256,uint256))")
	selBurn          = abiword.Selector("burn(uint256)")
	selMint          = abiword.Selector("mint((address,address,address,int24,int24,uint256,uint256,uint256,uint256,address,uint256))")
	selApprove       = abiword.Selector("approve(address,uint256)")
	selEnterFarming  = abiword.Selector("enterFarming((address,address,address,uint256),uint256)")
	selExitFarming   = abiword.Selector("exitFarming((address,address,address,uint256),uint256)")
	selCollectReward = abiword.Selector("collectRewards((address,address,address,uint256),uint256)")
	selClaimReward   = abiword.Selector("claimReward(address,address,uint256)")
)

var (
	ErrBadTickRange   = errors.New("chain: tick range is empty or inverted")
	ErrTickNotAligned = errors.New("chain: tick is not a multiple of pool tick spacing")
)

// ValidateTickRange rejects misaligned or inverted ranges before anything is
// encoded or sent.
func ValidateTickRange(lower, upper, spacing int64) error {
	if spacing <= 0 {
		return fmt.Errorf("chain: invalid tick spacing %d", spacing)
	}
	if lower >= upper {
		return fmt.Errorf("%w: [%d, %d)", ErrBadTickRange, lower, upper)
	}
	if lower%spacing != 0 || upper%spacing != 0 {
		return fmt.Errorf("%w: [%d, %d) with spacing %d", ErrTickNotAligned, lower, upper, spacing)
	}
	return nil
}

func uintWord(v *big.Int, bits uint) (abiword.Word, error) {
	if v == nil {
		v = big.NewInt(0)
	}
	return abiword.EncodeUint(v, bits)
}

// CollectCalldata encodes collect(tokenId, recipient, amount0Max, amount1Max).
func CollectCalldata(tokenID *big.Int, recipient common.Address, amount0Max, amount1Max *big.Int) (string, error) {
	idw, err := uintWord(tokenID, 256)
	if err != nil {
		return "", err
	}
	a0, err := uintWord(amount0Max, 128)
	if err != nil {
		return "", err
	}
	a1, err := uintWord(amount1Max, 128)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(abiword.CallData(selCollect, idw, abiword.EncodeAddress(recipient), a0, a1)), nil
}

// DecreaseLiquidityCalldata encodes decreaseLiquidity(tokenId, liquidity,
// amount0Min, amount1Min, deadline).
func DecreaseLiquidityCalldata(tokenID, liquidity, amount0Min, amount1Min, deadline *big.Int) (string, error) {
	words := make([]abiword.Word, 0, 5)
	for _, f := range []struct {
		v    *big.Int
		bits uint
	}{{tokenID, 256}, {liquidity, 128}, {amount0Min, 256}, {amount1Min, 256}, {deadline, 256}} {
		w, err := uintWord(f.v, f.bits)
		if err != nil {
			return "", err
		}
		words = append(words, w)
	}
	return hexutil.Encode(abiword.CallData(selDecrease, words...)), nil
}

// BurnCalldata encodes burn(tokenId). Valid only once liquidity and owed
// fees are both zero; the contract enforces it, callers should check first.
func BurnCalldata(tokenID *big.Int) (string, error) {
	idw, err := uintWord(tokenID, 256)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(abiword.CallData(selBurn, idw)), nil
}

// MintParams are the arguments of a position mint. Deployer is the optional
// secondary pool namespace; zero means the default pool for the pair.
type MintParams struct {
	Token0         common.Address
	Token1         common.Address
	Deployer       common.Address
	TickLower      int64
	TickUpper      int64
	Amount0Desired *big.Int
	Amount1Desired *big.Int
	Amount0Min     *big.Int
	Amount1Min     *big.Int
	Recipient      common.Address
	Deadline       *big.Int
}

// MintCalldata validates the range against the pool's tick spacing and
// encodes mint(params). Ticks are sign-extended to full words.
func MintCalldata(p MintParams, spacing int64) (string, error) {
	if err := ValidateTickRange(p.TickLower, p.TickUpper, spacing); err != nil {
		return "", err
	}
	lw, err := abiword.EncodeInt(big.NewInt(p.TickLower), 24)
	if err != nil {
		return "", err
	}
	uw, err := abiword.EncodeInt(big.NewInt(p.TickUpper), 24)
	if err != nil {
		return "", err
	}
	words := []abiword.Word{
		abiword.EncodeAddress(p.Token0),
		abiword.EncodeAddress(p.Token1),
		abiword.EncodeAddress(p.Deployer),
		lw,
		uw,
	}
	for _, v := range []*big.Int{p.Amount0Desired, p.Amount1Desired, p.Amount0Min, p.Amount1Min} {
		w, err := uintWord(v, 256)
		if err != nil {
			return "", err
		}
		words = append(words, w)
	}
	words = append(words, abiword.EncodeAddress(p.Recipient))
	dw, err := uintWord(p.Deadline, 256)
	if err != nil {
		return "", err
	}
	words = append(words, dw)
	return hexutil.Encode(abiword.CallData(selMint, words...)), nil
}

// ApproveCalldata encodes approve(spender, amount).
func ApproveCalldata(spender common.Address, amount *big.Int) (string, error) {
	aw, err := uintWord(amount, 256)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(abiword.CallData(selApprove, abiword.EncodeAddress(spender), aw)), nil
}

func farmingCalldata(sel []byte, key IncentiveKey, tokenID *big.Int) (string, error) {
	kws, err := key.words()
	if err != nil {
		return "", err
	}
	idw, err := uintWord(tokenID, 256)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(abiword.CallData(sel, kws[0], kws[1], kws[2], kws[3], idw)), nil
}

// EnterFarmingCalldata encodes enterFarming(key, tokenId).
func EnterFarmingCalldata(key IncentiveKey, tokenID *big.Int) (string, error) {
	return farmingCalldata(selEnterFarming, key, tokenID)
}

// ExitFarmingCalldata encodes exitFarming(key, tokenId). A wrong key here
// reverts or silently no-ops, which is why key resolution never guesses.
func ExitFarmingCalldata(key IncentiveKey, tokenID *big.Int) (string, error) {
	return farmingCalldata(selExitFarming, key, tokenID)
}

// CollectRewardsCalldata encodes collectRewards(key, tokenId).
func CollectRewardsCalldata(key IncentiveKey, tokenID *big.Int) (string, error) {
	return farmingCalldata(selCollectReward, key, tokenID)
}

// ClaimRewardCalldata encodes claimReward(rewardToken, to, amountRequested).
func ClaimRewardCalldata(rewardToken, to common.Address, amount *big.Int) (string, error) {
	aw, err := uintWord(amount, 256)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(abiword.CallData(selClaimReward,
		abiword.EncodeAddress(rewardToken), abiword.EncodeAddress(to), aw)), nil
}
