package main

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/avetls/rangekeeper/internal/chain"
	"github.com/avetls/rangekeeper/internal/rebalance"
	"github.com/avetls/rangekeeper/internal/rpc"
)

// maxUint128 is the collect-everything sentinel the position manager expects.
var maxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

const planDeadline = 20 * time.Minute

func (a *app) status(ctx context.Context, id *big.Int) error {
	pos, err := a.reader.Position(ctx, id)
	if err != nil {
		return err
	}
	owner, err := a.reader.OwnerOf(ctx, id)
	if err != nil {
		return err
	}
	pool, err := a.reader.PoolByPairAndDeployer(ctx, pos.Deployer, pos.Token0, pos.Token1)
	if err != nil {
		return err
	}
	_, tick, err := a.reader.GlobalTick(ctx, pool, rpc.Latest)
	if err != nil {
		return err
	}
	spacing, err := a.reader.TickSpacing(ctx, pool)
	if err != nil {
		return err
	}
	dec, err := rebalance.Evaluate(tick, pos.TickLower, pos.TickUpper, int64(a.cfg.EdgeBps))
	if err != nil {
		return err
	}
	staked, err := a.reader.IsStaked(ctx, id)
	if err != nil {
		return fmt.Errorf("stake check: %w", err)
	}

	sym0 := a.reader.TokenSymbol(ctx, pos.Token0)
	sym1 := a.reader.TokenSymbol(ctx, pos.Token1)
	dec0, _ := a.reader.TokenDecimals(ctx, pos.Token0)
	dec1, _ := a.reader.TokenDecimals(ctx, pos.Token1)

	chainID := a.cfg.ChainID
	if chainID == "" {
		if cid, err := a.rpc.ChainID(ctx); err == nil {
			chainID = cid.String()
		}
	}

	fmt.Println("=== POSITION", id.String(), "===")
	fmt.Println("Chain      :", chainID)
	fmt.Println("Pair       :", sym0.Text(), "/", sym1.Text())
	fmt.Println("Pool       :", pool.Hex())
	fmt.Println("Owner      :", owner.Hex())
	if bal, err := a.rpc.Balance(ctx, owner, rpc.Latest); err == nil {
		fmt.Println("Owner bal  :", formatUnits(bal, 18))
	}
	fmt.Printf("Range      : [%d, %d) width=%d spacing=%d\n", pos.TickLower, pos.TickUpper, dec.Width, spacing)
	fmt.Println("Tick       :", tick)
	fmt.Println("Liquidity  :", pos.Liquidity.String())
	fmt.Printf("Owed       : %s %s | %s %s\n",
		formatUnits(pos.Owed0, dec0), sym0.Text(), formatUnits(pos.Owed1, dec1), sym1.Text())
	fmt.Println("State      :", dec.State.String())
	fmt.Printf("Headroom   : lower=%d upper=%d buffer=%d (edge %d bps)\n",
		dec.LowerHeadroom, dec.UpperHeadroom, dec.EdgeBuffer, a.cfg.EdgeBps)
	fmt.Println("Staked     :", staked)

	if staked {
		key, err := a.resolveKey(ctx, pool, id)
		if err != nil {
			return err
		}
		reward, bonus, err := a.reader.PendingRewards(ctx, *key, id)
		if err != nil {
			a.log.Warn("pending reward read failed", zap.Error(err))
			return nil
		}
		rdec, _ := a.reader.TokenDecimals(ctx, key.RewardToken)
		fmt.Printf("Rewards    : %s (nonce %s)", formatUnits(reward, rdec), key.Nonce)
		if bonus != nil && bonus.Sign() > 0 {
			fmt.Printf(" + bonus %s", bonus)
		}
		fmt.Println()
	}
	fmt.Println("=====================")
	return nil
}

// plan prints the full exit/re-enter step list as unsigned calldata. Amounts
// for the new mint come from the command line because the withdrawn totals
// are only known after the decrease lands.
func (a *app) plan(ctx context.Context, id, want0, want1 *big.Int) error {
	pos, err := a.reader.Position(ctx, id)
	if err != nil {
		return err
	}
	owner, err := a.reader.OwnerOf(ctx, id)
	if err != nil {
		return err
	}
	pool, err := a.reader.PoolByPairAndDeployer(ctx, pos.Deployer, pos.Token0, pos.Token1)
	if err != nil {
		return err
	}
	_, tick, err := a.reader.GlobalTick(ctx, pool, rpc.Latest)
	if err != nil {
		return err
	}
	spacing, err := a.reader.TickSpacing(ctx, pool)
	if err != nil {
		return err
	}

	dec, target, err := rebalance.SuggestRebalance(
		tick, pos.TickLower, pos.TickUpper, spacing, int64(a.cfg.EdgeBps), a.cfg.BumpTicks)
	if err != nil {
		return err
	}
	fmt.Printf("State: %s (tick %d in [%d, %d), min headroom %d, buffer %d)\n",
		dec.State, tick, pos.TickLower, pos.TickUpper, dec.MinHeadroom, dec.EdgeBuffer)
	if !dec.ShouldRebalance {
		fmt.Println("No rebalance needed.")
		return nil
	}
	fmt.Printf("Target range: [%d, %d) width=%d\n", target.Lower, target.Upper, target.Width())
	if gp, err := a.rpc.GasPrice(ctx); err == nil {
		fmt.Println("Gas price:", formatGwei(gp), "gwei")
	}
	fmt.Println()

	staked, err := a.reader.IsStaked(ctx, id)
	if err != nil {
		return fmt.Errorf("stake check: %w", err)
	}

	deadline := big.NewInt(time.Now().Add(planDeadline).Unix())
	step := 0
	emit := func(label, to, data string) {
		step++
		fmt.Printf("%d. %s\n   to:   %s\n   data: %s\n", step, label, to, data)
	}

	if staked {
		key, err := a.resolveKey(ctx, pool, id)
		if err != nil {
			return err
		}
		data, err := chain.ExitFarmingCalldata(*key, id)
		if err != nil {
			return err
		}
		emit("exitFarming", a.reader.C.FarmingCenter.Hex(), data)
	}

	data, err := chain.DecreaseLiquidityCalldata(id, pos.Liquidity, big.NewInt(0), big.NewInt(0), deadline)
	if err != nil {
		return err
	}
	emit("decreaseLiquidity (full)", a.reader.C.PositionManager.Hex(), data)

	data, err = chain.CollectCalldata(id, owner, maxUint128, maxUint128)
	if err != nil {
		return err
	}
	emit("collect", a.reader.C.PositionManager.Hex(), data)

	data, err = chain.BurnCalldata(id)
	if err != nil {
		return err
	}
	emit("burn", a.reader.C.PositionManager.Hex(), data)

	data, err = chain.MintCalldata(chain.MintParams{
		Token0:         pos.Token0,
		Token1:         pos.Token1,
		Deployer:       pos.Deployer,
		TickLower:      target.Lower,
		TickUpper:      target.Upper,
		Amount0Desired: want0,
		Amount1Desired: want1,
		Recipient:      owner,
		Deadline:       deadline,
	}, spacing)
	if err != nil {
		return err
	}
	emit("mint (new range)", a.reader.C.PositionManager.Hex(), data)

	fmt.Println("\nEnter farming again with the token id of the new mint.")
	fmt.Println("Sign externally; broadcast via `rangecli send-raw <hex> BROADCAST`.")
	return nil
}

func (a *app) resolveKey(ctx context.Context, pool common.Address, id *big.Int) (*chain.IncentiveKey, error) {
	bounds := rebalance.ScanBounds{Back: int64(a.cfg.KeyScanBack), Forward: int64(a.cfg.KeyScanFwd)}
	key, err := rebalance.ResolveIncentiveKey(ctx, a.reader, nil, pool, id, bounds)
	if err != nil {
		return nil, fmt.Errorf("incentive key: %w", err)
	}
	return key, nil
}
