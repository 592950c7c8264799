package forensics

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/avetls/rangekeeper/internal/chain"
	"github.com/avetls/rangekeeper/internal/rpc"
)

// Status of the examined transaction.
type Status string

const (
	StatusPending  Status = "pending"
	StatusSuccess  Status = "success"
	StatusReverted Status = "reverted"
)

// Report is the full post-mortem of one transaction.
type Report struct {
	TxHash         common.Hash
	Status         Status
	From           common.Address
	To             *common.Address
	Call           *Call
	InclusionBlock uint64
	BlockTime      uint64
	GasUsed        uint64
	Checks         []TokenCheck
	ReplayBefore   *Replay
	ReplayLatest   *Replay
	Cause          Cause
}

// Engine reconstructs what a transaction did and, when it failed, why —
// without executing anything.
type Engine struct {
	RPC    *rpc.Client
	Reader *chain.Reader
	Log    *zap.Logger
}

func NewEngine(c *rpc.Client, r *chain.Reader, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{RPC: c, Reader: r, Log: log}
}

// Diagnose runs the full pipeline for one transaction hash.
func (e *Engine) Diagnose(ctx context.Context, hash common.Hash) (*Report, error) {
	// The transaction and its receipt are independent reads.
	type txRes struct {
		tx  *rpc.Transaction
		err error
	}
	type rcRes struct {
		rc  *rpc.Receipt
		err error
	}
	txCh := make(chan txRes, 1)
	rcCh := make(chan rcRes, 1)
	go func() {
		tx, err := e.RPC.TransactionByHash(ctx, hash)
		txCh <- txRes{tx, err}
	}()
	go func() {
		rc, err := e.RPC.TransactionReceipt(ctx, hash)
		rcCh <- rcRes{rc, err}
	}()
	t := <-txCh
	r := <-rcCh
	if t.err != nil {
		return nil, fmt.Errorf("fetch transaction: %w", t.err)
	}
	if r.err != nil {
		return nil, fmt.Errorf("fetch receipt: %w", r.err)
	}
	tx, receipt := t.tx, r.rc

	report := &Report{
		TxHash: hash,
		From:   tx.From,
		To:     tx.To,
		Call:   DecodeCall(tx.Input),
	}
	if receipt == nil {
		report.Status = StatusPending
		return report, nil
	}
	report.InclusionBlock = receipt.BlockNumber.ToInt().Uint64()
	report.GasUsed = uint64(receipt.GasUsed)
	if receipt.Status == 1 {
		report.Status = StatusSuccess
		return report, nil
	}
	report.Status = StatusReverted

	// Effective call: the inner one when the envelope was a batch.
	eff := report.Call
	if eff.Inner != nil {
		eff = eff.Inner
	}

	if blk, err := e.RPC.BlockByNumber(ctx, rpc.Number(report.InclusionBlock)); err == nil {
		report.BlockTime = uint64(blk.Timestamp)
	} else {
		e.Log.Warn("inclusion block fetch failed", zap.Uint64("block", report.InclusionBlock), zap.Error(err))
	}

	if tx.To == nil {
		report.Cause = Cause{Kind: CauseUnknown, Detail: "contract creation transaction"}
		return report, nil
	}

	msg := rpc.CallMsg{From: &tx.From, To: *tx.To, Data: tx.Input}
	if tx.Value != nil {
		msg.Value = tx.Value.ToInt()
	}

	// Replays are pinned to concrete numbers: two floating "latest" reads
	// could observe different blocks.
	beforeBlock := rpc.Number(report.InclusionBlock - 1)
	if report.InclusionBlock == 0 {
		beforeBlock = rpc.Number(0)
	}
	report.ReplayBefore = e.replay(ctx, msg, beforeBlock)

	var latestRef *rpc.BlockRef
	if latestNum, err := e.RPC.BlockNumber(ctx); err != nil {
		e.Log.Warn("latest block fetch failed", zap.Error(err))
		report.ReplayLatest = &Replay{Unavailable: true, ErrText: err.Error()}
	} else {
		ref := rpc.Number(latestNum)
		latestRef = &ref
		report.ReplayLatest = e.replay(ctx, msg, ref)
	}

	report.Checks = e.tokenChecks(ctx, eff, tx, beforeBlock, latestRef)
	poolTick := e.mintPoolTick(ctx, eff, beforeBlock)

	report.Cause = RankCause(eff, report.BlockTime, poolTick, report.Checks, report.ReplayBefore)
	return report, nil
}

// replay re-runs the exact call at a pinned block and classifies the result.
// A failure with no revert payload and a node-side complaint is reported as
// unavailable, never as a revert of the original logic.
func (e *Engine) replay(ctx context.Context, msg rpc.CallMsg, block rpc.BlockRef) *Replay {
	out, err := e.RPC.EthCall(ctx, msg, block)
	if err == nil {
		return &Replay{OK: true, Output: out}
	}
	var re *rpc.RPCError
	if errors.As(err, &re) {
		if data := re.RevertData(); len(data) > 0 {
			return &Replay{RevertData: data, ErrText: re.Message}
		}
		if strings.Contains(strings.ToLower(re.Message), "revert") {
			return &Replay{ErrText: re.Message}
		}
	}
	return &Replay{Unavailable: true, ErrText: err.Error()}
}

// tokenChecks reads balance and allowance for every token argument at both
// pinned blocks. Failed reads stay nil and simply cannot support a verdict.
func (e *Engine) tokenChecks(ctx context.Context, eff *Call, tx *rpc.Transaction, before rpc.BlockRef, latest *rpc.BlockRef) []TokenCheck {
	if len(eff.Required) == 0 {
		return nil
	}
	owner := tx.From
	spender := *tx.To
	checks := make([]TokenCheck, 0, len(eff.Required))
	for token, req := range eff.Required {
		// approve/transfer key the amount by the zero address: the token is
		// the call target itself.
		if token == (common.Address{}) {
			token = *tx.To
		}
		c := TokenCheck{Token: token, Required: req}
		c.BalanceBefore = e.readOrNil(func() (*big.Int, error) { return e.Reader.BalanceOfAt(ctx, token, owner, before) }, "balanceOf", token)
		if eff.NeedsAllowance {
			c.AllowanceBefore = e.readOrNil(func() (*big.Int, error) { return e.Reader.AllowanceAt(ctx, token, owner, spender, before) }, "allowance", token)
		}
		if latest != nil {
			c.BalanceNow = e.readOrNil(func() (*big.Int, error) { return e.Reader.BalanceOfAt(ctx, token, owner, *latest) }, "balanceOf", token)
			if eff.NeedsAllowance {
				c.AllowanceNow = e.readOrNil(func() (*big.Int, error) { return e.Reader.AllowanceAt(ctx, token, owner, spender, *latest) }, "allowance", token)
			}
		}
		checks = append(checks, c)
	}
	return checks
}

func (e *Engine) readOrNil(read func() (*big.Int, error), what string, token common.Address) *big.Int {
	v, err := read()
	if err != nil {
		e.Log.Debug("token read failed", zap.String("read", what), zap.String("token", token.Hex()), zap.Error(err))
		return nil
	}
	return v
}

// mintPoolTick resolves the pool of a failed mint and reads its tick right
// before inclusion.
func (e *Engine) mintPoolTick(ctx context.Context, eff *Call, before rpc.BlockRef) *int64 {
	if eff.Mint == nil {
		return nil
	}
	pool, err := e.Reader.PoolByPairAndDeployer(ctx, eff.Mint.Deployer, eff.Mint.Token0, eff.Mint.Token1)
	if err != nil {
		e.Log.Debug("pool lookup failed for mint", zap.Error(err))
		return nil
	}
	_, tick, err := e.Reader.GlobalTick(ctx, pool, before)
	if err != nil {
		e.Log.Debug("historical tick read failed", zap.String("pool", pool.Hex()), zap.Error(err))
		return nil
	}
	return &tick
}
