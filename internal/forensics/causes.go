package forensics

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/avetls/rangekeeper/internal/abiword"
)

// CauseKind is the ranked root-cause classification. Replay-unavailable is a
// distinct outcome: "unknown due to a read failure" must never masquerade as
// "definitively failed for reason X".
type CauseKind int

const (
	CauseNone CauseKind = iota
	CauseDeadlineExpired
	CauseApprovalRace
	CauseFundingRace
	CauseStaticInsufficiency
	CauseOutOfRangeMint
	CauseRevert
	CauseReplayUnavailable
	CauseUnknown
)

func (k CauseKind) String() string {
	switch k {
	case CauseNone:
		return "none"
	case CauseDeadlineExpired:
		return "deadline expired"
	case CauseApprovalRace:
		return "approval race"
	case CauseFundingRace:
		return "funding race"
	case CauseStaticInsufficiency:
		return "static insufficiency"
	case CauseOutOfRangeMint:
		return "out-of-range mint with non-zero minimums"
	case CauseRevert:
		return "revert"
	case CauseReplayUnavailable:
		return "replay unavailable"
	case CauseUnknown:
		return "unknown"
	}
	return fmt.Sprintf("CauseKind(%d)", int(k))
}

type Cause struct {
	Kind   CauseKind
	Detail string
}

// TokenCheck is one token's balance/allowance observed at the block before
// inclusion and at the pinned latest block. Nil values mean the read failed.
type TokenCheck struct {
	Token           common.Address
	Required        *big.Int
	BalanceBefore   *big.Int
	BalanceNow      *big.Int
	AllowanceBefore *big.Int
	AllowanceNow    *big.Int
}

// Replay is the outcome of re-running the call at a pinned block.
type Replay struct {
	OK          bool
	Output      []byte
	RevertData  []byte
	ErrText     string
	Unavailable bool
}

func lt(a, b *big.Int) bool  { return a != nil && b != nil && a.Cmp(b) < 0 }
func gte(a, b *big.Int) bool { return a != nil && b != nil && a.Cmp(b) >= 0 }

// RankCause applies the fixed priority order; the first structured pattern
// that matches wins.
func RankCause(call *Call, blockTime uint64, poolTickAtInclusion *int64, checks []TokenCheck, before *Replay) Cause {
	// 1. Deadline expiry: decoded deadline at or before the inclusion
	// timestamp forces the revert regardless of anything else.
	if call != nil && call.Deadline != nil && call.Deadline.Sign() > 0 && blockTime > 0 &&
		call.Deadline.IsUint64() && call.Deadline.Uint64() <= blockTime {
		return Cause{
			Kind:   CauseDeadlineExpired,
			Detail: fmt.Sprintf("deadline %s <= block timestamp %d", call.Deadline, blockTime),
		}
	}

	// 2. Approval race: short before inclusion, sufficient at replay time.
	for _, c := range checks {
		if c.Required == nil || c.Required.Sign() == 0 {
			continue
		}
		if lt(c.AllowanceBefore, c.Required) && gte(c.AllowanceNow, c.Required) {
			return Cause{
				Kind: CauseApprovalRace,
				Detail: fmt.Sprintf("allowance for %s was %s before inclusion, needs %s, is %s now",
					c.Token.Hex(), c.AllowanceBefore, c.Required, c.AllowanceNow),
			}
		}
	}

	// 3. Funding race: same pattern on balance.
	for _, c := range checks {
		if c.Required == nil || c.Required.Sign() == 0 {
			continue
		}
		if lt(c.BalanceBefore, c.Required) && gte(c.BalanceNow, c.Required) {
			return Cause{
				Kind: CauseFundingRace,
				Detail: fmt.Sprintf("balance of %s was %s before inclusion, needs %s, is %s now",
					c.Token.Hex(), c.BalanceBefore, c.Required, c.BalanceNow),
			}
		}
	}

	// 4. Static insufficiency: short on both sides, a real shortfall.
	for _, c := range checks {
		if c.Required == nil || c.Required.Sign() == 0 {
			continue
		}
		if lt(c.AllowanceBefore, c.Required) && lt(c.AllowanceNow, c.Required) {
			return Cause{
				Kind: CauseStaticInsufficiency,
				Detail: fmt.Sprintf("allowance for %s is %s before and %s now, needs %s",
					c.Token.Hex(), c.AllowanceBefore, c.AllowanceNow, c.Required),
			}
		}
		if lt(c.BalanceBefore, c.Required) && lt(c.BalanceNow, c.Required) {
			return Cause{
				Kind: CauseStaticInsufficiency,
				Detail: fmt.Sprintf("balance of %s is %s before and %s now, needs %s",
					c.Token.Hex(), c.BalanceBefore, c.BalanceNow, c.Required),
			}
		}
	}

	// 5. Out-of-range mint with non-zero minimums deterministically reverts.
	if call != nil && call.Mint != nil && poolTickAtInclusion != nil &&
		call.Mint.Amount0Min.Sign() > 0 && call.Mint.Amount1Min.Sign() > 0 {
		tick := *poolTickAtInclusion
		if tick < call.Mint.TickLower || tick >= call.Mint.TickUpper {
			return Cause{
				Kind: CauseOutOfRangeMint,
				Detail: fmt.Sprintf("pool tick %d outside [%d, %d) with both minimums non-zero",
					tick, call.Mint.TickLower, call.Mint.TickUpper),
			}
		}
	}

	// 6. Generic revert, decoded from the replay payload when present.
	if before != nil && !before.Unavailable {
		if len(before.RevertData) > 0 {
			if reason, ok := abiword.RevertReason(before.RevertData); ok {
				return Cause{Kind: CauseRevert, Detail: reason}
			}
			if reason, ok := abiword.PanicReason(before.RevertData); ok {
				return Cause{Kind: CauseRevert, Detail: reason}
			}
			return Cause{Kind: CauseRevert, Detail: fmt.Sprintf("raw revert data 0x%x", before.RevertData)}
		}
		if before.ErrText != "" {
			return Cause{Kind: CauseRevert, Detail: before.ErrText}
		}
	}

	// Replay itself failed for reasons unrelated to the original call: say
	// so, do not infer.
	if before == nil || before.Unavailable {
		detail := "replay unavailable"
		if before != nil && before.ErrText != "" {
			detail = before.ErrText
		}
		return Cause{Kind: CauseReplayUnavailable, Detail: detail}
	}

	return Cause{Kind: CauseUnknown, Detail: "no structured cause found"}
}
