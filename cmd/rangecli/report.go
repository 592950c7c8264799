package main

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/avetls/rangekeeper/internal/forensics"
)

func printReport(r *forensics.Report) {
	fmt.Println("=== TX", r.TxHash.Hex(), "===")
	fmt.Println("Status    :", r.Status)
	fmt.Println("From      :", r.From.Hex())
	if r.To != nil {
		fmt.Println("To        :", r.To.Hex())
	}
	printCall("Call      :", r.Call)
	if r.Status == forensics.StatusPending {
		fmt.Println("=====================")
		return
	}
	fmt.Println("Block     :", r.InclusionBlock, "ts:", r.BlockTime)
	fmt.Println("Gas used  :", r.GasUsed)
	if r.Status == forensics.StatusSuccess {
		fmt.Println("=====================")
		return
	}

	for _, c := range r.Checks {
		fmt.Println("Token     :", c.Token.Hex(), "required", bigOr(c.Required))
		fmt.Printf("  balance  : before=%s now=%s\n", bigOr(c.BalanceBefore), bigOr(c.BalanceNow))
		if c.AllowanceBefore != nil || c.AllowanceNow != nil {
			fmt.Printf("  allowance: before=%s now=%s\n", bigOr(c.AllowanceBefore), bigOr(c.AllowanceNow))
		}
	}
	printReplay("Replay N-1:", r.ReplayBefore)
	printReplay("Replay now:", r.ReplayLatest)
	fmt.Println("Cause     :", r.Cause.Kind)
	if r.Cause.Detail != "" {
		fmt.Println("  detail  :", r.Cause.Detail)
	}
	fmt.Println("=====================")
}

func printCall(label string, c *forensics.Call) {
	if c == nil {
		return
	}
	switch {
	case !c.Known:
		fmt.Println(label, "unknown selector", c.Selector)
	case c.Partial:
		fmt.Println(label, c.Method, "(partial decode)")
	default:
		fmt.Println(label, c.Method)
	}
	if c.Inner != nil {
		printCall("  inner   :", c.Inner)
	}
}

func printReplay(label string, rp *forensics.Replay) {
	switch {
	case rp == nil:
		return
	case rp.Unavailable:
		fmt.Println(label, "unavailable:", rp.ErrText)
	case rp.OK:
		fmt.Println(label, "success, output", hexutil.Encode(rp.Output))
	case len(rp.RevertData) > 0:
		fmt.Println(label, "reverted, data", hexutil.Encode(rp.RevertData))
	default:
		fmt.Println(label, "reverted:", rp.ErrText)
	}
}

func bigOr(v *big.Int) string {
	if v == nil {
		return "?"
	}
	return v.String()
}
