package forensics

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/avetls/rangekeeper/internal/abiword"
)

// Call is the structured view of one decoded calldata envelope.
type Call struct {
	Method   string
	Selector string
	Known    bool // false is the explicit no-match terminal
	Partial  bool // selector matched but the word count did not

	Deadline *big.Int                    // nil when the call carries none
	Required map[common.Address]*big.Int // token -> amount the call needs
	// NeedsAllowance marks calls that pull tokens via transferFrom, where
	// the spender allowance matters in addition to the balance.
	NeedsAllowance bool
	Mint           *MintInfo

	Inner *Call // one unwrapped level of a batched envelope
}

// MintInfo carries the mint arguments the ranking needs.
type MintInfo struct {
	Token0     common.Address
	Token1     common.Address
	Deployer   common.Address
	TickLower  int64
	TickUpper  int64
	Amount0Min *big.Int
	Amount1Min *big.Int
}

type decoder struct {
	selector []byte
	name     string
	minWords int
	decode   func(c *Call, ws []abiword.Word)
}

// The dispatch table is tried in this fixed order; first selector match wins
// and a miss lands on the explicit unknown variant.
var dispatch = []decoder{
	{abiword.Selector("mint((address,address,address,int24,int24,uint256,uint256,uint256,uint256,address,uint256))"), "mint", 11, decodeMint},
	{abiword.Selector("decreaseLiquidity((uint256,uint128,uint256,uint256,uint256))"), "decreaseLiquidity", 5, decodeDecrease},
	{abiword.Selector("collect((uint256,address,uint128,uint128))"), "collect", 4, nil},
	{abiword.Selector("burn(uint256)"), "burn", 1, nil},
	{abiword.Selector("approve(address,uint256)"), "approve", 2, nil},
	{abiword.Selector("transfer(address,uint256)"), "transfer", 2, decodeTransfer},
	{abiword.Selector("transferFrom(address,address,uint256)"), "transferFrom", 3, nil},
	{abiword.Selector("enterFarming((address,address,address,uint256),uint256)"), "enterFarming", 5, nil},
	{abiword.Selector("exitFarming((address,address,address,uint256),uint256)"), "exitFarming", 5, nil},
	{abiword.Selector("collectRewards((address,address,address,uint256),uint256)"), "collectRewards", 5, nil},
	{abiword.Selector("claimReward(address,address,uint256)"), "claimReward", 3, nil},
	{abiword.Selector("exactInputSingle((address,address,address,uint256,uint256,uint256,uint160))"), "exactInputSingle", 7, decodeSwap},
}

var multicallSelector = abiword.Selector("multicall(bytes[])")

func decodeMint(c *Call, ws []abiword.Word) {
	lower, _ := abiword.DecodeInt(ws[3], 24)
	upper, _ := abiword.DecodeInt(ws[4], 24)
	a0des := new(big.Int).SetBytes(ws[5][:])
	a1des := new(big.Int).SetBytes(ws[6][:])
	m := &MintInfo{
		Token0:     abiword.DecodeAddress(ws[0]),
		Token1:     abiword.DecodeAddress(ws[1]),
		Deployer:   abiword.DecodeAddress(ws[2]),
		TickLower:  lower.Int64(),
		TickUpper:  upper.Int64(),
		Amount0Min: new(big.Int).SetBytes(ws[7][:]),
		Amount1Min: new(big.Int).SetBytes(ws[8][:]),
	}
	c.Mint = m
	c.Deadline = new(big.Int).SetBytes(ws[10][:])
	c.NeedsAllowance = true
	c.Required = map[common.Address]*big.Int{
		m.Token0: a0des,
		m.Token1: a1des,
	}
}

func decodeDecrease(c *Call, ws []abiword.Word) {
	c.Deadline = new(big.Int).SetBytes(ws[4][:])
}

// transfer: the token is the call target, so the amount is keyed by the zero
// address and resolved against the target by the engine. Only the sender
// balance matters, no allowance is involved.
func decodeTransfer(c *Call, ws []abiword.Word) {
	c.Required = map[common.Address]*big.Int{
		{}: new(big.Int).SetBytes(ws[1][:]),
	}
}

func decodeSwap(c *Call, ws []abiword.Word) {
	tokenIn := abiword.DecodeAddress(ws[0])
	c.Deadline = new(big.Int).SetBytes(ws[3][:])
	c.NeedsAllowance = true
	c.Required = map[common.Address]*big.Int{
		tokenIn: new(big.Int).SetBytes(ws[4][:]),
	}
}

func matchSelector(data []byte, sel []byte) bool {
	return len(data) >= 4 && data[0] == sel[0] && data[1] == sel[1] && data[2] == sel[2] && data[3] == sel[3]
}

// DecodeCall decodes calldata by known selector, unwrapping at most one
// level of a batched multicall envelope. The outer selector of a batch is
// not assumed: any payload whose first inner element matches the table
// counts.
func DecodeCall(data []byte) *Call {
	return decodeCall(data, true)
}

func decodeCall(data []byte, allowUnwrap bool) *Call {
	c := &Call{}
	if len(data) < 4 {
		return c
	}
	c.Selector = hexutil.Encode(data[:4])

	for _, d := range dispatch {
		if !matchSelector(data, d.selector) {
			continue
		}
		c.Method = d.name
		c.Known = true
		ws, err := abiword.Words(data[4:])
		if err != nil || len(ws) < d.minWords {
			c.Partial = true
			return c
		}
		if d.decode != nil {
			d.decode(c, ws)
		}
		return c
	}

	if allowUnwrap {
		if inner := unwrapBatch(data); inner != nil {
			c.Method = "batch"
			if matchSelector(data, multicallSelector) {
				c.Method = "multicall"
			}
			c.Known = true
			c.Inner = inner
			return c
		}
	}
	return c // explicit no-match
}

// unwrapBatch tries to read data as selector + bytes[] and decodes the first
// inner call that matches the table. Exactly one level deep.
func unwrapBatch(data []byte) *Call {
	body := data[4:]
	if len(body) < 2*abiword.WordSize || len(body)%abiword.WordSize != 0 {
		return nil
	}
	off := new(big.Int).SetBytes(body[:abiword.WordSize])
	if !off.IsInt64() {
		return nil
	}
	elems, err := abiword.DecodeBytesArray(body, int(off.Int64()))
	if err != nil || len(elems) == 0 {
		return nil
	}
	for _, el := range elems {
		inner := decodeCall(el, false)
		if inner.Known {
			return inner
		}
	}
	return nil
}
