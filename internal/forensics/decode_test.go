package forensics

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avetls/rangekeeper/internal/abiword"
	"github.com/avetls/rangekeeper/internal/chain"
)

var (
	token0  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	token1  = common.HexToAddress("0x2222222222222222222222222222222222222222")
	someone = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

func mintData(t *testing.T) []byte {
	t.Helper()
	data, err := chain.MintCalldata(chain.MintParams{
		Token0:         token0,
		Token1:         token1,
		TickLower:      -242570,
		TickUpper:      -242070,
		Amount0Desired: big.NewInt(1000),
		Amount1Desired: big.NewInt(2000),
		Amount0Min:     big.NewInt(990),
		Amount1Min:     big.NewInt(1980),
		Recipient:      someone,
		Deadline:       big.NewInt(1_700_000_000),
	}, 10)
	require.NoError(t, err)
	return common.FromHex(data)
}

func TestDecodeMint(t *testing.T) {
	c := DecodeCall(mintData(t))
	require.True(t, c.Known)
	assert.Equal(t, "mint", c.Method)
	assert.False(t, c.Partial)
	require.NotNil(t, c.Mint)
	assert.EqualValues(t, -242570, c.Mint.TickLower)
	assert.EqualValues(t, -242070, c.Mint.TickUpper)
	assert.EqualValues(t, 990, c.Mint.Amount0Min.Int64())
	assert.EqualValues(t, 1980, c.Mint.Amount1Min.Int64())
	require.NotNil(t, c.Deadline)
	assert.EqualValues(t, 1_700_000_000, c.Deadline.Int64())
	assert.True(t, c.NeedsAllowance)
	assert.EqualValues(t, 1000, c.Required[token0].Int64())
	assert.EqualValues(t, 2000, c.Required[token1].Int64())
}

func TestDecodeTransfer(t *testing.T) {
	var to, amount abiword.Word
	copy(to[12:], someone[:])
	amount[31] = 0xff
	data := abiword.CallData(abiword.Selector("transfer(address,uint256)"), to, amount)

	c := DecodeCall(data)
	require.True(t, c.Known)
	assert.Equal(t, "transfer", c.Method)
	assert.False(t, c.NeedsAllowance)
	assert.EqualValues(t, 0xff, c.Required[common.Address{}].Int64())
}

func TestDecodeApproveCarriesNoChecks(t *testing.T) {
	data, err := chain.ApproveCalldata(someone, big.NewInt(5))
	require.NoError(t, err)
	c := DecodeCall(common.FromHex(data))
	require.True(t, c.Known)
	assert.Equal(t, "approve", c.Method)
	assert.Empty(t, c.Required)
}

func TestDecodeSwap(t *testing.T) {
	words := make([]abiword.Word, 7)
	copy(words[0][12:], token0[:])
	copy(words[1][12:], token1[:])
	copy(words[2][12:], someone[:])
	words[3][31] = 0x64 // deadline 100
	words[4][30] = 0x01 // amountIn 256
	data := abiword.CallData(abiword.Selector("exactInputSingle((address,address,address,uint256,uint256,uint256,uint160))"), words...)

	c := DecodeCall(data)
	require.True(t, c.Known)
	assert.Equal(t, "exactInputSingle", c.Method)
	assert.True(t, c.NeedsAllowance)
	assert.EqualValues(t, 100, c.Deadline.Int64())
	assert.EqualValues(t, 256, c.Required[token0].Int64())
}

func buildBatch(t *testing.T, outerSel []byte, inner ...[]byte) []byte {
	t.Helper()
	word := func(v int64) []byte {
		var w abiword.Word
		big.NewInt(v).FillBytes(w[:])
		return w[:]
	}
	pad := func(b []byte) []byte {
		n := (len(b) + 31) / 32 * 32
		out := make([]byte, n)
		copy(out, b)
		return out
	}
	body := word(32) // offset of the array length word
	body = append(body, word(int64(len(inner)))...)
	// element offsets are relative to the data region after the length word
	off := int64(len(inner) * 32)
	var elems []byte
	for _, el := range inner {
		body = append(body, word(off)...)
		padded := pad(el)
		elems = append(elems, word(int64(len(el)))...)
		elems = append(elems, padded...)
		off += int64(32 + len(padded))
	}
	body = append(body, elems...)
	return append(append([]byte{}, outerSel...), body...)
}

func TestDecodeMulticallUnwrapsOneLevel(t *testing.T) {
	var id abiword.Word
	id[31] = 42
	burn := abiword.CallData(abiword.Selector("burn(uint256)"), id)
	data := buildBatch(t, abiword.Selector("multicall(bytes[])"), burn)

	c := DecodeCall(data)
	require.True(t, c.Known)
	assert.Equal(t, "multicall", c.Method)
	require.NotNil(t, c.Inner)
	assert.Equal(t, "burn", c.Inner.Method)
	assert.Nil(t, c.Inner.Inner)
}

func TestDecodeBatchWithoutAssumingOuterSelector(t *testing.T) {
	data := buildBatch(t, common.FromHex("0xdeadbeef"), mintData(t))
	c := DecodeCall(data)
	require.True(t, c.Known)
	assert.Equal(t, "batch", c.Method)
	require.NotNil(t, c.Inner)
	assert.Equal(t, "mint", c.Inner.Method)
	require.NotNil(t, c.Inner.Mint)
}

func TestDecodeBatchSkipsUnknownInnerUntilMatch(t *testing.T) {
	unknown := common.FromHex("0x01020304050607080910")
	var id abiword.Word
	id[31] = 7
	burn := abiword.CallData(abiword.Selector("burn(uint256)"), id)
	data := buildBatch(t, abiword.Selector("multicall(bytes[])"), unknown, burn)

	c := DecodeCall(data)
	require.NotNil(t, c.Inner)
	assert.Equal(t, "burn", c.Inner.Method)
}

func TestDecodeNoMatchIsExplicit(t *testing.T) {
	c := DecodeCall(common.FromHex("0xdeadbeef"))
	assert.False(t, c.Known)
	assert.Equal(t, "0xdeadbeef", c.Selector)
	assert.Empty(t, c.Method)

	c = DecodeCall(nil)
	assert.False(t, c.Known)
}

func TestDecodePartialIsDistinctFromValid(t *testing.T) {
	data := mintData(t)[:4+3*32] // selector matches, word count does not
	c := DecodeCall(data)
	require.True(t, c.Known)
	assert.Equal(t, "mint", c.Method)
	assert.True(t, c.Partial)
	assert.Nil(t, c.Mint)
}
