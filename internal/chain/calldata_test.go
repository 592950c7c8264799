package chain

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avetls/rangekeeper/internal/abiword"
)

var (
	tokenA    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	tokenB    = common.HexToAddress("0x2222222222222222222222222222222222222222")
	recipient = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

func TestValidateTickRange(t *testing.T) {
	assert.NoError(t, ValidateTickRange(-242570, -242070, 10))
	assert.ErrorIs(t, ValidateTickRange(-242070, -242570, 10), ErrBadTickRange)
	assert.ErrorIs(t, ValidateTickRange(100, 100, 10), ErrBadTickRange)
	assert.ErrorIs(t, ValidateTickRange(-242575, -242070, 10), ErrTickNotAligned)
	assert.ErrorIs(t, ValidateTickRange(-242570, -242073, 10), ErrTickNotAligned)
	assert.Error(t, ValidateTickRange(0, 10, 0))
}

func TestMintCalldataLayout(t *testing.T) {
	p := MintParams{
		Token0:         tokenA,
		Token1:         tokenB,
		TickLower:      -242570,
		TickUpper:      -242070,
		Amount0Desired: big.NewInt(1000),
		Amount1Desired: big.NewInt(2000),
		Amount0Min:     big.NewInt(990),
		Amount1Min:     big.NewInt(1980),
		Recipient:      recipient,
		Deadline:       big.NewInt(1_700_000_000),
	}
	data, err := MintCalldata(p, 10)
	require.NoError(t, err)
	raw := common.FromHex(data)
	require.Len(t, raw, 4+11*32)
	assert.Equal(t, abiword.Selector("mint((address,address,address,int24,int24,uint256,uint256,uint256,uint256,address,uint256))"), raw[:4])

	// Negative ticks must arrive sign-extended across the whole word.
	lowerWord := raw[4+3*32 : 4+4*32]
	assert.Equal(t, byte(0xff), lowerWord[0])
	got, err := abiword.DecodeInt(abiword.Word(lowerWord), 24)
	require.NoError(t, err)
	assert.EqualValues(t, -242570, got.Int64())

	// Deployer defaults to the zero address word.
	assert.Equal(t, strings.Repeat("0", 64), common.Bytes2Hex(raw[4+2*32:4+3*32]))
}

func TestMintCalldataRejectsMisalignedRange(t *testing.T) {
	p := MintParams{TickLower: -5, TickUpper: 10}
	_, err := MintCalldata(p, 10)
	assert.ErrorIs(t, err, ErrTickNotAligned)
}

func TestCollectCalldata(t *testing.T) {
	max128 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
	data, err := CollectCalldata(big.NewInt(777), recipient, max128, max128)
	require.NoError(t, err)
	raw := common.FromHex(data)
	require.Len(t, raw, 4+4*32)
	assert.Equal(t, abiword.Selector("collect((uint256,address,uint128,uint128))"), raw[:4])
	assert.EqualValues(t, 777, new(big.Int).SetBytes(raw[4:36]).Int64())
}

func TestDecreaseLiquidityCalldata(t *testing.T) {
	data, err := DecreaseLiquidityCalldata(big.NewInt(777), big.NewInt(5000), nil, nil, big.NewInt(1_700_000_000))
	require.NoError(t, err)
	raw := common.FromHex(data)
	require.Len(t, raw, 4+5*32)
	// nil minimums encode as zero words
	assert.Equal(t, strings.Repeat("0", 64), common.Bytes2Hex(raw[4+2*32:4+3*32]))
}

func TestApproveCalldataKnownSelector(t *testing.T) {
	data, err := ApproveCalldata(recipient, big.NewInt(1000))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(data, "0x095ea7b3"))
	assert.Len(t, common.FromHex(data), 4+2*32)
}

func TestFarmingCalldataCarriesKeyTuple(t *testing.T) {
	key := IncentiveKey{
		RewardToken: tokenA,
		Pool:        tokenB,
		Nonce:       big.NewInt(3),
	}
	data, err := ExitFarmingCalldata(key, big.NewInt(42))
	require.NoError(t, err)
	raw := common.FromHex(data)
	require.Len(t, raw, 4+5*32)
	assert.Equal(t, tokenA, abiword.DecodeAddress(abiword.Word(raw[4:36])))
	// zero bonus token means "no bonus"
	assert.Equal(t, common.Address{}, abiword.DecodeAddress(abiword.Word(raw[36:68])))
	assert.EqualValues(t, 3, new(big.Int).SetBytes(raw[4+3*32:4+4*32]).Int64())
	assert.EqualValues(t, 42, new(big.Int).SetBytes(raw[4+4*32:4+5*32]).Int64())
}

func TestIncentiveKeyIDIsKeccakOfWords(t *testing.T) {
	key := IncentiveKey{RewardToken: tokenA, Pool: tokenB, Nonce: big.NewInt(7)}
	id1, err := key.ID()
	require.NoError(t, err)
	id2, err := key.ID()
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
	assert.NotEqual(t, common.Hash{}, id1)

	other := key
	other.Nonce = big.NewInt(8)
	id3, err := other.ID()
	require.NoError(t, err)
	assert.NotEqual(t, id1, id3)
}
