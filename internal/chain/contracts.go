package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/avetls/rangekeeper/internal/abiword"
	"github.com/avetls/rangekeeper/internal/rpc"
)

// Contracts holds the deployed addresses one invocation works against.
type Contracts struct {
	PositionManager common.Address
	Factory         common.Address
	FarmingCenter   common.Address
	EternalFarming  common.Address
	Router          common.Address
	Quoter          common.Address
}

// Reader issues typed contract reads through the transport. It holds no
// connections and caches nothing; every read is a fresh query.
type Reader struct {
	RPC *rpc.Client
	C   Contracts
}

func NewReader(c *rpc.Client, contracts Contracts) *Reader {
	return &Reader{RPC: c, C: contracts}
}

// Position is the on-chain state of one liquidity NFT. Ownership is read
// separately and never cached across calls.
type Position struct {
	ID        *big.Int
	Token0    common.Address
	Token1    common.Address
	Deployer  common.Address
	TickLower int64
	TickUpper int64
	Liquidity *big.Int
	Owed0     *big.Int
	Owed1     *big.Int
}

// IncentiveKey identifies the reward program a staked position is enrolled
// in. A zero BonusRewardToken means "no bonus".
type IncentiveKey struct {
	RewardToken      common.Address
	BonusRewardToken common.Address
	Pool             common.Address
	Nonce            *big.Int
}

func (k IncentiveKey) words() ([4]abiword.Word, error) {
	var out [4]abiword.Word
	out[0] = abiword.EncodeAddress(k.RewardToken)
	out[1] = abiword.EncodeAddress(k.BonusRewardToken)
	out[2] = abiword.EncodeAddress(k.Pool)
	n := k.Nonce
	if n == nil {
		n = big.NewInt(0)
	}
	w, err := abiword.EncodeUint(n, 256)
	if err != nil {
		return out, err
	}
	out[3] = w
	return out, nil
}

// ID is the keccak of the four encoded key words; the farm stores this hash
// as the per-position deposit identifier.
func (k IncentiveKey) ID() (common.Hash, error) {
	ws, err := k.words()
	if err != nil {
		return common.Hash{}, err
	}
	buf := make([]byte, 0, 4*abiword.WordSize)
	for _, w := range ws {
		buf = append(buf, w[:]...)
	}
	return common.BytesToHash(crypto.Keccak256(buf)), nil
}
