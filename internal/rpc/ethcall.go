package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// BlockRef pins a read to "latest", "pending", or a specific historical
// block. Forensics replays must always pin numbers: two floating "latest"
// reads can observe different blocks.
type BlockRef struct {
	tag string
	num uint64
}

var (
	Latest  = BlockRef{tag: "latest"}
	Pending = BlockRef{tag: "pending"}
)

func Number(n uint64) BlockRef { return BlockRef{num: n} }

func (b BlockRef) String() string {
	if b.tag != "" {
		return b.tag
	}
	return hexutil.EncodeUint64(b.num)
}

// IsNumber reports whether the ref pins a concrete block.
func (b BlockRef) IsNumber() bool { return b.tag == "" }

func (b BlockRef) Num() uint64 { return b.num }

// CallMsg is the eth_call / eth_estimateGas argument object.
type CallMsg struct {
	From  *common.Address
	To    common.Address
	Data  []byte
	Value *big.Int
}

func (m CallMsg) toParam() map[string]any {
	p := map[string]any{"to": m.To.Hex()}
	if m.From != nil {
		p["from"] = m.From.Hex()
	}
	if len(m.Data) > 0 {
		p["data"] = hexutil.Encode(m.Data)
	}
	if m.Value != nil && m.Value.Sign() > 0 {
		p["value"] = hexutil.EncodeBig(m.Value)
	}
	return p
}

// EthCall simulates a call at the given block. This is the load-bearing
// primitive for "what would have happened at block N-1" replays.
func (c *Client) EthCall(ctx context.Context, msg CallMsg, block BlockRef) ([]byte, error) {
	raw, err := c.CallRetry(ctx, "eth_call", msg.toParam(), block.String())
	if err != nil {
		return nil, err
	}
	var out hexutil.Bytes
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("eth_call: decode result: %w", err)
	}
	return out, nil
}

func (c *Client) quantity(ctx context.Context, method string, params ...any) (*big.Int, error) {
	raw, err := c.CallRetry(ctx, method, params...)
	if err != nil {
		return nil, err
	}
	var out hexutil.Big
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%s: decode result: %w", method, err)
	}
	return (*big.Int)(&out), nil
}

func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	return c.quantity(ctx, "eth_chainId")
}

func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	n, err := c.quantity(ctx, "eth_blockNumber")
	if err != nil {
		return 0, err
	}
	return n.Uint64(), nil
}

func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	return c.quantity(ctx, "eth_gasPrice")
}

func (c *Client) Balance(ctx context.Context, addr common.Address, block BlockRef) (*big.Int, error) {
	return c.quantity(ctx, "eth_getBalance", addr.Hex(), block.String())
}

func (c *Client) EstimateGas(ctx context.Context, msg CallMsg) (uint64, error) {
	n, err := c.quantity(ctx, "eth_estimateGas", msg.toParam())
	if err != nil {
		return 0, err
	}
	return n.Uint64(), nil
}

// Transaction is the subset of eth_getTransactionByHash the engine reads.
type Transaction struct {
	Hash        common.Hash     `json:"hash"`
	From        common.Address  `json:"from"`
	To          *common.Address `json:"to"`
	Input       hexutil.Bytes   `json:"input"`
	Value       *hexutil.Big    `json:"value"`
	Gas         hexutil.Uint64  `json:"gas"`
	BlockNumber *hexutil.Big    `json:"blockNumber"` // nil while pending
}

// Receipt is the subset of eth_getTransactionReceipt the engine reads.
type Receipt struct {
	Status      hexutil.Uint64 `json:"status"`
	BlockNumber *hexutil.Big   `json:"blockNumber"`
	GasUsed     hexutil.Uint64 `json:"gasUsed"`
}

// Block carries just number and timestamp, for deadline checks.
type Block struct {
	Number    *hexutil.Big   `json:"number"`
	Timestamp hexutil.Uint64 `json:"timestamp"`
}

func (c *Client) TransactionByHash(ctx context.Context, hash common.Hash) (*Transaction, error) {
	raw, err := c.CallRetry(ctx, "eth_getTransactionByHash", hash.Hex())
	if err != nil {
		return nil, err
	}
	if string(raw) == "null" {
		return nil, fmt.Errorf("transaction %s not found", hash.Hex())
	}
	var tx Transaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	return &tx, nil
}

func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (*Receipt, error) {
	raw, err := c.CallRetry(ctx, "eth_getTransactionReceipt", hash.Hex())
	if err != nil {
		return nil, err
	}
	if string(raw) == "null" {
		return nil, nil // pending
	}
	var r Receipt
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode receipt: %w", err)
	}
	return &r, nil
}

func (c *Client) BlockByNumber(ctx context.Context, block BlockRef) (*Block, error) {
	raw, err := c.CallRetry(ctx, "eth_getBlockByNumber", block.String(), false)
	if err != nil {
		return nil, err
	}
	if string(raw) == "null" {
		return nil, fmt.Errorf("block %s not found", block.String())
	}
	var b Block
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("decode block: %w", err)
	}
	return &b, nil
}

// SendRawTransaction forwards an already-signed payload verbatim. The engine
// never signs; gating lives in the chain layer.
func (c *Client) SendRawTransaction(ctx context.Context, rawHex string) (common.Hash, error) {
	raw, err := c.Call(ctx, "eth_sendRawTransaction", rawHex)
	if err != nil {
		return common.Hash{}, err
	}
	var h common.Hash
	if err := json.Unmarshal(raw, &h); err != nil {
		return common.Hash{}, fmt.Errorf("decode tx hash: %w", err)
	}
	return h, nil
}
