package abiword

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	errorSelector = common.FromHex("0x08c379a0") // Error(string)
	panicSelector = common.FromHex("0x4e487b71") // Panic(uint256)
)

// RevertReason decodes a standard Error(string) revert payload. The second
// return is false when the selector does not match; that is not an error.
func RevertReason(data []byte) (string, bool) {
	if len(data) < 4 || !bytes.Equal(data[:4], errorSelector) {
		return "", false
	}
	return DecodeString(data[4:]), true
}

// Solidity panic codes.
var panicText = map[uint64]string{
	0x01: "assertion failure",
	0x11: "arithmetic overflow or underflow",
	0x12: "division by zero",
	0x21: "invalid enum value",
	0x22: "invalid storage byte array",
	0x31: "pop on empty collection",
	0x32: "out-of-bounds index",
	0x41: "memory allocation overflow",
	0x51: "uninitialized function pointer call",
}

// PanicReason decodes a standard Panic(uint256) revert payload. Unknown codes
// are reported raw rather than dropped.
func PanicReason(data []byte) (string, bool) {
	if len(data) < 4+WordSize || !bytes.Equal(data[:4], panicSelector) {
		return "", false
	}
	code := new(big.Int).SetBytes(data[4 : 4+WordSize])
	if code.IsUint64() {
		if s, ok := panicText[code.Uint64()]; ok {
			return s, true
		}
	}
	return fmt.Sprintf("panic code 0x%x", code), true
}
