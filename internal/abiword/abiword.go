package abiword

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Word is one 32-byte ABI slot. Every scalar occupies exactly one word;
// dynamic data is reached through offsets stored in words.
type Word [32]byte

const WordSize = 32

var (
	ErrNotWordAligned = errors.New("abiword: byte length is not a multiple of 32")
	ErrTruncated      = errors.New("abiword: truncated payload")
	ErrOutOfRange     = errors.New("abiword: value out of range for bit width")
	ErrBadAddress     = errors.New("abiword: malformed address")
	ErrBadBool        = errors.New("abiword: word is not a canonical bool")
)

var two256 = new(big.Int).Lsh(big.NewInt(1), 256)

// Selector returns the 4-byte function selector for a canonical signature.
func Selector(sig string) []byte {
	return crypto.Keccak256([]byte(sig))[:4]
}

// CallData concatenates a selector with encoded argument words.
func CallData(selector []byte, words ...Word) []byte {
	out := make([]byte, 0, len(selector)+len(words)*WordSize)
	out = append(out, selector...)
	for _, w := range words {
		out = append(out, w[:]...)
	}
	return out
}

// Words splits raw return data into 32-byte words.
func Words(data []byte) ([]Word, error) {
	if len(data)%WordSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrNotWordAligned, len(data))
	}
	out := make([]Word, len(data)/WordSize)
	for i := range out {
		copy(out[i][:], data[i*WordSize:])
	}
	return out, nil
}

func checkBits(bits uint) error {
	if bits == 0 || bits > 256 {
		return fmt.Errorf("abiword: invalid bit width %d", bits)
	}
	return nil
}

// EncodeUint left-pads v into one word. Fails on nil, negative, or magnitude
// over 2^bits-1.
func EncodeUint(v *big.Int, bits uint) (Word, error) {
	var w Word
	if err := checkBits(bits); err != nil {
		return w, err
	}
	if v == nil || v.Sign() < 0 {
		return w, fmt.Errorf("%w: uint%d must be non-negative", ErrOutOfRange, bits)
	}
	if v.BitLen() > int(bits) {
		return w, fmt.Errorf("%w: %s does not fit uint%d", ErrOutOfRange, v, bits)
	}
	v.FillBytes(w[:])
	return w, nil
}

// EncodeInt encodes v as two's complement sign-extended across the FULL
// 256-bit word. A negative int24 tick therefore fills all high bits, not just
// the low 24.
func EncodeInt(v *big.Int, bits uint) (Word, error) {
	var w Word
	if err := checkBits(bits); err != nil {
		return w, err
	}
	if v == nil {
		return w, fmt.Errorf("%w: nil value", ErrOutOfRange)
	}
	half := new(big.Int).Lsh(big.NewInt(1), bits-1)
	min := new(big.Int).Neg(half)
	max := new(big.Int).Sub(half, big.NewInt(1))
	if v.Cmp(min) < 0 || v.Cmp(max) > 0 {
		return w, fmt.Errorf("%w: %s does not fit int%d", ErrOutOfRange, v, bits)
	}
	u := new(big.Int).Set(v)
	if u.Sign() < 0 {
		u.Add(u, two256)
	}
	u.FillBytes(w[:])
	return w, nil
}

// EncodeAddress left-pads a 20-byte address into one word.
func EncodeAddress(a common.Address) Word {
	var w Word
	copy(w[12:], a[:])
	return w
}

// ParseAddress normalizes user input to a canonical address. The input must
// reduce to exactly 40 hex characters before any network call sees it.
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	h := strings.TrimPrefix(strings.ToLower(s), "0x")
	if len(h) != 40 || !isHex(h) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrBadAddress, s)
	}
	return common.HexToAddress(h), nil
}

func isHex(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// EncodeBool encodes true as 1 and false as 0.
func EncodeBool(b bool) Word {
	var w Word
	if b {
		w[31] = 1
	}
	return w
}

// EncodeBytes32 passes a 32-byte value through unchanged.
func EncodeBytes32(b [32]byte) Word { return Word(b) }

// DecodeUint reads an unsigned integer of the given width from a word.
func DecodeUint(w Word, bits uint) (*big.Int, error) {
	if err := checkBits(bits); err != nil {
		return nil, err
	}
	v := new(big.Int).SetBytes(w[:])
	if v.BitLen() > int(bits) {
		return nil, fmt.Errorf("%w: word exceeds uint%d", ErrOutOfRange, bits)
	}
	return v, nil
}

// DecodeInt reconstructs the two's-complement value over the requested bit
// width (the low `bits` bits of the word decide the value and its sign).
func DecodeInt(w Word, bits uint) (*big.Int, error) {
	if err := checkBits(bits); err != nil {
		return nil, err
	}
	v := new(big.Int).SetBytes(w[:])
	mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), bits), big.NewInt(1))
	v.And(v, mask)
	if v.Bit(int(bits)-1) == 1 {
		v.Sub(v, new(big.Int).Lsh(big.NewInt(1), bits))
	}
	return v, nil
}

// DecodeAddress takes the low 20 bytes of a word.
func DecodeAddress(w Word) common.Address {
	var a common.Address
	copy(a[:], w[12:])
	return a
}

// DecodeBool accepts only canonical 0/1 words.
func DecodeBool(w Word) (bool, error) {
	for _, b := range w[:31] {
		if b != 0 {
			return false, ErrBadBool
		}
	}
	switch w[31] {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, ErrBadBool
}

// DecodeString decodes an ABI string return. Tokens in the wild return either
// a dynamic string or a fixed bytes32, so both are accepted. Never errors:
// malformed input yields "" and the caller applies a default label.
func DecodeString(ret []byte) string {
	if len(ret) == 0 {
		return ""
	}
	if len(ret) >= 2*WordSize {
		off := new(big.Int).SetBytes(ret[:WordSize])
		if off.IsInt64() {
			o := int(off.Int64())
			if o >= WordSize && o+WordSize <= len(ret) {
				l := new(big.Int).SetBytes(ret[o : o+WordSize])
				if l.IsInt64() {
					n := int(l.Int64())
					if n >= 0 && o+WordSize+n <= len(ret) {
						return cleanString(ret[o+WordSize : o+WordSize+n])
					}
				}
			}
		}
	}
	if len(ret) == WordSize {
		return cleanString(ret)
	}
	return ""
}

func cleanString(b []byte) string {
	s := strings.TrimRight(string(b), "\x00")
	s = strings.TrimSpace(s)
	if !utf8.ValidString(s) {
		return ""
	}
	return s
}

// DecodeBytesArray decodes a bytes[] whose length word sits at `offset` inside
// body. Element offsets are relative to the start of the array's data region
// (the word right after the length), not to the start of body.
func DecodeBytesArray(body []byte, offset int) ([][]byte, error) {
	if offset < 0 || offset+WordSize > len(body) {
		return nil, fmt.Errorf("%w: array length word at %d", ErrTruncated, offset)
	}
	n := new(big.Int).SetBytes(body[offset : offset+WordSize])
	if !n.IsInt64() || n.Int64() < 0 || n.Int64() > int64(len(body)/WordSize) {
		return nil, fmt.Errorf("%w: implausible array length", ErrTruncated)
	}
	count := int(n.Int64())
	region := offset + WordSize // element offsets count from here
	out := make([][]byte, 0, count)
	for i := 0; i < count; i++ {
		slot := region + i*WordSize
		if slot+WordSize > len(body) {
			return nil, fmt.Errorf("%w: element offset word %d", ErrTruncated, i)
		}
		eo := new(big.Int).SetBytes(body[slot : slot+WordSize])
		if !eo.IsInt64() {
			return nil, fmt.Errorf("%w: element offset %d", ErrTruncated, i)
		}
		pos := region + int(eo.Int64())
		if pos < 0 || pos+WordSize > len(body) {
			return nil, fmt.Errorf("%w: element %d data out of bounds", ErrTruncated, i)
		}
		el := new(big.Int).SetBytes(body[pos : pos+WordSize])
		if !el.IsInt64() || el.Int64() < 0 {
			return nil, fmt.Errorf("%w: element %d length", ErrTruncated, i)
		}
		end := pos + WordSize + int(el.Int64())
		if end > len(body) {
			return nil, fmt.Errorf("%w: element %d body", ErrTruncated, i)
		}
		out = append(out, body[pos+WordSize:end])
	}
	return out, nil
}
