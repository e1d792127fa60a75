// Package hexutil decodes little-endian hex images of PostgreSQL binary
// fields.
//
// PostgreSQL stores fixed-width integers in host byte order, so a hex dump
// of an int64 column on a little-endian machine reads least-significant
// byte first. The decoders here interpret tokens exactly that way:
// two's-complement, fixed width, first byte pair least significant.
//
// This package is intentionally placed in internal/pkg to allow imports
// from both adapters and cmd packages.
package hexutil

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrInvalidFormat reports a token that is not a well-formed little-endian
// hex image: wrong length or non-hex content. Decoders never truncate or
// zero-fill a malformed token.
var ErrInvalidFormat = errors.New("invalid little-endian hex token")

// Token widths in hex characters (two per byte).
const (
	int64TokenLen  = 16
	int32TokenLen  = 8
	uint32TokenLen = 8
)

// DecodeInt64LE decodes a 16-character hex token into the signed 64-bit
// integer it encodes under little-endian byte order. Hex digits are
// case-insensitive.
func DecodeInt64LE(token string) (int64, error) {
	raw, err := decodeToken(token, int64TokenLen)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(raw)), nil
}

// DecodeInt32LE decodes an 8-character hex token into a signed 32-bit
// integer under little-endian byte order.
func DecodeInt32LE(token string) (int32, error) {
	raw, err := decodeToken(token, int32TokenLen)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(raw)), nil
}

// DecodeUint32LE decodes an 8-character hex token into an unsigned 32-bit
// integer under little-endian byte order.
func DecodeUint32LE(token string) (uint32, error) {
	raw, err := decodeToken(token, uint32TokenLen)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(raw), nil
}

// EncodeInt64LE is the inverse of DecodeInt64LE: it renders v as the
// 16-character lowercase hex token that decodes back to v.
func EncodeInt64LE(v int64) string {
	var raw [8]byte
	binary.LittleEndian.PutUint64(raw[:], uint64(v))
	return hex.EncodeToString(raw[:])
}

// decodeToken validates length and hex content, returning the raw bytes
// in string order. encoding/hex rejects non-hex digits, which covers the
// content half of the format contract.
func decodeToken(token string, wantLen int) ([]byte, error) {
	if len(token) != wantLen {
		return nil, fmt.Errorf("%w: expected %d hex characters, got %d", ErrInvalidFormat, wantLen, len(token))
	}
	raw, err := hex.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return raw, nil
}
