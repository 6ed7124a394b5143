/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package codec

import (
	"bytes"
	"fmt"
	"math/big"
	"strconv"

	"github.com/centrifuge/go-substrate-rpc-client/v4/scale"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/suparena/chainquery/storagemodels"
)

// NewPrimitiveRegistry returns a Registry preloaded with the fixed-width
// little-endian integers, bool, compact-prefixed Bytes/Text and 32-byte ids.
// Chain specific composites are registered on top by the caller.
func NewPrimitiveRegistry() *Registry {
	r := NewRegistry()
	for name, width := range map[string]int{"u8": 1, "u16": 2, "u32": 4, "u64": 8} {
		r.RegisterType(storagemodels.TypeRef(name), encodeUint(width), decodeUint(width))
	}
	r.RegisterType("u128", encodeU128, decodeU128)
	r.RegisterType("bool", encodeBool, decodeBool)
	r.RegisterType("Bytes", encodeBytes, decodeBytes)
	r.RegisterType("Text", encodeText, decodeText)
	r.RegisterType("AccountId32", encodeFixed(32), decodeFixed(32))
	r.RegisterType("H256", encodeFixed(32), decodeFixed(32))
	return r
}

func encodeUint(width int) EncodeFunc {
	return func(value any) ([]byte, error) {
		n, err := toUint64(value)
		if err != nil {
			return nil, err
		}
		if width < 8 && n >= 1<<(8*uint(width)) {
			return nil, fmt.Errorf("value %d overflows u%d", n, 8*width)
		}
		switch width {
		case 1:
			return encodeScale(uint8(n))
		case 2:
			return encodeScale(uint16(n))
		case 4:
			return encodeScale(uint32(n))
		default:
			return encodeScale(n)
		}
	}
}

func decodeUint(width int) DecodeFunc {
	return func(data []byte) (any, error) {
		if len(data) != width {
			return nil, fmt.Errorf("u%d needs %d bytes, got %d", 8*width, width, len(data))
		}
		switch width {
		case 1:
			return decodeInto[uint8](data)
		case 2:
			return decodeInto[uint16](data)
		case 4:
			return decodeInto[uint32](data)
		default:
			return decodeInto[uint64](data)
		}
	}
}

func decodeInto[T any](data []byte) (any, error) {
	var v T
	if err := decodeScale(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func encodeU128(value any) ([]byte, error) {
	var n *big.Int
	switch v := value.(type) {
	case *big.Int:
		n = v
	case string:
		parsed, ok := new(big.Int).SetString(v, 0)
		if !ok {
			return nil, fmt.Errorf("invalid u128 %q", v)
		}
		n = parsed
	default:
		u, err := toUint64(value)
		if err != nil {
			return nil, err
		}
		n = new(big.Int).SetUint64(u)
	}
	if n.Sign() < 0 || n.BitLen() > 128 {
		return nil, fmt.Errorf("value %s out of u128 range", n)
	}
	return encodeScale(types.NewU128(*n))
}

func decodeU128(data []byte) (any, error) {
	if len(data) != 16 {
		return nil, fmt.Errorf("u128 needs 16 bytes, got %d", len(data))
	}
	var v types.U128
	if err := decodeScale(data, &v); err != nil {
		return nil, err
	}
	return v.Int, nil
}

func encodeBool(value any) ([]byte, error) {
	b, ok := value.(bool)
	if !ok {
		return nil, fmt.Errorf("cannot encode %T as bool", value)
	}
	return encodeScale(b)
}

func decodeBool(data []byte) (any, error) {
	if len(data) != 1 || data[0] > 1 {
		return nil, fmt.Errorf("invalid bool encoding %x", data)
	}
	return decodeInto[bool](data)
}

func encodeBytes(value any) ([]byte, error) {
	raw, err := toBytes(value)
	if err != nil {
		return nil, err
	}
	return encodeScale(raw)
}

func decodeBytes(data []byte) (any, error) {
	var raw []byte
	if err := decodeScale(data, &raw); err != nil {
		return nil, fmt.Errorf("bytes: %w", err)
	}
	if raw == nil {
		raw = []byte{}
	}
	return raw, nil
}

func encodeText(value any) ([]byte, error) {
	s, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("cannot encode %T as Text", value)
	}
	return encodeScale(s)
}

func decodeText(data []byte) (any, error) {
	var s string
	if err := decodeScale(data, &s); err != nil {
		return nil, fmt.Errorf("text: %w", err)
	}
	return s, nil
}

func encodeFixed(size int) EncodeFunc {
	return func(value any) ([]byte, error) {
		raw, err := toBytes(value)
		if err != nil {
			return nil, err
		}
		if len(raw) != size {
			return nil, fmt.Errorf("expected %d bytes, got %d", size, len(raw))
		}
		return raw, nil
	}
}

func decodeFixed(size int) DecodeFunc {
	return func(data []byte) (any, error) {
		if len(data) != size {
			return nil, fmt.Errorf("expected %d bytes, got %d", size, len(data))
		}
		return append([]byte(nil), data...), nil
	}
}

// EncodeCompact encodes n in the SCALE compact integer format.
func EncodeCompact(n uint64) []byte {
	var buf bytes.Buffer
	// bytes.Buffer writes do not fail.
	_ = scale.NewEncoder(&buf).EncodeUintCompact(*new(big.Int).SetUint64(n))
	return buf.Bytes()
}

// DecodeCompact decodes a compact integer and returns it with the number of bytes consumed.
func DecodeCompact(data []byte) (uint64, int, error) {
	if len(data) == 0 {
		return 0, 0, fmt.Errorf("compact: empty input")
	}
	r := bytes.NewReader(data)
	n, err := scale.NewDecoder(r).DecodeUintCompact()
	if err != nil {
		return 0, 0, fmt.Errorf("compact: %w", err)
	}
	if !n.IsUint64() {
		return 0, 0, fmt.Errorf("compact: %s overflows u64", n)
	}
	return n.Uint64(), len(data) - r.Len(), nil
}

func encodeScale(value any) ([]byte, error) {
	var buf bytes.Buffer
	if err := scale.NewEncoder(&buf).Encode(value); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeScale decodes data into target and rejects trailing bytes.
func decodeScale(data []byte, target any) error {
	r := bytes.NewReader(data)
	if err := scale.NewDecoder(r).Decode(target); err != nil {
		return err
	}
	if r.Len() != 0 {
		return fmt.Errorf("%d trailing bytes after value", r.Len())
	}
	return nil
}

func toUint64(value any) (uint64, error) {
	switch v := value.(type) {
	case uint8:
		return uint64(v), nil
	case uint16:
		return uint64(v), nil
	case uint32:
		return uint64(v), nil
	case uint64:
		return v, nil
	case uint:
		return uint64(v), nil
	case int:
		if v < 0 {
			return 0, fmt.Errorf("negative value %d", v)
		}
		return uint64(v), nil
	case int32:
		if v < 0 {
			return 0, fmt.Errorf("negative value %d", v)
		}
		return uint64(v), nil
	case int64:
		if v < 0 {
			return 0, fmt.Errorf("negative value %d", v)
		}
		return uint64(v), nil
	case string:
		return strconv.ParseUint(v, 0, 64)
	default:
		return 0, fmt.Errorf("cannot encode %T as unsigned integer", value)
	}
}

// toBytes accepts raw bytes, 32-byte arrays and 0x-prefixed hex strings.
func toBytes(value any) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case [32]byte:
		return v[:], nil
	case string:
		raw, err := hexutil.Decode(v)
		if err != nil {
			return nil, fmt.Errorf("invalid hex %q: %w", v, err)
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("cannot encode %T as bytes", value)
	}
}
