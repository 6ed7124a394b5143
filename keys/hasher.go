/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package keys

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/crypto/blake2b"

	"github.com/suparena/chainquery/storagemodels"
)

// Hash applies a hasher to encoded argument bytes. Concat hashers append data after the digest.
func Hash(kind storagemodels.HasherKind, data []byte) ([]byte, error) {
	switch kind {
	case storagemodels.Identity:
		return append([]byte(nil), data...), nil
	case storagemodels.Twox64Concat:
		return append(twox(data, 1), data...), nil
	case storagemodels.Twox128:
		return twox(data, 2), nil
	case storagemodels.Twox256:
		return twox(data, 4), nil
	case storagemodels.Blake2_128:
		return blake2b128(data)
	case storagemodels.Blake2_128Concat:
		digest, err := blake2b128(data)
		if err != nil {
			return nil, err
		}
		return append(digest, data...), nil
	case storagemodels.Blake2_256:
		sum := blake2b.Sum256(data)
		return sum[:], nil
	default:
		return nil, fmt.Errorf("unsupported hasher %s", kind)
	}
}

// twox concatenates little-endian xxh64 digests seeded 0..rounds-1.
func twox(data []byte, rounds int) []byte {
	out := make([]byte, 0, 8*rounds)
	for seed := 0; seed < rounds; seed++ {
		d := xxhash.NewWithSeed(uint64(seed))
		_, _ = d.Write(data)
		out = binary.LittleEndian.AppendUint64(out, d.Sum64())
	}
	return out
}

func blake2b128(data []byte) ([]byte, error) {
	h, err := blake2b.New(16, nil)
	if err != nil {
		return nil, err
	}
	_, _ = h.Write(data)
	return h.Sum(nil), nil
}

// Blake2_256 returns the 32-byte blake2b digest of data.
func Blake2_256(data []byte) storagemodels.Hash {
	return storagemodels.Hash(blake2b.Sum256(data))
}
