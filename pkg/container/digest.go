package container

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

type Hash [32]byte

// Digest hashes the records of c under prefix, in scan order, with
// blake2b-256. Keys and values are length-prefixed so record boundaries are
// part of the hash. Two containers holding the same records under prefix
// have the same digest whatever engine stores them.
func Digest(c Container, prefix []byte) (Hash, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return Hash{}, err
	}

	items, err := c.Items(prefix)
	if err != nil {
		return Hash{}, err
	}
	defer items.Close() //nolint:errcheck

	var lenBuf [binary.MaxVarintLen64]byte
	for items.Next() {
		for _, b := range [][]byte{items.Key(), items.Value()} {
			n := binary.PutUvarint(lenBuf[:], uint64(len(b)))
			h.Write(lenBuf[:n])
			h.Write(b)
		}
	}
	if err := items.Err(); err != nil {
		return Hash{}, err
	}

	var out Hash
	copy(out[:], h.Sum(nil))
	return out, nil
}
