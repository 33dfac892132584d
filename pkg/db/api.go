package db

import "bytes"

// Engine opens ordered key-value stores. Implementations wrap a physical
// storage engine; the container layer never sees which one is in use.
type Engine interface {
	Name() string
	Open(path string, opts Options) (KVStore, error)
}

// KVStore represents an ordered key-value storage interface providing basic
// operations for data manipulation and iteration. Keys are ordered by
// bytes.Compare.
type KVStore interface {
	Writer
	Get(key []byte) ([]byte, error)
	Delete(key []byte) error
	// DeleteRange removes every key in [start, end).
	DeleteRange(start, end []byte) error
	NewBatch() Batch
	// NewIterator returns an iterator bounded to [start, end). A nil bound is
	// unbounded on that side.
	NewIterator(start, end []byte) (Iterator, error)
	Close() error
}

type Writer interface {
	Put(key []byte, value []byte) error
}

// Batch represents an atomic batch of operations.
// All operations in a batch are performed atomically.
type Batch interface {
	Writer
	Delete(key []byte) error
	DeleteRange(start, end []byte) error
	Commit() error
	Close() error
}

// Iterator provides sequential access over a range of key-value pairs.
// A fresh iterator is unpositioned: the first Next positions it at the
// smallest key. Iterators must be closed after use.
type Iterator interface {
	// SeekGE positions the iterator at the first key >= key.
	SeekGE(key []byte) bool
	// SeekLT positions the iterator at the last key < key.
	SeekLT(key []byte) bool
	First() bool
	Last() bool
	Next() bool
	Prev() bool
	Valid() bool
	// Key returns a copy of the current key.
	Key() []byte
	// Value returns a copy of the current value.
	Value() ([]byte, error)
	Error() error
	Close() error
}

// SeekForPrev positions it at the last key <= key.
func SeekForPrev(it Iterator, key []byte) bool {
	return it.SeekLT(Successor(key))
}

// Successor returns the smallest key strictly greater than key.
func Successor(key []byte) []byte {
	next := make([]byte, len(key)+1)
	copy(next, key)
	return next
}

// CheckRange validates a half-open [start, end) range. A nil bound is the
// empty key, not an open end.
func CheckRange(start, end []byte) error {
	if bytes.Compare(start, end) > 0 {
		return ErrInvalidRange
	}
	return nil
}
