// Package container exposes an ordered byte-key/byte-value store as a
// dict-like, tree-like and range-scannable Container, with a crash-safe
// single-writer discipline on top of the physical engine.
//
// A writable DB holds an exclusive lock for its path from Open until Close
// and leaves a progress marker on disk from its first write until Finalize
// has copied its contents into an index container. A marker found on disk
// therefore means a writer stopped before finalizing.
package container

import (
	"errors"

	"github.com/eigerco/kvcontainer/internal/lock"
	"github.com/eigerco/kvcontainer/pkg/db"
)

var (
	ErrNotFound    = db.ErrNotFound
	ErrLockBusy    = lock.ErrLockBusy
	ErrReadOnly    = db.ErrReadOnly
	ErrBatchDone   = db.ErrBatchDone
	ErrUnsupported = errors.New("container: operation not supported")
	ErrClosed      = errors.New("container: closed")
	ErrWalkerDone  = errors.New("container: walker already reached the end")
)

// Container is the contract shared by DB, PrefixView and TreeView.
//
// Every mutation takes an optional batch: nil applies it immediately,
// otherwise it is queued on the batch until Commit.
type Container interface {
	Get(key []byte) ([]byte, error)
	// GetDefault is not supported and always returns ErrUnsupported.
	GetDefault(key, def []byte) ([]byte, error)
	Set(key, value []byte, batch *Batch) error
	Delete(key []byte, batch *Batch) error
	// DeleteRange removes every key in [begin, end).
	DeleteRange(begin, end []byte, batch *Batch) error

	// Items scans the keys starting with prefix in ascending order. Each call
	// starts a new scan.
	Items(prefix []byte) (Iterator, error)
	Keys(prefix []byte) (Iterator, error)
	Values(prefix []byte) (Iterator, error)

	// NextKey returns the first key >= prefix+0x00, provided it still starts
	// with prefix.
	NextKey(prefix []byte) ([]byte, error)
	NextValue(prefix []byte) ([]byte, error)
	NextKeyValue(prefix []byte) ([]byte, []byte, error)

	// PrevKey returns the last key <= prefix+0xFF. Unlike NextKey the result
	// is not required to start with prefix.
	PrevKey(prefix []byte) ([]byte, error)
	PrevValue(prefix []byte) ([]byte, error)
	PrevKeyValue(prefix []byte) ([]byte, []byte, error)

	Walk(prefix []byte) (Walker, error)

	Batch() *Batch
	Commit(batch *Batch) error

	Finalize(index Container) error
	// Update is not supported and always returns ErrUnsupported.
	Update() error

	View(prefix []byte) Container
	Tree() *TreeView

	Preload() error
	Close() error
}

// Iterator is a forward scan. Key and Value are valid after Next returns
// true; Err reports why a scan stopped early.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Err() error
	Close() error
}

// Walker is a re-seekable cursor. Step returns the key at the current
// position, or ok == false once the scan is exhausted; after that every call
// fails with ErrWalkerDone. Seek moves to the first key >= target. A Step
// that does not follow a Seek moves past the key it last returned.
type Walker interface {
	Step() (key []byte, ok bool, err error)
	Seek(target []byte) error
	Close() error
}
