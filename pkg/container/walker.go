package container

import (
	"github.com/eigerco/kvcontainer/pkg/db"
)

type walker struct {
	iter db.Iterator
	// fresh means the iterator sits on a position no Step has returned yet.
	fresh bool
	done  bool
}

// Walk returns a Walker positioned at the first key >= prefix.
func (c *DB) Walk(prefix []byte) (Walker, error) {
	store, err := c.ensureOpen()
	if err != nil {
		return nil, err
	}
	iter, err := store.NewIterator(nil, nil)
	if err != nil {
		return nil, err
	}
	iter.SeekGE(prefix)
	return &walker{iter: iter, fresh: true}, nil
}

func (w *walker) Step() ([]byte, bool, error) {
	if w.done {
		return nil, false, ErrWalkerDone
	}
	if !w.fresh {
		w.iter.Next()
	}
	w.fresh = false

	if !w.iter.Valid() {
		err := w.iter.Error()
		w.finish()
		return nil, false, err
	}
	return w.iter.Key(), true, nil
}

func (w *walker) Seek(target []byte) error {
	if w.done {
		return ErrWalkerDone
	}
	w.iter.SeekGE(target)
	w.fresh = true
	return nil
}

// finish releases the iterator once the end has been reported.
func (w *walker) finish() {
	w.done = true
	if w.iter != nil {
		w.iter.Close() //nolint:errcheck
		w.iter = nil
	}
}

func (w *walker) Close() error {
	w.done = true
	if w.iter == nil {
		return nil
	}
	err := w.iter.Close()
	w.iter = nil
	return err
}
