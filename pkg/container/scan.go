package container

import (
	"bytes"

	"github.com/eigerco/kvcontainer/pkg/db"
)

// scan is a prefix-bounded forward Iterator over an engine iterator.
type scan struct {
	iter       db.Iterator
	prefix     []byte
	withValues bool
	started    bool
	done       bool
	key        []byte
	value      []byte
	err        error
}

func (c *DB) newScan(prefix []byte, withValues bool) (Iterator, error) {
	store, err := c.ensureOpen()
	if err != nil {
		return nil, err
	}
	iter, err := store.NewIterator(nil, nil)
	if err != nil {
		return nil, err
	}
	return &scan{iter: iter, prefix: bytes.Clone(prefix), withValues: withValues}, nil
}

func (s *scan) Next() bool {
	if s.done {
		return false
	}

	var ok bool
	if !s.started {
		s.started = true
		ok = s.iter.SeekGE(s.prefix)
	} else {
		ok = s.iter.Next()
	}
	if !ok {
		return s.stop(s.iter.Error())
	}

	key := s.iter.Key()
	if !bytes.HasPrefix(key, s.prefix) {
		return s.stop(nil)
	}
	s.key = key
	s.value = nil
	if s.withValues {
		value, err := s.iter.Value()
		if err != nil {
			return s.stop(err)
		}
		s.value = value
	}
	return true
}

func (s *scan) stop(err error) bool {
	s.done = true
	s.err = err
	s.key, s.value = nil, nil
	return false
}

func (s *scan) Key() []byte   { return s.key }
func (s *scan) Value() []byte { return s.value }
func (s *scan) Err() error    { return s.err }

func (s *scan) Close() error {
	if s.iter == nil {
		return nil
	}
	err := s.iter.Close()
	s.iter = nil
	s.done = true
	return err
}

func (c *DB) Items(prefix []byte) (Iterator, error) {
	return c.newScan(prefix, true)
}

// Keys scans like Items without reading values; Value is always nil.
func (c *DB) Keys(prefix []byte) (Iterator, error) {
	return c.newScan(prefix, false)
}

func (c *DB) Values(prefix []byte) (Iterator, error) {
	return c.newScan(prefix, true)
}

func (c *DB) NextKey(prefix []byte) ([]byte, error) {
	key, _, err := c.NextKeyValue(prefix)
	return key, err
}

func (c *DB) NextValue(prefix []byte) ([]byte, error) {
	_, value, err := c.NextKeyValue(prefix)
	return value, err
}

func (c *DB) NextKeyValue(prefix []byte) ([]byte, []byte, error) {
	return c.boundary(func(iter db.Iterator) bool {
		if !iter.SeekGE(db.Successor(prefix)) {
			return false
		}
		return bytes.HasPrefix(iter.Key(), prefix)
	})
}

func (c *DB) PrevKey(prefix []byte) ([]byte, error) {
	key, _, err := c.PrevKeyValue(prefix)
	return key, err
}

func (c *DB) PrevValue(prefix []byte) ([]byte, error) {
	_, value, err := c.PrevKeyValue(prefix)
	return value, err
}

func (c *DB) PrevKeyValue(prefix []byte) ([]byte, []byte, error) {
	return c.boundary(func(iter db.Iterator) bool {
		return db.SeekForPrev(iter, append(bytes.Clone(prefix), 0xff))
	})
}

// boundary positions a fresh iterator with seek and returns the entry it
// lands on, or ErrNotFound when seek reports no match.
func (c *DB) boundary(seek func(db.Iterator) bool) ([]byte, []byte, error) {
	store, err := c.ensureOpen()
	if err != nil {
		return nil, nil, err
	}
	iter, err := store.NewIterator(nil, nil)
	if err != nil {
		return nil, nil, err
	}
	defer iter.Close() //nolint:errcheck

	if !seek(iter) {
		if err := iter.Error(); err != nil {
			return nil, nil, err
		}
		return nil, nil, ErrNotFound
	}
	value, err := iter.Value()
	if err != nil {
		return nil, nil, err
	}
	return iter.Key(), value, nil
}
