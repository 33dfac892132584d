package memory

import (
	"bytes"

	"github.com/google/btree"

	"github.com/eigerco/kvcontainer/pkg/db"
)

// Iterator walks a point-in-time clone of the tree, so writes made after
// NewIterator are not observed.
type Iterator struct {
	tree       *btree.BTreeG[item]
	lower      []byte
	upper      []byte
	cur        item
	valid      bool
	positioned bool
}

func (s *KVStore) NewIterator(start, end []byte) (db.Iterator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, db.ErrClosed
	}

	// Clone marks the shared nodes copy-on-write, which mutates the tree.
	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	return &Iterator{
		tree:  s.data.tree.Clone(),
		lower: clone(start),
		upper: clone(end),
	}, nil
}

func (it *Iterator) inBounds(key []byte) bool {
	if len(it.lower) > 0 && bytes.Compare(key, it.lower) < 0 {
		return false
	}
	if it.upper != nil && bytes.Compare(key, it.upper) >= 0 {
		return false
	}
	return true
}

func (it *Iterator) set(found item, ok bool) bool {
	it.positioned = true
	it.valid = ok && it.inBounds(found.key)
	if it.valid {
		it.cur = found
	} else {
		it.cur = item{}
	}
	return it.valid
}

// ascend returns the first item >= key.
func (it *Iterator) ascend(key []byte) (item, bool) {
	if len(it.lower) > 0 && bytes.Compare(key, it.lower) < 0 {
		key = it.lower
	}
	var found item
	var ok bool
	it.tree.AscendGreaterOrEqual(item{key: key}, func(i item) bool {
		found, ok = i, true
		return false
	})
	return found, ok
}

// descend returns the last item < key, or the last item overall for nil.
func (it *Iterator) descend(key []byte) (item, bool) {
	if it.upper != nil && (key == nil || bytes.Compare(key, it.upper) > 0) {
		key = it.upper
	}
	var found item
	var ok bool
	visit := func(i item) bool {
		found, ok = i, true
		return false
	}
	if key == nil {
		it.tree.Descend(visit)
	} else {
		it.tree.DescendLessOrEqual(item{key: key}, func(i item) bool {
			if bytes.Equal(i.key, key) {
				return true
			}
			return visit(i)
		})
	}
	return found, ok
}

func (it *Iterator) SeekGE(key []byte) bool {
	return it.set(it.ascend(key))
}

func (it *Iterator) SeekLT(key []byte) bool {
	return it.set(it.descend(key))
}

func (it *Iterator) First() bool {
	return it.set(it.ascend(nil))
}

func (it *Iterator) Last() bool {
	return it.set(it.descend(nil))
}

func (it *Iterator) Next() bool {
	if !it.positioned {
		return it.First()
	}
	if !it.valid {
		return false
	}
	return it.set(it.ascend(db.Successor(it.cur.key)))
}

func (it *Iterator) Prev() bool {
	if !it.positioned {
		return it.Last()
	}
	if !it.valid {
		return false
	}
	return it.set(it.descend(it.cur.key))
}

func (it *Iterator) Valid() bool {
	return it.valid
}

func (it *Iterator) Key() []byte {
	return clone(it.cur.key)
}

func (it *Iterator) Value() ([]byte, error) {
	if !it.valid {
		return nil, db.ErrIteratorInvalid
	}
	return clone(it.cur.value), nil
}

func (it *Iterator) Error() error {
	return nil
}

func (it *Iterator) Close() error {
	it.tree = nil
	it.valid = false
	return nil
}
