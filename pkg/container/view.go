package container

import (
	"bytes"
)

// PrefixView is a Container restricted to the keys of a backing container
// that start with a prefix, with the prefix stripped. It holds no state of
// its own and never closes the backing container.
type PrefixView struct {
	container Container
	prefix    []byte
}

// NewPrefixView returns the view of c under prefix. Views of views collapse
// into a single view over the innermost container.
func NewPrefixView(c Container, prefix []byte) *PrefixView {
	if inner, ok := c.(interface{ unwrap() (Container, []byte) }); ok {
		backing, outer := inner.unwrap()
		return &PrefixView{container: backing, prefix: concat(outer, prefix)}
	}
	return &PrefixView{container: c, prefix: bytes.Clone(prefix)}
}

func (v *PrefixView) unwrap() (Container, []byte) {
	return v.container, v.prefix
}

// Prefix returns the full prefix applied to the backing container.
func (v *PrefixView) Prefix() []byte {
	return bytes.Clone(v.prefix)
}

// Container returns the backing container.
func (v *PrefixView) Container() Container {
	return v.container
}

func concat(a, b []byte) []byte {
	out := make([]byte, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

func (v *PrefixView) key(k []byte) []byte {
	return concat(v.prefix, k)
}

// strip removes the view prefix, reporting false for keys outside the view.
func (v *PrefixView) strip(k []byte) ([]byte, bool) {
	if !bytes.HasPrefix(k, v.prefix) {
		return nil, false
	}
	return k[len(v.prefix):], true
}

func (v *PrefixView) Get(key []byte) ([]byte, error) {
	return v.container.Get(v.key(key))
}

func (v *PrefixView) GetDefault(key, def []byte) ([]byte, error) {
	return nil, ErrUnsupported
}

func (v *PrefixView) Update() error {
	return ErrUnsupported
}

func (v *PrefixView) Set(key, value []byte, batch *Batch) error {
	return v.container.Set(v.key(key), value, batch)
}

func (v *PrefixView) Delete(key []byte, batch *Batch) error {
	return v.container.Delete(v.key(key), batch)
}

func (v *PrefixView) DeleteRange(begin, end []byte, batch *Batch) error {
	return v.container.DeleteRange(v.key(begin), v.key(end), batch)
}

func (v *PrefixView) Items(prefix []byte) (Iterator, error) {
	return v.stripped(v.container.Items(v.key(prefix)))
}

func (v *PrefixView) Keys(prefix []byte) (Iterator, error) {
	return v.stripped(v.container.Keys(v.key(prefix)))
}

func (v *PrefixView) Values(prefix []byte) (Iterator, error) {
	return v.stripped(v.container.Values(v.key(prefix)))
}

func (v *PrefixView) stripped(it Iterator, err error) (Iterator, error) {
	if err != nil {
		return nil, err
	}
	return &strippedIterator{Iterator: it, n: len(v.prefix)}, nil
}

// strippedIterator trims a prefix every key of the scan is known to carry.
type strippedIterator struct {
	Iterator
	n int
}

func (it *strippedIterator) Key() []byte {
	key := it.Iterator.Key()
	if key == nil {
		return nil
	}
	return key[it.n:]
}

func (v *PrefixView) NextKey(prefix []byte) ([]byte, error) {
	key, _, err := v.NextKeyValue(prefix)
	return key, err
}

func (v *PrefixView) NextValue(prefix []byte) ([]byte, error) {
	_, value, err := v.NextKeyValue(prefix)
	return value, err
}

func (v *PrefixView) NextKeyValue(prefix []byte) ([]byte, []byte, error) {
	key, value, err := v.container.NextKeyValue(v.key(prefix))
	if err != nil {
		return nil, nil, err
	}
	return key[len(v.prefix):], value, nil
}

func (v *PrefixView) PrevKey(prefix []byte) ([]byte, error) {
	key, _, err := v.PrevKeyValue(prefix)
	return key, err
}

func (v *PrefixView) PrevValue(prefix []byte) ([]byte, error) {
	_, value, err := v.PrevKeyValue(prefix)
	return value, err
}

// PrevKeyValue may land outside the requested prefix, like the backing
// container's, but a key outside the view itself cannot be expressed in the
// view's key space and is reported as ErrNotFound.
func (v *PrefixView) PrevKeyValue(prefix []byte) ([]byte, []byte, error) {
	key, value, err := v.container.PrevKeyValue(v.key(prefix))
	if err != nil {
		return nil, nil, err
	}
	stripped, ok := v.strip(key)
	if !ok {
		return nil, nil, ErrNotFound
	}
	return stripped, value, nil
}

func (v *PrefixView) Walk(prefix []byte) (Walker, error) {
	w, err := v.container.Walk(v.key(prefix))
	if err != nil {
		return nil, err
	}
	return &viewWalker{walker: w, view: v}, nil
}

// viewWalker ends the walk as soon as the backing walker leaves the view.
type viewWalker struct {
	walker Walker
	view   *PrefixView
	done   bool
}

func (w *viewWalker) Step() ([]byte, bool, error) {
	if w.done {
		return nil, false, ErrWalkerDone
	}
	key, ok, err := w.walker.Step()
	if err != nil || !ok {
		w.done = true
		return nil, false, err
	}
	stripped, inView := w.view.strip(key)
	if !inView {
		w.done = true
		w.walker.Close() //nolint:errcheck
		return nil, false, nil
	}
	return stripped, true, nil
}

func (w *viewWalker) Seek(target []byte) error {
	if w.done {
		return ErrWalkerDone
	}
	return w.walker.Seek(w.view.key(target))
}

func (w *viewWalker) Close() error {
	w.done = true
	return w.walker.Close()
}

func (v *PrefixView) Batch() *Batch {
	return v.container.Batch()
}

func (v *PrefixView) Commit(batch *Batch) error {
	return v.container.Commit(batch)
}

// Finalize finalizes the backing container as a whole; the marker belongs
// to the container, not to any view of it.
func (v *PrefixView) Finalize(index Container) error {
	return v.container.Finalize(index)
}

func (v *PrefixView) View(prefix []byte) Container {
	return NewPrefixView(v, prefix)
}

func (v *PrefixView) Tree() *TreeView {
	return NewTreeView(v, DefaultSeparator)
}

func (v *PrefixView) Preload() error {
	return v.container.Preload()
}

// Close is a no-op: the view does not own the backing container.
func (v *PrefixView) Close() error {
	return nil
}
