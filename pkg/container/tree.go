package container

import (
	"bytes"
)

// DefaultSeparator splits tree path segments inside keys. It sorts above
// every printable byte, so a node's own records come before its children.
const DefaultSeparator byte = 0xfe

// TreeView is a PrefixView that reads keys as separator-delimited paths.
// For a container holding meta<sep>x, Sub([]byte("meta")).Get([]byte("x"))
// returns that record.
type TreeView struct {
	*PrefixView
	sep byte
}

func NewTreeView(c Container, sep byte) *TreeView {
	return &TreeView{PrefixView: NewPrefixView(c, nil), sep: sep}
}

func (t *TreeView) Separator() byte {
	return t.sep
}

// Sub descends one level per segment.
func (t *TreeView) Sub(segments ...[]byte) *TreeView {
	var path []byte
	for _, s := range segments {
		path = append(path, s...)
		path = append(path, t.sep)
	}
	return &TreeView{PrefixView: NewPrefixView(t.PrefixView, path), sep: t.sep}
}

// Tree returns t itself, keeping its separator.
func (t *TreeView) Tree() *TreeView {
	return t
}

// Segments lists the distinct first path segments below t in key order.
// It skips over each child's subtree with one seek instead of scanning it.
func (t *TreeView) Segments() ([][]byte, error) {
	w, err := t.Walk(nil)
	if err != nil {
		return nil, err
	}
	defer w.Close() //nolint:errcheck

	var segments [][]byte
	seen := make(map[string]struct{})
	for {
		key, ok, err := w.Step()
		if err != nil {
			return nil, err
		}
		if !ok {
			return segments, nil
		}

		segment := key
		next := append(bytes.Clone(key), 0x00)
		if i := bytes.IndexByte(key, t.sep); i >= 0 {
			segment = key[:i]
			next = prefixEnd(key[:i+1])
		}
		if _, dup := seen[string(segment)]; !dup {
			seen[string(segment)] = struct{}{}
			segments = append(segments, bytes.Clone(segment))
		}
		if next == nil {
			return segments, nil
		}
		if err := w.Seek(next); err != nil {
			return nil, err
		}
	}
}

// prefixEnd returns the smallest key greater than every key starting with
// prefix, or nil if there is none.
func prefixEnd(prefix []byte) []byte {
	end := bytes.Clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
