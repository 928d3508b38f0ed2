package store

import (
    "context"
    "errors"
)

// ErrConflict is returned by Update when another writer changed a key the
// update had read before it could commit.  Nothing is written.
var ErrConflict = errors.New("concurrent update")

// Reader reads single keys outside of an update.
type Reader interface {
    Get(ctx context.Context, k Key) (string, bool, error)
}

// Txn is the view handed to an Update function.  Reads observe the
// committed state plus the writes already staged in the same Txn.  Writes
// are buffered until the function returns.
type Txn interface {
    Get(k Key) (string, bool, error)
    Set(k Key, v string)
    Delete(k Key)
}

// Store is durable key-value storage with atomic multi-key commit.
type Store interface {
    Reader
    // Update runs fn and commits its staged writes as one unit.  When fn
    // returns an error nothing is written and that error is returned as is.
    Update(ctx context.Context, fn func(Txn) error) error
}

// write is one staged mutation; del marks a removal.
type write struct {
    key string
    val string
    del bool
}

// writeSet buffers the writes of one Txn in the order they were staged.
// Later writes to the same key replace earlier ones.
type writeSet struct {
    order []string
    byKey map[string]write
}

func newWriteSet() *writeSet { return &writeSet{byKey: map[string]write{}} }

func (w *writeSet) put(wr write) {
    if _, ok := w.byKey[wr.key]; !ok {
        w.order = append(w.order, wr.key)
    }
    w.byKey[wr.key] = wr
}

// lookup returns a staged value for key.  found reports whether the key was
// staged at all; ok reports whether it is present after the staged write.
func (w *writeSet) lookup(key string) (val string, ok, found bool) {
    wr, found := w.byKey[key]
    if !found {
        return "", false, false
    }
    if wr.del {
        return "", false, true
    }
    return wr.val, true, true
}

func (w *writeSet) each(fn func(write)) {
    for _, k := range w.order {
        fn(w.byKey[k])
    }
}

func (w *writeSet) empty() bool { return len(w.order) == 0 }

// stagedTxn implements Txn over a read function and a writeSet.  Backends
// supply read; the writeSet is committed by the backend after fn returns.
type stagedTxn struct {
    read   func(key string) (string, bool, error)
    render func(Key) string
    writes *writeSet
}

func (t *stagedTxn) Get(k Key) (string, bool, error) {
    key := t.render(k)
    if v, ok, found := t.writes.lookup(key); found {
        return v, ok, nil
    }
    return t.read(key)
}

func (t *stagedTxn) Set(k Key, v string) { t.writes.put(write{key: t.render(k), val: v}) }

func (t *stagedTxn) Delete(k Key) { t.writes.put(write{key: t.render(k), del: true}) }
