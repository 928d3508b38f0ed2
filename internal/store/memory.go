package store

import (
    "context"
    "sync"
)

// MemoryStore keeps registry state in process memory.  It backs tests and
// STORE_BACKEND=memory; state does not survive a restart.
type MemoryStore struct {
    mu   sync.RWMutex
    data map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore { return &MemoryStore{data: map[string]string{}} }

func (s *MemoryStore) Get(_ context.Context, k Key) (string, bool, error) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    v, ok := s.data[k.String()]
    return v, ok, nil
}

// Update holds the write lock for the whole call, so concurrent updates
// never interleave.
func (s *MemoryStore) Update(ctx context.Context, fn func(Txn) error) error {
    if err := ctx.Err(); err != nil {
        return err
    }
    s.mu.Lock()
    defer s.mu.Unlock()

    ws := newWriteSet()
    txn := &stagedTxn{
        read: func(key string) (string, bool, error) {
            v, ok := s.data[key]
            return v, ok, nil
        },
        render: Key.String,
        writes: ws,
    }
    if err := fn(txn); err != nil {
        return err
    }
    ws.each(func(w write) {
        if w.del {
            delete(s.data, w.key)
            return
        }
        s.data[w.key] = w.val
    })
    return nil
}

// Len reports the number of stored keys.
func (s *MemoryStore) Len() int {
    s.mu.RLock()
    defer s.mu.RUnlock()
    return len(s.data)
}
