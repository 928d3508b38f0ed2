package store

import (
    "context"
    "errors"
    "fmt"

    "github.com/redis/go-redis/v9"
)

// RedisStore keeps registry state in Redis under
// "<prefix>:<instance>:<key>".  Every key read inside an Update is WATCHed
// and the staged writes are sent in one MULTI/EXEC, so a concurrent writer
// from another process makes the update fail with ErrConflict instead of
// committing over it.
type RedisStore struct {
    rdb    *redis.Client
    prefix string
}

// NewRedisStore binds a store to one registry instance.
func NewRedisStore(rdb *redis.Client, prefix, instance string) *RedisStore {
    if prefix == "" {
        prefix = "registry"
    }
    return &RedisStore{rdb: rdb, prefix: prefix + ":" + instance + ":"}
}

func (s *RedisStore) render(k Key) string { return s.prefix + k.String() }

func (s *RedisStore) Get(ctx context.Context, k Key) (string, bool, error) {
    v, err := s.rdb.Get(ctx, s.render(k)).Result()
    if errors.Is(err, redis.Nil) {
        return "", false, nil
    }
    if err != nil {
        return "", false, fmt.Errorf("redis get %s: %w", k, err)
    }
    return v, true, nil
}

func (s *RedisStore) Update(ctx context.Context, fn func(Txn) error) error {
    var fnErr error
    err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
        ws := newWriteSet()
        txn := &stagedTxn{
            read: func(key string) (string, bool, error) {
                if err := tx.Watch(ctx, key).Err(); err != nil {
                    return "", false, fmt.Errorf("redis watch %s: %w", key, err)
                }
                v, err := tx.Get(ctx, key).Result()
                if errors.Is(err, redis.Nil) {
                    return "", false, nil
                }
                if err != nil {
                    return "", false, fmt.Errorf("redis get %s: %w", key, err)
                }
                return v, true, nil
            },
            render: s.render,
            writes: ws,
        }
        if err := fn(txn); err != nil {
            fnErr = err
            return err
        }
        if ws.empty() {
            return nil
        }
        _, err := tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
            ws.each(func(w write) {
                if w.del {
                    p.Del(ctx, w.key)
                    return
                }
                p.Set(ctx, w.key, w.val, 0)
            })
            return nil
        })
        return err
    })
    switch {
    case err == nil:
        return nil
    case fnErr != nil:
        return fnErr
    case errors.Is(err, redis.TxFailedErr):
        return ErrConflict
    default:
        return fmt.Errorf("redis commit: %w", err)
    }
}
