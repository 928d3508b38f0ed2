package store

import (
    "context"
    "database/sql"
    "errors"
    "fmt"

    "github.com/go-sql-driver/mysql"
)

// InnoDB error numbers for a transaction that lost a lock race.
const (
    mysqlLockWaitTimeout = 1205
    mysqlDeadlock        = 1213
)

// lockConflict marks deadlocks and lock wait timeouts as ErrConflict.  The
// transaction was rolled back by the server, so nothing was written.
func lockConflict(err error) error {
    var myErr *mysql.MySQLError
    if errors.As(err, &myErr) && (myErr.Number == mysqlDeadlock || myErr.Number == mysqlLockWaitTimeout) {
        return fmt.Errorf("%w: %w", ErrConflict, err)
    }
    return err
}

// MySQLStore keeps registry state in the registry_kv table, one row per
// key, partitioned by registry_id.  Reads inside an Update lock their rows
// with SELECT ... FOR UPDATE and all writes share one transaction.
type MySQLStore struct {
    db       *sql.DB
    registry string
}

// NewMySQLStore binds a store to one registry instance.
func NewMySQLStore(db *sql.DB, registry string) *MySQLStore {
    return &MySQLStore{db: db, registry: registry}
}

func (s *MySQLStore) Get(ctx context.Context, k Key) (string, bool, error) {
    var v string
    err := s.db.QueryRowContext(ctx,
        "SELECT v FROM registry_kv WHERE registry_id=? AND k=? LIMIT 1",
        s.registry, k.String()).Scan(&v)
    if errors.Is(err, sql.ErrNoRows) {
        return "", false, nil
    }
    if err != nil {
        return "", false, fmt.Errorf("mysql get %s: %w", k, err)
    }
    return v, true, nil
}

func (s *MySQLStore) Update(ctx context.Context, fn func(Txn) error) error {
    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil {
        return fmt.Errorf("mysql begin: %w", err)
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    ws := newWriteSet()
    txn := &stagedTxn{
        read: func(key string) (string, bool, error) {
            var v string
            err := tx.QueryRowContext(ctx,
                "SELECT v FROM registry_kv WHERE registry_id=? AND k=? FOR UPDATE",
                s.registry, key).Scan(&v)
            if errors.Is(err, sql.ErrNoRows) {
                return "", false, nil
            }
            if err != nil {
                return "", false, fmt.Errorf("mysql get %s: %w", key, lockConflict(err))
            }
            return v, true, nil
        },
        render: Key.String,
        writes: ws,
    }
    if err := fn(txn); err != nil {
        return err
    }

    var execErr error
    ws.each(func(w write) {
        if execErr != nil {
            return
        }
        if w.del {
            _, execErr = tx.ExecContext(ctx,
                "DELETE FROM registry_kv WHERE registry_id=? AND k=?",
                s.registry, w.key)
            return
        }
        _, execErr = tx.ExecContext(ctx,
            "INSERT INTO registry_kv (registry_id, k, v) VALUES (?,?,?) ON DUPLICATE KEY UPDATE v=VALUES(v)",
            s.registry, w.key, w.val)
    })
    if execErr != nil {
        return fmt.Errorf("mysql write: %w", lockConflict(execErr))
    }
    if err := tx.Commit(); err != nil {
        return fmt.Errorf("mysql commit: %w", lockConflict(err))
    }
    committed = true
    return nil
}
