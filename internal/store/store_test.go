package store

import (
    "context"
    "errors"
    "regexp"
    "testing"

    "github.com/DATA-DOG/go-sqlmock"
    "github.com/alicebob/miniredis/v2"
    "github.com/go-sql-driver/mysql"
    "github.com/redis/go-redis/v9"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

var errAbort = errors.New("abort")

func TestKeyString(t *testing.T) {
    tests := []struct {
        key  Key
        want string
    }{
        {NameKey(), "name"},
        {SymbolKey(), "symbol"},
        {AdminKey(), "admin"},
        {TokenOwnerKey(42), "token_owner:42"},
        {SeatKey("GALICE"), "seat:GALICE"},
        {Key{}, "unknown"},
    }
    for _, tt := range tests {
        assert.Equal(t, tt.want, tt.key.String())
    }
}

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, s Store) {
    ctx := context.Background()

    err := s.Update(ctx, func(tx Txn) error {
        tx.Set(TokenOwnerKey(1), "GALICE")
        v, ok, err := tx.Get(TokenOwnerKey(1))
        require.NoError(t, err)
        assert.True(t, ok, "reads see staged writes")
        assert.Equal(t, "GALICE", v)
        tx.Set(SeatKey("GALICE"), "1")
        return nil
    })
    require.NoError(t, err)

    v, ok, err := s.Get(ctx, TokenOwnerKey(1))
    require.NoError(t, err)
    assert.True(t, ok)
    assert.Equal(t, "GALICE", v)

    err = s.Update(ctx, func(tx Txn) error {
        tx.Set(TokenOwnerKey(1), "GBOB")
        tx.Delete(SeatKey("GALICE"))
        return errAbort
    })
    assert.ErrorIs(t, err, errAbort)

    v, _, err = s.Get(ctx, TokenOwnerKey(1))
    require.NoError(t, err)
    assert.Equal(t, "GALICE", v, "aborted update writes nothing")
    _, ok, err = s.Get(ctx, SeatKey("GALICE"))
    require.NoError(t, err)
    assert.True(t, ok)

    err = s.Update(ctx, func(tx Txn) error {
        tx.Delete(SeatKey("GALICE"))
        _, ok, err := tx.Get(SeatKey("GALICE"))
        require.NoError(t, err)
        assert.False(t, ok, "reads see staged deletes")
        return nil
    })
    require.NoError(t, err)
    _, ok, err = s.Get(ctx, SeatKey("GALICE"))
    require.NoError(t, err)
    assert.False(t, ok)
}

func TestMemoryStore(t *testing.T) {
    s := NewMemoryStore()
    exerciseStore(t, s)
    assert.Equal(t, 1, s.Len())
}

func TestMemoryStore_CancelledContext(t *testing.T) {
    ctx, cancel := context.WithCancel(context.Background())
    cancel()
    err := NewMemoryStore().Update(ctx, func(Txn) error { return nil })
    assert.ErrorIs(t, err, context.Canceled)
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
    mr := miniredis.RunT(t)
    rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
    t.Cleanup(func() { _ = rdb.Close() })
    return mr, rdb
}

func TestRedisStore(t *testing.T) {
    mr, rdb := setupRedis(t)
    s := NewRedisStore(rdb, "", "hall-1")
    exerciseStore(t, s)

    v, err := mr.Get("registry:hall-1:token_owner:1")
    require.NoError(t, err)
    assert.Equal(t, "GALICE", v)
    assert.False(t, mr.Exists("registry:hall-1:seat:GALICE"))
}

func TestRedisStore_InstancesAreIsolated(t *testing.T) {
    _, rdb := setupRedis(t)
    a := NewRedisStore(rdb, "seats", "a")
    b := NewRedisStore(rdb, "seats", "b")
    ctx := context.Background()

    require.NoError(t, a.Update(ctx, func(tx Txn) error {
        tx.Set(AdminKey(), "GADMIN")
        return nil
    }))
    _, ok, err := b.Get(ctx, AdminKey())
    require.NoError(t, err)
    assert.False(t, ok)
}

func TestRedisStore_ConflictingWriter(t *testing.T) {
    mr, rdb := setupRedis(t)
    other := redis.NewClient(&redis.Options{Addr: mr.Addr()})
    defer other.Close()

    s := NewRedisStore(rdb, "", "hall-1")
    ctx := context.Background()

    err := s.Update(ctx, func(tx Txn) error {
        _, ok, err := tx.Get(TokenOwnerKey(9))
        require.NoError(t, err)
        require.False(t, ok)
        require.NoError(t, other.Set(ctx, "registry:hall-1:token_owner:9", "GMALLORY", 0).Err())
        tx.Set(TokenOwnerKey(9), "GALICE")
        tx.Set(SeatKey("GALICE"), "9")
        return nil
    })
    assert.ErrorIs(t, err, ErrConflict)

    v, err := mr.Get("registry:hall-1:token_owner:9")
    require.NoError(t, err)
    assert.Equal(t, "GMALLORY", v)
    assert.False(t, mr.Exists("registry:hall-1:seat:GALICE"))
}

func TestRedisStore_ServerDown(t *testing.T) {
    mr, rdb := setupRedis(t)
    mr.Close()

    _, _, err := NewRedisStore(rdb, "", "x").Get(context.Background(), AdminKey())
    assert.Error(t, err)
}

func setupMySQL(t *testing.T) (sqlmock.Sqlmock, *MySQLStore) {
    db, mock, err := sqlmock.New()
    require.NoError(t, err)
    t.Cleanup(func() { _ = db.Close() })
    return mock, NewMySQLStore(db, "hall-1")
}

var (
    selectForUpdate = regexp.QuoteMeta("SELECT v FROM registry_kv WHERE registry_id=? AND k=? FOR UPDATE")
    upsert          = regexp.QuoteMeta("INSERT INTO registry_kv (registry_id, k, v) VALUES (?,?,?) ON DUPLICATE KEY UPDATE v=VALUES(v)")
    deleteKey       = regexp.QuoteMeta("DELETE FROM registry_kv WHERE registry_id=? AND k=?")
)

func TestMySQLStore_Get(t *testing.T) {
    mock, s := setupMySQL(t)
    q := regexp.QuoteMeta("SELECT v FROM registry_kv WHERE registry_id=? AND k=? LIMIT 1")

    mock.ExpectQuery(q).WithArgs("hall-1", "admin").
        WillReturnRows(sqlmock.NewRows([]string{"v"}).AddRow("GADMIN"))
    mock.ExpectQuery(q).WithArgs("hall-1", "token_owner:3").
        WillReturnRows(sqlmock.NewRows([]string{"v"}))

    v, ok, err := s.Get(context.Background(), AdminKey())
    require.NoError(t, err)
    assert.True(t, ok)
    assert.Equal(t, "GADMIN", v)

    _, ok, err = s.Get(context.Background(), TokenOwnerKey(3))
    require.NoError(t, err)
    assert.False(t, ok)

    require.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_UpdateCommits(t *testing.T) {
    mock, s := setupMySQL(t)

    mock.ExpectBegin()
    mock.ExpectQuery(selectForUpdate).WithArgs("hall-1", "token_owner:1").
        WillReturnRows(sqlmock.NewRows([]string{"v"}).AddRow("GALICE"))
    mock.ExpectQuery(selectForUpdate).WithArgs("hall-1", "seat:GBOB").
        WillReturnRows(sqlmock.NewRows([]string{"v"}))
    mock.ExpectQuery(selectForUpdate).WithArgs("hall-1", "seat:GALICE").
        WillReturnRows(sqlmock.NewRows([]string{"v"}).AddRow("1"))
    mock.ExpectExec(deleteKey).WithArgs("hall-1", "seat:GALICE").
        WillReturnResult(sqlmock.NewResult(0, 1))
    mock.ExpectExec(upsert).WithArgs("hall-1", "token_owner:1", "GBOB").
        WillReturnResult(sqlmock.NewResult(0, 2))
    mock.ExpectExec(upsert).WithArgs("hall-1", "seat:GBOB", "1").
        WillReturnResult(sqlmock.NewResult(0, 1))
    mock.ExpectCommit()

    err := s.Update(context.Background(), func(tx Txn) error {
        owner, ok, err := tx.Get(TokenOwnerKey(1))
        require.NoError(t, err)
        require.True(t, ok)
        require.Equal(t, "GALICE", owner)
        _, has, err := tx.Get(SeatKey("GBOB"))
        require.NoError(t, err)
        require.False(t, has)
        held, _, err := tx.Get(SeatKey("GALICE"))
        require.NoError(t, err)
        require.Equal(t, "1", held)
        tx.Delete(SeatKey("GALICE"))
        tx.Set(TokenOwnerKey(1), "GBOB")
        tx.Set(SeatKey("GBOB"), "1")
        return nil
    })
    require.NoError(t, err)
    require.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_UpdateRollsBack(t *testing.T) {
    t.Run("function error", func(t *testing.T) {
        mock, s := setupMySQL(t)
        mock.ExpectBegin()
        mock.ExpectQuery(selectForUpdate).WithArgs("hall-1", "admin").
            WillReturnRows(sqlmock.NewRows([]string{"v"}).AddRow("GADMIN"))
        mock.ExpectRollback()

        err := s.Update(context.Background(), func(tx Txn) error {
            if _, _, err := tx.Get(AdminKey()); err != nil {
                return err
            }
            tx.Set(AdminKey(), "GOTHER")
            return errAbort
        })
        assert.ErrorIs(t, err, errAbort)
        require.NoError(t, mock.ExpectationsWereMet())
    })

    t.Run("write error", func(t *testing.T) {
        mock, s := setupMySQL(t)
        boom := errors.New("deadlock")
        mock.ExpectBegin()
        mock.ExpectExec(upsert).WithArgs("hall-1", "name", "Hall").
            WillReturnResult(sqlmock.NewResult(0, 1))
        mock.ExpectExec(upsert).WithArgs("hall-1", "symbol", "HALL").
            WillReturnError(boom)
        mock.ExpectRollback()

        err := s.Update(context.Background(), func(tx Txn) error {
            tx.Set(NameKey(), "Hall")
            tx.Set(SymbolKey(), "HALL")
            tx.Set(AdminKey(), "GADMIN")
            return nil
        })
        assert.ErrorIs(t, err, boom)
        require.NoError(t, mock.ExpectationsWereMet())
    })
}

func TestMySQLStore_LockRacesAreConflicts(t *testing.T) {
    deadlock := &mysql.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"}
    lockWait := &mysql.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"}

    t.Run("deadlock on write", func(t *testing.T) {
        mock, s := setupMySQL(t)
        mock.ExpectBegin()
        mock.ExpectQuery(selectForUpdate).WithArgs("hall-1", "token_owner:9").
            WillReturnRows(sqlmock.NewRows([]string{"v"}))
        mock.ExpectExec(upsert).WithArgs("hall-1", "token_owner:9", "GALICE").
            WillReturnError(deadlock)
        mock.ExpectRollback()

        err := s.Update(context.Background(), func(tx Txn) error {
            if _, _, err := tx.Get(TokenOwnerKey(9)); err != nil {
                return err
            }
            tx.Set(TokenOwnerKey(9), "GALICE")
            return nil
        })
        assert.ErrorIs(t, err, ErrConflict)
        assert.ErrorIs(t, err, deadlock)
        require.NoError(t, mock.ExpectationsWereMet())
    })

    t.Run("lock wait timeout on read", func(t *testing.T) {
        mock, s := setupMySQL(t)
        mock.ExpectBegin()
        mock.ExpectQuery(selectForUpdate).WithArgs("hall-1", "admin").
            WillReturnError(lockWait)
        mock.ExpectRollback()

        err := s.Update(context.Background(), func(tx Txn) error {
            _, _, err := tx.Get(AdminKey())
            return err
        })
        assert.ErrorIs(t, err, ErrConflict)
        require.NoError(t, mock.ExpectationsWereMet())
    })

    t.Run("other driver errors are not conflicts", func(t *testing.T) {
        mock, s := setupMySQL(t)
        mock.ExpectBegin()
        mock.ExpectExec(upsert).WithArgs("hall-1", "name", "Hall").
            WillReturnError(&mysql.MySQLError{Number: 1406, Message: "Data too long"})
        mock.ExpectRollback()

        err := s.Update(context.Background(), func(tx Txn) error {
            tx.Set(NameKey(), "Hall")
            return nil
        })
        require.Error(t, err)
        assert.NotErrorIs(t, err, ErrConflict)
        require.NoError(t, mock.ExpectationsWereMet())
    })
}
