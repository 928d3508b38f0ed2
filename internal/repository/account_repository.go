package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/seat-registry/internal/model"
	"github.com/iliyamo/seat-registry/internal/utils"
)

// AccountRepo persists identity accounts in the 'accounts' table.
type AccountRepo struct{ DB *sql.DB }

func NewAccountRepo(db *sql.DB) *AccountRepo { return &AccountRepo{DB: db} }

// mysqlDuplicateEntry is the server error number for a unique key violation.
const mysqlDuplicateEntry = 1062

// Create hashes the password and inserts the account.  ErrIdentityExists is
// returned when the identity already has an account.
func (r *AccountRepo) Create(ctx context.Context, id model.Identity, password string, cost int) error {
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx,
		"INSERT INTO accounts (identity, password_hash) VALUES (?,?)",
		string(id), hash)
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
		return ErrIdentityExists
	}
	return err
}

// GetByIdentity fetches an account.  ErrAccountNotFound is returned when
// the identity has no account.
func (r *AccountRepo) GetByIdentity(ctx context.Context, id model.Identity) (model.Account, error) {
	var a model.Account
	var identity string
	err := r.DB.QueryRowContext(ctx,
		"SELECT identity,password_hash,created_at,updated_at FROM accounts WHERE identity=? LIMIT 1",
		string(id)).Scan(&identity, &a.PasswordHash, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return a, ErrAccountNotFound
	}
	if err != nil {
		return a, err
	}
	a.Identity = model.Identity(identity)
	return a, nil
}

// Authenticate returns the account when password matches its hash.  An
// unknown identity and a wrong password both yield ErrInvalidCredentials.
func (r *AccountRepo) Authenticate(ctx context.Context, id model.Identity, password string) (model.Account, error) {
	a, err := r.GetByIdentity(ctx, id)
	if errors.Is(err, ErrAccountNotFound) {
		return model.Account{}, ErrInvalidCredentials
	}
	if err != nil {
		return model.Account{}, err
	}
	if !utils.VerifyPassword(a.PasswordHash, password) {
		return model.Account{}, ErrInvalidCredentials
	}
	return a, nil
}
