package model

import "time"

// Account represents an identity account as stored in the `accounts`
// table.  Accounts let callers prove control of an identity: a successful
// login issues an access token whose subject is the identity.
//
// Fields:
//  Identity     – primary key; the identity this account controls.
//  PasswordHash – bcrypt hashed password.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type Account struct {
    Identity     Identity  // accounts.identity
    PasswordHash string    // accounts.password_hash
    CreatedAt    time.Time // accounts.created_at
    UpdatedAt    time.Time // accounts.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  The plain
// token is not stored; only its SHA‑256 hash.
//
// Fields:
//  ID        – primary key identifier.
//  Identity  – owner of the token.
//  TokenHash – SHA‑256 hex digest of the token value.
//  ExpiresAt – expiration timestamp of the token.
//  RevokedAt – when the token was revoked (null if still active).
//  CreatedAt – timestamp of creation.
type RefreshToken struct {
    ID        uint64     // refresh_tokens.id
    Identity  Identity   // refresh_tokens.identity
    TokenHash string     // refresh_tokens.token_hash
    ExpiresAt time.Time  // refresh_tokens.expires_at
    RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
    CreatedAt time.Time  // refresh_tokens.created_at
}
