// Package postgres is an accounts.Store backed by PostgreSQL through the pgx
// database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jrsteele09/go-auth-gateway/accounts"
	"github.com/pkg/errors"
)

const (
	uniqueViolationCode = "23505"

	emailConstraint    = "accounts_normalized_email_key"
	usernameConstraint = "accounts_normalized_username_key"
)

const (
	insertAccountQuery = `INSERT INTO accounts (id, email, normalized_email, username, normalized_username, password_hash, email_confirmed, lockout_enabled, access_failed_count, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	setLockoutQuery = `UPDATE accounts SET lockout_enabled = $2 WHERE id = $1`

	findByEmailQuery = `SELECT id, email, username, email_confirmed, lockout_enabled, access_failed_count, created_at FROM accounts WHERE normalized_email = $1`

	passwordHashQuery = `SELECT password_hash FROM accounts WHERE id = $1`

	incrementFailuresQuery = `UPDATE accounts SET access_failed_count = access_failed_count + 1 WHERE id = $1 AND lockout_enabled RETURNING access_failed_count`

	claimsQuery = `SELECT claim_type, claim_value FROM account_claims WHERE account_id = $1 ORDER BY id`

	rolesQuery = `SELECT r.name FROM roles r JOIN account_roles ar ON ar.role_id = r.id WHERE ar.account_id = $1 ORDER BY r.normalized_name`

	insertClaimQuery = `INSERT INTO account_claims (account_id, claim_type, claim_value) VALUES ($1, $2, $3)`

	upsertRoleQuery = `INSERT INTO roles (name, normalized_name) VALUES ($1, $2) ON CONFLICT (normalized_name) DO NOTHING`

	assignRoleQuery = `INSERT INTO account_roles (account_id, role_id) SELECT $1, id FROM roles WHERE normalized_name = $2 ON CONFLICT DO NOTHING`
)

var _ accounts.Store = (*Store)(nil)

// Store persists accounts, their claims and their roles.
type Store struct {
	db      *sql.DB
	hasher  accounts.PasswordHasher
	nowTime func() time.Time
}

// StoreOption defines a function type to modify the Store instance.
type StoreOption func(*Store)

// WithNowTime sets the clock used for account creation timestamps
func WithNowTime(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.nowTime = now
	}
}

// Open connects to the database identified by dsn and checks that it is reachable.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "[postgres.Open] sql.Open")
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "[postgres.Open] Ping")
	}
	return db, nil
}

func NewStore(db *sql.DB, hasher accounts.PasswordHasher, options ...StoreOption) (*Store, error) {
	if db == nil {
		return nil, errors.New("[NewStore] db is required")
	}
	if hasher == nil {
		return nil, errors.New("[NewStore] hasher is required")
	}

	s := &Store{
		db:      db,
		hasher:  hasher,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

func (s *Store) CreateAccount(ctx context.Context, account *accounts.Account, password string) error {
	if account == nil {
		return accounts.ErrNilAccount
	}
	if reasons := accounts.ValidateNewAccount(account.Email, account.Username, password); len(reasons) > 0 {
		return accounts.NewPolicyError(reasons...)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return errors.Wrap(err, "[Store.CreateAccount] Hash")
	}

	id := uuid.New().String()
	createdAt := s.nowTime().UTC()

	_, err = s.db.ExecContext(ctx, insertAccountQuery,
		id,
		account.Email,
		accounts.NormalizeEmail(account.Email),
		account.Username,
		accounts.NormalizeUsername(account.Username),
		hash,
		account.EmailConfirmed,
		true,
		0,
		createdAt,
	)
	if err != nil {
		if reason, ok := duplicateReason(err, account); ok {
			return accounts.NewPolicyError(reason)
		}
		return errors.Wrap(err, "[Store.CreateAccount] insert")
	}

	account.ID = id
	account.LockoutEnabled = true
	account.AccessFailedCount = 0
	account.CreatedAt = createdAt
	return nil
}

func (s *Store) SetLockoutEnabled(ctx context.Context, account *accounts.Account, enabled bool) error {
	if account == nil {
		return accounts.ErrNilAccount
	}

	res, err := s.db.ExecContext(ctx, setLockoutQuery, account.ID, enabled)
	if err != nil {
		return errors.Wrap(err, "[Store.SetLockoutEnabled] update")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "[Store.SetLockoutEnabled] RowsAffected")
	}
	if n == 0 {
		return accounts.ErrAccountNotFound
	}

	account.LockoutEnabled = enabled
	return nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*accounts.Account, error) {
	account := &accounts.Account{}
	err := s.db.QueryRowContext(ctx, findByEmailQuery, accounts.NormalizeEmail(email)).Scan(
		&account.ID,
		&account.Email,
		&account.Username,
		&account.EmailConfirmed,
		&account.LockoutEnabled,
		&account.AccessFailedCount,
		&account.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, accounts.ErrAccountNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "[Store.FindByEmail] select")
	}
	return account, nil
}

func (s *Store) VerifyPassword(ctx context.Context, account *accounts.Account, password string, trackFailures bool) (bool, error) {
	if account == nil {
		return false, accounts.ErrNilAccount
	}

	var hash string
	err := s.db.QueryRowContext(ctx, passwordHashQuery, account.ID).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return false, accounts.ErrAccountNotFound
	}
	if err != nil {
		return false, errors.Wrap(err, "[Store.VerifyPassword] select")
	}

	ok, err := s.hasher.Verify(password, hash)
	if err != nil {
		return false, errors.Wrap(err, "[Store.VerifyPassword] Verify")
	}
	if ok || !trackFailures {
		return ok, nil
	}

	var failures int
	err = s.db.QueryRowContext(ctx, incrementFailuresQuery, account.ID).Scan(&failures)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// lockout disabled, nothing tracked
	case err != nil:
		return false, errors.Wrap(err, "[Store.VerifyPassword] increment failures")
	default:
		account.AccessFailedCount = failures
	}
	return false, nil
}

func (s *Store) GetClaims(ctx context.Context, account *accounts.Account) ([]accounts.Claim, error) {
	if account == nil {
		return nil, accounts.ErrNilAccount
	}

	rows, err := s.db.QueryContext(ctx, claimsQuery, account.ID)
	if err != nil {
		return nil, errors.Wrap(err, "[Store.GetClaims] select")
	}
	defer rows.Close()

	claims := make([]accounts.Claim, 0)
	for rows.Next() {
		var c accounts.Claim
		if err := rows.Scan(&c.Type, &c.Value); err != nil {
			return nil, errors.Wrap(err, "[Store.GetClaims] Scan")
		}
		claims = append(claims, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "[Store.GetClaims] rows")
	}
	return claims, nil
}

func (s *Store) GetRoles(ctx context.Context, account *accounts.Account) ([]string, error) {
	if account == nil {
		return nil, accounts.ErrNilAccount
	}

	rows, err := s.db.QueryContext(ctx, rolesQuery, account.ID)
	if err != nil {
		return nil, errors.Wrap(err, "[Store.GetRoles] select")
	}
	defer rows.Close()

	roles := make([]string, 0)
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, errors.Wrap(err, "[Store.GetRoles] Scan")
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "[Store.GetRoles] rows")
	}
	return roles, nil
}

// AddClaim attaches a claim to an existing account.
func (s *Store) AddClaim(ctx context.Context, account *accounts.Account, claim accounts.Claim) error {
	if account == nil {
		return accounts.ErrNilAccount
	}
	if _, err := s.db.ExecContext(ctx, insertClaimQuery, account.ID, claim.Type, claim.Value); err != nil {
		return errors.Wrap(err, "[Store.AddClaim] insert")
	}
	return nil
}

// AddRole creates the role if needed and assigns it to the account.
func (s *Store) AddRole(ctx context.Context, account *accounts.Account, role string) error {
	if account == nil {
		return accounts.ErrNilAccount
	}
	role = strings.TrimSpace(role)
	if role == "" {
		return errors.New("[Store.AddRole] role is required")
	}
	normalized := normalizeRole(role)

	return withTx(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, upsertRoleQuery, role, normalized); err != nil {
			return errors.Wrap(err, "[Store.AddRole] upsert role")
		}
		if _, err := tx.ExecContext(ctx, assignRoleQuery, account.ID, normalized); err != nil {
			return errors.Wrap(err, "[Store.AddRole] assign role")
		}
		return nil
	})
}

func normalizeRole(role string) string {
	return strings.ToUpper(strings.TrimSpace(role))
}

func duplicateReason(err error, account *accounts.Account) (string, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolationCode {
		return "", false
	}
	switch pgErr.ConstraintName {
	case emailConstraint:
		return accounts.DuplicateEmailReason(account.Email), true
	case usernameConstraint:
		return accounts.DuplicateUsernameReason(account.Username), true
	}
	return "", false
}

// withTx runs fn inside a transaction, committing on success and rolling
// back on error or panic.
func withTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context, tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "[withTx] BeginTx")
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	return fn(ctx, tx)
}
