// Package redisstore is an accounts.Store backed by Redis.
//
// Layout, under a configurable prefix:
//
//	<prefix>:account:<id>          hash of account fields and the password hash
//	<prefix>:account:<id>:claims   list of JSON-encoded claims
//	<prefix>:account:<id>:roles    set of role names
//	<prefix>:email:<normalized>    account id, created with SETNX
//	<prefix>:username:<normalized> account id, created with SETNX
package redisstore

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-gateway/accounts"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "authgw"

const (
	fieldID                = "id"
	fieldEmail             = "email"
	fieldUsername          = "username"
	fieldPasswordHash      = "password_hash"
	fieldEmailConfirmed    = "email_confirmed"
	fieldLockoutEnabled    = "lockout_enabled"
	fieldAccessFailedCount = "access_failed_count"
	fieldCreatedAt         = "created_at"
)

// Increments the failure counter only while lockout is enabled. Returns -1
// when the account is missing and -2 when lockout is disabled.
const trackFailureScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
if redis.call("HGET", KEYS[1], "lockout_enabled") ~= "1" then
  return -2
end
return redis.call("HINCRBY", KEYS[1], "access_failed_count", 1)
`

var trackFailureLua = redis.NewScript(trackFailureScript)

var _ accounts.Store = (*Store)(nil)

type Store struct {
	redis   redis.UniversalClient
	hasher  accounts.PasswordHasher
	prefix  string
	nowTime func() time.Time
}

// StoreOption defines a function type to modify the Store instance.
type StoreOption func(*Store)

// WithKeyPrefix namespaces every key written by the store
func WithKeyPrefix(prefix string) StoreOption {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithNowTime sets the clock used for account creation timestamps
func WithNowTime(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.nowTime = now
	}
}

// Open creates a client and checks that the server answers.
func Open(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "[redisstore.Open] Ping")
	}
	return client, nil
}

func NewStore(client redis.UniversalClient, hasher accounts.PasswordHasher, options ...StoreOption) (*Store, error) {
	if client == nil {
		return nil, errors.New("[NewStore] redis client is required")
	}
	if hasher == nil {
		return nil, errors.New("[NewStore] hasher is required")
	}

	s := &Store{
		redis:   client,
		hasher:  hasher,
		prefix:  defaultKeyPrefix,
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
	usernameKey := s.usernameKey(account.Username)
	emailKey := s.emailKey(account.Email)

	usernameClaimed, err := s.redis.SetNX(ctx, usernameKey, id, 0).Result()
	if err != nil {
		return errors.Wrap(err, "[Store.CreateAccount] SetNX username")
	}
	emailClaimed, err := s.redis.SetNX(ctx, emailKey, id, 0).Result()
	if err != nil {
		s.release(ctx, usernameClaimed, usernameKey)
		return errors.Wrap(err, "[Store.CreateAccount] SetNX email")
	}

	reasons := make([]string, 0)
	if !usernameClaimed {
		reasons = append(reasons, accounts.DuplicateUsernameReason(account.Username))
	}
	if !emailClaimed {
		reasons = append(reasons, accounts.DuplicateEmailReason(account.Email))
	}
	if len(reasons) > 0 {
		s.release(ctx, usernameClaimed, usernameKey)
		s.release(ctx, emailClaimed, emailKey)
		return accounts.NewPolicyError(reasons...)
	}

	createdAt := s.nowTime().UTC()
	err = s.redis.HSet(ctx, s.accountKey(id),
		fieldID, id,
		fieldEmail, account.Email,
		fieldUsername, account.Username,
		fieldPasswordHash, hash,
		fieldEmailConfirmed, formatBool(account.EmailConfirmed),
		fieldLockoutEnabled, formatBool(true),
		fieldAccessFailedCount, 0,
		fieldCreatedAt, createdAt.Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		s.release(ctx, true, usernameKey)
		s.release(ctx, true, emailKey)
		return errors.Wrap(err, "[Store.CreateAccount] HSet")
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

	key := s.accountKey(account.ID)
	exists, err := s.redis.Exists(ctx, key).Result()
	if err != nil {
		return errors.Wrap(err, "[Store.SetLockoutEnabled] Exists")
	}
	if exists == 0 {
		return accounts.ErrAccountNotFound
	}
	if err := s.redis.HSet(ctx, key, fieldLockoutEnabled, formatBool(enabled)).Err(); err != nil {
		return errors.Wrap(err, "[Store.SetLockoutEnabled] HSet")
	}

	account.LockoutEnabled = enabled
	return nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*accounts.Account, error) {
	id, err := s.redis.Get(ctx, s.emailKey(email)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, accounts.ErrAccountNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "[Store.FindByEmail] Get")
	}

	fields, err := s.redis.HGetAll(ctx, s.accountKey(id)).Result()
	if err != nil {
		return nil, errors.Wrap(err, "[Store.FindByEmail] HGetAll")
	}
	if len(fields) == 0 {
		return nil, accounts.ErrAccountNotFound
	}
	return accountFromHash(fields)
}

func (s *Store) VerifyPassword(ctx context.Context, account *accounts.Account, password string, trackFailures bool) (bool, error) {
	if account == nil {
		return false, accounts.ErrNilAccount
	}

	key := s.accountKey(account.ID)
	hash, err := s.redis.HGet(ctx, key, fieldPasswordHash).Result()
	if errors.Is(err, redis.Nil) {
		return false, accounts.ErrAccountNotFound
	}
	if err != nil {
		return false, errors.Wrap(err, "[Store.VerifyPassword] HGet")
	}

	ok, err := s.hasher.Verify(password, hash)
	if err != nil {
		return false, errors.Wrap(err, "[Store.VerifyPassword] Verify")
	}
	if ok || !trackFailures {
		return ok, nil
	}

	failures, err := trackFailureLua.Run(ctx, s.redis, []string{key}).Int64()
	if err != nil {
		return false, errors.Wrap(err, "[Store.VerifyPassword] track failure")
	}
	switch {
	case failures == -1:
		return false, accounts.ErrAccountNotFound
	case failures >= 0:
		account.AccessFailedCount = int(failures)
	}
	return false, nil
}

func (s *Store) GetClaims(ctx context.Context, account *accounts.Account) ([]accounts.Claim, error) {
	if account == nil {
		return nil, accounts.ErrNilAccount
	}

	values, err := s.redis.LRange(ctx, s.claimsKey(account.ID), 0, -1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "[Store.GetClaims] LRange")
	}

	claims := make([]accounts.Claim, 0, len(values))
	for _, v := range values {
		var c accounts.Claim
		if err := json.Unmarshal([]byte(v), &c); err != nil {
			return nil, errors.Wrap(err, "[Store.GetClaims] Unmarshal")
		}
		claims = append(claims, c)
	}
	return claims, nil
}

func (s *Store) GetRoles(ctx context.Context, account *accounts.Account) ([]string, error) {
	if account == nil {
		return nil, accounts.ErrNilAccount
	}

	roles, err := s.redis.SMembers(ctx, s.rolesKey(account.ID)).Result()
	if err != nil {
		return nil, errors.Wrap(err, "[Store.GetRoles] SMembers")
	}
	sort.Strings(roles)
	return roles, nil
}

// AddClaim appends a claim to the account's claim list.
func (s *Store) AddClaim(ctx context.Context, account *accounts.Account, claim accounts.Claim) error {
	if account == nil {
		return accounts.ErrNilAccount
	}

	data, err := json.Marshal(claim)
	if err != nil {
		return errors.Wrap(err, "[Store.AddClaim] Marshal")
	}
	if err := s.redis.RPush(ctx, s.claimsKey(account.ID), data).Err(); err != nil {
		return errors.Wrap(err, "[Store.AddClaim] RPush")
	}
	return nil
}

// AddRole adds a role to the account's role set.
func (s *Store) AddRole(ctx context.Context, account *accounts.Account, role string) error {
	if account == nil {
		return accounts.ErrNilAccount
	}
	role = strings.TrimSpace(role)
	if role == "" {
		return errors.New("[Store.AddRole] role is required")
	}
	if err := s.redis.SAdd(ctx, s.rolesKey(account.ID), role).Err(); err != nil {
		return errors.Wrap(err, "[Store.AddRole] SAdd")
	}
	return nil
}

func (s *Store) release(ctx context.Context, claimed bool, key string) {
	if claimed {
		_ = s.redis.Del(ctx, key).Err()
	}
}

func (s *Store) accountKey(id string) string {
	return s.prefix + ":account:" + id
}

func (s *Store) claimsKey(id string) string {
	return s.accountKey(id) + ":claims"
}

func (s *Store) rolesKey(id string) string {
	return s.accountKey(id) + ":roles"
}

func (s *Store) emailKey(email string) string {
	return s.prefix + ":email:" + accounts.NormalizeEmail(email)
}

func (s *Store) usernameKey(username string) string {
	return s.prefix + ":username:" + accounts.NormalizeUsername(username)
}

func accountFromHash(fields map[string]string) (*accounts.Account, error) {
	failures, err := strconv.Atoi(fields[fieldAccessFailedCount])
	if err != nil {
		return nil, errors.Wrap(err, "[accountFromHash] access_failed_count")
	}
	createdAt, err := time.Parse(time.RFC3339Nano, fields[fieldCreatedAt])
	if err != nil {
		return nil, errors.Wrap(err, "[accountFromHash] created_at")
	}

	return &accounts.Account{
		ID:                fields[fieldID],
		Email:             fields[fieldEmail],
		Username:          fields[fieldUsername],
		EmailConfirmed:    fields[fieldEmailConfirmed] == "1",
		LockoutEnabled:    fields[fieldLockoutEnabled] == "1",
		AccessFailedCount: failures,
		CreatedAt:         createdAt,
	}, nil
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
