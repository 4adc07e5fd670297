package fakeaccountstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-gateway/accounts"
	"github.com/pkg/errors"
)

var _ accounts.Store = (*FakeAccountStore)(nil)

type record struct {
	account      *accounts.Account
	passwordHash string
	claims       []accounts.Claim
	roles        map[string]struct{}
}

// FakeAccountStore is an in-memory accounts.Store. The Err fields inject
// failures into the matching operation.
type FakeAccountStore struct {
	records   map[string]*record // account id to record
	emailIDs  map[string]string  // normalized email to account id
	usernames map[string]string  // normalized username to account id
	hasher    accounts.PasswordHasher
	lock      sync.RWMutex

	CreateErr  error
	LockoutErr error
	FindErr    error
	VerifyErr  error
	ClaimsErr  error
	RolesErr   error
}

func NewFakeAccountStore(hasher accounts.PasswordHasher) *FakeAccountStore {
	if hasher == nil {
		hasher = accounts.NewBcryptHasher(0)
	}
	return &FakeAccountStore{
		records:   make(map[string]*record),
		emailIDs:  make(map[string]string),
		usernames: make(map[string]string),
		hasher:    hasher,
	}
}

func (s *FakeAccountStore) CreateAccount(ctx context.Context, account *accounts.Account, password string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if account == nil {
		return accounts.ErrNilAccount
	}
	if s.CreateErr != nil {
		return s.CreateErr
	}

	if reasons := accounts.ValidateNewAccount(account.Email, account.Username, password); len(reasons) > 0 {
		return accounts.NewPolicyError(reasons...)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return errors.Wrap(err, "[FakeAccountStore.CreateAccount] Hash")
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	email := accounts.NormalizeEmail(account.Email)
	username := accounts.NormalizeUsername(account.Username)
	reasons := make([]string, 0)
	if _, ok := s.usernames[username]; ok {
		reasons = append(reasons, accounts.DuplicateUsernameReason(account.Username))
	}
	if _, ok := s.emailIDs[email]; ok {
		reasons = append(reasons, accounts.DuplicateEmailReason(account.Email))
	}
	if len(reasons) > 0 {
		return accounts.NewPolicyError(reasons...)
	}

	account.ID = uuid.New().String()
	account.LockoutEnabled = true
	account.CreatedAt = time.Now().UTC()

	s.records[account.ID] = &record{
		account:      account.Clone(),
		passwordHash: hash,
		roles:        make(map[string]struct{}),
	}
	s.emailIDs[email] = account.ID
	s.usernames[username] = account.ID
	return nil
}

func (s *FakeAccountStore) SetLockoutEnabled(ctx context.Context, account *accounts.Account, enabled bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.LockoutErr != nil {
		return s.LockoutErr
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	rec, err := s.recordFor(account)
	if err != nil {
		return err
	}
	rec.account.LockoutEnabled = enabled
	account.LockoutEnabled = enabled
	return nil
}

func (s *FakeAccountStore) FindByEmail(ctx context.Context, email string) (*accounts.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.FindErr != nil {
		return nil, s.FindErr
	}

	s.lock.RLock()
	defer s.lock.RUnlock()

	id, ok := s.emailIDs[accounts.NormalizeEmail(email)]
	if !ok {
		return nil, accounts.ErrAccountNotFound
	}
	return s.records[id].account.Clone(), nil
}

func (s *FakeAccountStore) VerifyPassword(ctx context.Context, account *accounts.Account, password string, trackFailures bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s.VerifyErr != nil {
		return false, s.VerifyErr
	}

	s.lock.RLock()
	rec, err := s.recordFor(account)
	var hash string
	if err == nil {
		hash = rec.passwordHash
	}
	s.lock.RUnlock()
	if err != nil {
		return false, err
	}

	ok, err := s.hasher.Verify(password, hash)
	if err != nil {
		return false, errors.Wrap(err, "[FakeAccountStore.VerifyPassword] Verify")
	}

	if !ok && trackFailures {
		s.lock.Lock()
		if rec.account.LockoutEnabled {
			rec.account.AccessFailedCount++
		}
		s.lock.Unlock()
	}
	return ok, nil
}

func (s *FakeAccountStore) GetClaims(ctx context.Context, account *accounts.Account) ([]accounts.Claim, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.ClaimsErr != nil {
		return nil, s.ClaimsErr
	}

	s.lock.RLock()
	defer s.lock.RUnlock()

	rec, err := s.recordFor(account)
	if err != nil {
		return nil, err
	}
	claims := make([]accounts.Claim, len(rec.claims))
	copy(claims, rec.claims)
	return claims, nil
}

func (s *FakeAccountStore) GetRoles(ctx context.Context, account *accounts.Account) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.RolesErr != nil {
		return nil, s.RolesErr
	}

	s.lock.RLock()
	defer s.lock.RUnlock()

	rec, err := s.recordFor(account)
	if err != nil {
		return nil, err
	}
	roles := make([]string, 0, len(rec.roles))
	for role := range rec.roles {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles, nil
}

// AddClaim attaches a claim to the account registered under email.
func (s *FakeAccountStore) AddClaim(email string, claim accounts.Claim) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	id, ok := s.emailIDs[accounts.NormalizeEmail(email)]
	if !ok {
		return accounts.ErrAccountNotFound
	}
	s.records[id].claims = append(s.records[id].claims, claim)
	return nil
}

// AddRole assigns a role to the account registered under email.
func (s *FakeAccountStore) AddRole(email, role string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	id, ok := s.emailIDs[accounts.NormalizeEmail(email)]
	if !ok {
		return accounts.ErrAccountNotFound
	}
	s.records[id].roles[role] = struct{}{}
	return nil
}

// Delete removes the account registered under email.
func (s *FakeAccountStore) Delete(email string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	key := accounts.NormalizeEmail(email)
	id, ok := s.emailIDs[key]
	if !ok {
		return accounts.ErrAccountNotFound
	}
	delete(s.usernames, accounts.NormalizeUsername(s.records[id].account.Username))
	delete(s.emailIDs, key)
	delete(s.records, id)
	return nil
}

// Count returns the number of stored accounts.
func (s *FakeAccountStore) Count() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.records)
}

// Get returns the stored copy of the account, including its lockout state.
func (s *FakeAccountStore) Get(email string) (*accounts.Account, error) {
	return s.FindByEmail(context.Background(), email)
}

func (s *FakeAccountStore) recordFor(account *accounts.Account) (*record, error) {
	if account == nil {
		return nil, accounts.ErrNilAccount
	}
	rec, ok := s.records[account.ID]
	if !ok {
		return nil, accounts.ErrAccountNotFound
	}
	return rec, nil
}
