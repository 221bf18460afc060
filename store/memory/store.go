// Package memory provides an in-process CredentialStore.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	taskAuth "github.com/MrEthical07/taskAuth"
)

// Store keeps credentials in maps guarded by a single mutex. Unique indexes
// on username and email are checked and written under the same lock, so
// concurrent Creates for the same name produce exactly one record.
type Store struct {
	mu         sync.RWMutex
	nextID     int64
	byID       map[int64]taskAuth.CredentialRecord
	byUsername map[string]int64
	byEmail    map[string]int64
	now        func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source for CreatedAt and UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns an empty Store. IDs start at 1.
func New(opts ...Option) *Store {
	s := &Store{
		byID:       make(map[int64]taskAuth.CredentialRecord),
		byUsername: make(map[string]int64),
		byEmail:    make(map[string]int64),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) FindByID(ctx context.Context, id int64) (taskAuth.CredentialRecord, error) {
	if err := ctx.Err(); err != nil {
		return taskAuth.CredentialRecord{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.byID[id]
	if !ok {
		return taskAuth.CredentialRecord{}, taskAuth.ErrRecordNotFound
	}
	return record, nil
}

func (s *Store) FindByUsername(ctx context.Context, username string) (taskAuth.CredentialRecord, error) {
	return s.findByIndex(ctx, s.byUsername, username)
}

func (s *Store) FindByEmail(ctx context.Context, email string) (taskAuth.CredentialRecord, error) {
	return s.findByIndex(ctx, s.byEmail, email)
}

func (s *Store) FindByUsernameOrEmail(ctx context.Context, username, email string) (taskAuth.CredentialRecord, error) {
	record, err := s.findByIndex(ctx, s.byUsername, username)
	if errors.Is(err, taskAuth.ErrRecordNotFound) {
		return s.findByIndex(ctx, s.byEmail, email)
	}
	return record, err
}

func (s *Store) findByIndex(ctx context.Context, index map[string]int64, key string) (taskAuth.CredentialRecord, error) {
	if err := ctx.Err(); err != nil {
		return taskAuth.CredentialRecord{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := index[key]
	if !ok {
		return taskAuth.CredentialRecord{}, taskAuth.ErrRecordNotFound
	}
	return s.byID[id], nil
}

func (s *Store) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byUsername[username]
	return ok, nil
}

func (s *Store) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byEmail[email]
	return ok, nil
}

func (s *Store) Create(ctx context.Context, input taskAuth.NewCredential) (taskAuth.CredentialRecord, error) {
	if err := ctx.Err(); err != nil {
		return taskAuth.CredentialRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byUsername[input.Username]; ok {
		return taskAuth.CredentialRecord{}, taskAuth.ErrRecordDuplicate
	}
	if _, ok := s.byEmail[input.Email]; ok {
		return taskAuth.CredentialRecord{}, taskAuth.ErrRecordDuplicate
	}

	s.nextID++
	now := s.now().UTC()
	record := taskAuth.CredentialRecord{
		ID:           s.nextID,
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: input.PasswordHash,
		Role:         input.Role,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	s.byID[record.ID] = record
	s.byUsername[record.Username] = record.ID
	s.byEmail[record.Email] = record.ID
	return record, nil
}

// Update replaces the record when record.Version matches the stored version.
// Username is immutable and is ignored.
func (s *Store) Update(ctx context.Context, record taskAuth.CredentialRecord) (taskAuth.CredentialRecord, error) {
	if err := ctx.Err(); err != nil {
		return taskAuth.CredentialRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[record.ID]
	if !ok {
		return taskAuth.CredentialRecord{}, taskAuth.ErrRecordNotFound
	}
	if current.Version != record.Version {
		return taskAuth.CredentialRecord{}, taskAuth.ErrVersionConflict
	}
	if record.Email != current.Email {
		if owner, taken := s.byEmail[record.Email]; taken && owner != record.ID {
			return taskAuth.CredentialRecord{}, taskAuth.ErrRecordDuplicate
		}
	}

	next := current
	next.Email = record.Email
	next.PasswordHash = record.PasswordHash
	next.Role = record.Role
	next.Version = current.Version + 1
	next.UpdatedAt = record.UpdatedAt
	if next.UpdatedAt.IsZero() {
		next.UpdatedAt = s.now().UTC()
	}

	if next.Email != current.Email {
		delete(s.byEmail, current.Email)
		s.byEmail[next.Email] = next.ID
	}
	s.byID[next.ID] = next
	return next, nil
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.byID[id]
	if !ok {
		return taskAuth.ErrRecordNotFound
	}
	delete(s.byID, id)
	delete(s.byUsername, record.Username)
	delete(s.byEmail, record.Email)
	return nil
}

// Len reports the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

var _ taskAuth.CredentialStore = (*Store)(nil)
