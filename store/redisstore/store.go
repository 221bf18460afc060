// Package redisstore implements CredentialStore on Redis.
//
// Each account is a hash at {prefix}:cred:{id} with a "version" field and a
// "data" field holding the JSON-encoded record. Unique indexes are plain
// string keys {prefix}:uname:{username} and {prefix}:email:{email} whose
// value is the account id. Lua scripts check and write the indexes together
// with the record so uniqueness and version checks are atomic.
//
// Redis errors are returned unwrapped.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	taskAuth "github.com/MrEthical07/taskAuth"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix is the key namespace used when NewStore gets "".
const DefaultPrefix = "taskauth"

const (
	createStatusDuplicate int64 = 0
	createStatusCreated   int64 = 1
)

const (
	updateStatusNotFound  int64 = 0
	updateStatusConflict  int64 = 1
	updateStatusDuplicate int64 = 2
	updateStatusUpdated   int64 = 3
)

const deleteStatusNotFound int64 = 0

// KEYS: record, username index, email index
// ARGV: id, data
const createScript = `
if redis.call("EXISTS", KEYS[2]) == 1 or redis.call("EXISTS", KEYS[3]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], "version", "1", "data", ARGV[2])
redis.call("SET", KEYS[2], ARGV[1])
redis.call("SET", KEYS[3], ARGV[1])
return 1
`

// KEYS: record, current email index, next email index
// ARGV: id, expected version, next version, data
const updateScript = `
local current = redis.call("HGET", KEYS[1], "version")
if not current then
  return 0
end
if current ~= ARGV[2] then
  return 1
end
if KEYS[2] ~= KEYS[3] then
  local owner = redis.call("GET", KEYS[3])
  if owner and owner ~= ARGV[1] then
    return 2
  end
  redis.call("DEL", KEYS[2])
  redis.call("SET", KEYS[3], ARGV[1])
end
redis.call("HSET", KEYS[1], "version", ARGV[3], "data", ARGV[4])
return 3
`

// KEYS: record, username index, email index
// ARGV: expected version
const deleteScript = `
local current = redis.call("HGET", KEYS[1], "version")
if not current then
  return 0
end
if current ~= ARGV[1] then
  return -1
end
redis.call("DEL", KEYS[1], KEYS[2], KEYS[3])
return 1
`

var (
	createLua = redis.NewScript(createScript)
	updateLua = redis.NewScript(updateScript)
	deleteLua = redis.NewScript(deleteScript)
)

// maxDeleteAttempts bounds retries when a concurrent Update moves the version
// between Delete's read and its scripted delete.
const maxDeleteAttempts = 3

// ErrCorruptRecord is returned when a stored record cannot be decoded.
var ErrCorruptRecord = errors.New("redisstore: corrupt credential record")

// Store is a Redis-backed CredentialStore.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewStore returns a Store using client under the given key prefix.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{redis: client, prefix: prefix, now: time.Now}
}

// WithClock returns s with a different time source for timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *Store) recordKey(id int64) string {
	return s.prefix + ":cred:" + strconv.FormatInt(id, 10)
}

func (s *Store) usernameKey(username string) string {
	return s.prefix + ":uname:" + username
}

func (s *Store) emailKey(email string) string {
	return s.prefix + ":email:" + email
}

func (s *Store) sequenceKey() string {
	return s.prefix + ":cred:seq"
}

// record is the stored JSON shape.
type record struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func encode(r taskAuth.CredentialRecord) ([]byte, error) {
	return json.Marshal(record{
		ID:           r.ID,
		Username:     r.Username,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Role:         string(r.Role),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	})
}

func decode(data string, version string) (taskAuth.CredentialRecord, error) {
	var r record
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return taskAuth.CredentialRecord{}, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	v, err := strconv.ParseInt(version, 10, 64)
	if err != nil {
		return taskAuth.CredentialRecord{}, fmt.Errorf("%w: version %q", ErrCorruptRecord, version)
	}
	return taskAuth.CredentialRecord{
		ID:           r.ID,
		Username:     r.Username,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Role:         taskAuth.Role(r.Role),
		Version:      v,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}, nil
}

func (s *Store) FindByID(ctx context.Context, id int64) (taskAuth.CredentialRecord, error) {
	fields, err := s.redis.HMGet(ctx, s.recordKey(id), "version", "data").Result()
	if err != nil {
		return taskAuth.CredentialRecord{}, err
	}
	version, _ := fields[0].(string)
	data, _ := fields[1].(string)
	if version == "" || data == "" {
		return taskAuth.CredentialRecord{}, taskAuth.ErrRecordNotFound
	}
	return decode(data, version)
}

func (s *Store) FindByUsername(ctx context.Context, username string) (taskAuth.CredentialRecord, error) {
	return s.findByIndex(ctx, s.usernameKey(username))
}

func (s *Store) FindByEmail(ctx context.Context, email string) (taskAuth.CredentialRecord, error) {
	return s.findByIndex(ctx, s.emailKey(email))
}

func (s *Store) FindByUsernameOrEmail(ctx context.Context, username, email string) (taskAuth.CredentialRecord, error) {
	ids, err := s.redis.MGet(ctx, s.usernameKey(username), s.emailKey(email)).Result()
	if err != nil {
		return taskAuth.CredentialRecord{}, err
	}
	for _, raw := range ids {
		v, ok := raw.(string)
		if !ok {
			continue
		}
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return taskAuth.CredentialRecord{}, fmt.Errorf("%w: index value %q", ErrCorruptRecord, v)
		}
		return s.FindByID(ctx, id)
	}
	return taskAuth.CredentialRecord{}, taskAuth.ErrRecordNotFound
}

func (s *Store) findByIndex(ctx context.Context, key string) (taskAuth.CredentialRecord, error) {
	id, err := s.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return taskAuth.CredentialRecord{}, taskAuth.ErrRecordNotFound
		}
		return taskAuth.CredentialRecord{}, err
	}
	return s.FindByID(ctx, id)
}

func (s *Store) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.usernameKey(username)).Result()
	return n == 1, err
}

func (s *Store) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.emailKey(email)).Result()
	return n == 1, err
}

// Create allocates an id from a counter and writes the record and both
// indexes in one script. A rejected Create consumes an id.
func (s *Store) Create(ctx context.Context, input taskAuth.NewCredential) (taskAuth.CredentialRecord, error) {
	id, err := s.redis.Incr(ctx, s.sequenceKey()).Result()
	if err != nil {
		return taskAuth.CredentialRecord{}, err
	}

	now := s.now().UTC()
	rec := taskAuth.CredentialRecord{
		ID:           id,
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: input.PasswordHash,
		Role:         input.Role,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	data, err := encode(rec)
	if err != nil {
		return taskAuth.CredentialRecord{}, err
	}

	status, err := createLua.Run(
		ctx,
		s.redis,
		[]string{s.recordKey(id), s.usernameKey(input.Username), s.emailKey(input.Email)},
		id,
		data,
	).Int64()
	if err != nil {
		return taskAuth.CredentialRecord{}, err
	}
	if status == createStatusDuplicate {
		return taskAuth.CredentialRecord{}, taskAuth.ErrRecordDuplicate
	}
	return rec, nil
}

// Update writes rec when the stored version equals rec.Version. Username is
// immutable; the stored username is kept.
func (s *Store) Update(ctx context.Context, rec taskAuth.CredentialRecord) (taskAuth.CredentialRecord, error) {
	current, err := s.FindByID(ctx, rec.ID)
	if err != nil {
		return taskAuth.CredentialRecord{}, err
	}
	if current.Version != rec.Version {
		return taskAuth.CredentialRecord{}, taskAuth.ErrVersionConflict
	}

	next := rec
	next.Username = current.Username
	next.CreatedAt = current.CreatedAt
	next.Version = current.Version + 1
	if next.UpdatedAt.IsZero() {
		next.UpdatedAt = s.now().UTC()
	}
	data, err := encode(next)
	if err != nil {
		return taskAuth.CredentialRecord{}, err
	}

	status, err := updateLua.Run(
		ctx,
		s.redis,
		[]string{s.recordKey(rec.ID), s.emailKey(current.Email), s.emailKey(next.Email)},
		rec.ID,
		strconv.FormatInt(rec.Version, 10),
		strconv.FormatInt(next.Version, 10),
		data,
	).Int64()
	if err != nil {
		return taskAuth.CredentialRecord{}, err
	}

	switch status {
	case updateStatusUpdated:
		return next, nil
	case updateStatusNotFound:
		return taskAuth.CredentialRecord{}, taskAuth.ErrRecordNotFound
	case updateStatusConflict:
		return taskAuth.CredentialRecord{}, taskAuth.ErrVersionConflict
	case updateStatusDuplicate:
		return taskAuth.CredentialRecord{}, taskAuth.ErrRecordDuplicate
	default:
		return taskAuth.CredentialRecord{}, fmt.Errorf("redisstore: unexpected update status %d", status)
	}
}

// Delete removes the record and its indexes.
func (s *Store) Delete(ctx context.Context, id int64) error {
	for attempt := 0; attempt < maxDeleteAttempts; attempt++ {
		current, err := s.FindByID(ctx, id)
		if err != nil {
			return err
		}

		status, err := deleteLua.Run(
			ctx,
			s.redis,
			[]string{s.recordKey(id), s.usernameKey(current.Username), s.emailKey(current.Email)},
			strconv.FormatInt(current.Version, 10),
		).Int64()
		if err != nil {
			return err
		}
		switch {
		case status == deleteStatusNotFound:
			return taskAuth.ErrRecordNotFound
		case status > 0:
			return nil
		}
	}
	return taskAuth.ErrVersionConflict
}

// Ping reports round-trip latency to Redis.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

var _ taskAuth.CredentialStore = (*Store)(nil)
