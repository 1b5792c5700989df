// Package session stores the revocable session records behind issued tokens
// in Redis, shared by every service instance. Signature and expiry checks
// are local to each instance; this store exists so revocation decided on one
// instance is visible to all of them.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound is returned when the session does not exist, either
	// because it was never saved or because its key expired.
	ErrNotFound = errors.New("session not found")
	// ErrUnavailable wraps any Redis transport failure.
	ErrUnavailable = errors.New("session store unavailable")
	// ErrCorrupt is returned when a stored session blob cannot be decoded.
	ErrCorrupt = errors.New("session record corrupt")
)

// Revocation is idempotent and must not disturb the key's TTL: the revoked
// record has to outlive the tokens derived from it so validation keeps
// answering "revoked" rather than "gone".
const revokeScript = `
local existed = redis.call("EXISTS", KEYS[1])
if existed == 1 then
  redis.call("HSET", KEYS[1], "revoked", "1")
end
return existed
`

var revokeLua = redis.NewScript(revokeScript)

// Store reads and writes sessions as Redis hashes. Keys carry the session's
// own expiry, so expired sessions vanish without explicit cleanup. A
// per-identity set indexes live sessions for revoke-all.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

func NewStore(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "auth"
	}
	return &Store{redis: client, prefix: prefix}
}

// Save persists the session with a TTL matching its expiry and registers it
// in the owner's index set.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("%w: session already expired", ErrCorrupt)
	}

	key := s.sessionKey(sess.ID)
	index := s.identityKey(sess.IdentityID)

	pipe := s.redis.TxPipeline()
	pipe.HSet(ctx, key,
		"identity", sess.IdentityID,
		"role", sess.Role,
		"iat", sess.IssuedAt.Unix(),
		"exp", sess.ExpiresAt.Unix(),
		"revoked", boolField(sess.Revoked),
	)
	pipe.ExpireAt(ctx, key, sess.ExpiresAt)
	pipe.SAdd(ctx, index, sess.ID)
	pipe.Expire(ctx, index, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Get loads a session by id. Missing keys return [ErrNotFound].
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	fields, err := s.redis.HGetAll(ctx, s.sessionKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	iat, err1 := strconv.ParseInt(fields["iat"], 10, 64)
	exp, err2 := strconv.ParseInt(fields["exp"], 10, 64)
	if err1 != nil || err2 != nil || fields["identity"] == "" {
		return nil, ErrCorrupt
	}

	return &Session{
		ID:         id,
		IdentityID: fields["identity"],
		Role:       fields["role"],
		IssuedAt:   time.Unix(iat, 0),
		ExpiresAt:  time.Unix(exp, 0),
		Revoked:    fields["revoked"] == "1",
	}, nil
}

// Revoke marks the session revoked. Revoking a missing or already-revoked
// session is a no-op success.
func (s *Store) Revoke(ctx context.Context, id string) error {
	if err := revokeLua.Run(ctx, s.redis, []string{s.sessionKey(id)}).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// RevokeAllForIdentity revokes every live session of the identity and
// returns how many records it touched.
func (s *Store) RevokeAllForIdentity(ctx context.Context, identityID string) (int, error) {
	ids, err := s.redis.SMembers(ctx, s.identityKey(identityID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	revoked := 0
	for _, id := range ids {
		existed, err := revokeLua.Run(ctx, s.redis, []string{s.sessionKey(id)}).Int64()
		if err != nil {
			return revoked, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if existed == 1 {
			revoked++
		}
	}
	return revoked, nil
}

func (s *Store) sessionKey(id string) string {
	return s.prefix + ":sess:" + id
}

func (s *Store) identityKey(identityID string) string {
	return s.prefix + ":uid:" + identityID
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
