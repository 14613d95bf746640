package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nivobank/nivo/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "signup:session:"
	phoneKeyPrefix   = "signup:phone:"

	// maxUpdateRetries bounds the optimistic-lock retry loop. A handful of
	// retries is plenty for double-submits from a slow client.
	maxUpdateRetries = 5
)

var (
	// ErrNotFound is returned when no live session exists for the id.
	ErrNotFound = errors.New("session not found")

	// ErrConflict is returned when concurrent updates kept invalidating the
	// optimistic lock past the retry budget.
	ErrConflict = errors.New("session was modified concurrently")
)

// Store keeps in-progress signup sessions in Redis, keyed by an opaque
// UUID. Session keys carry a TTL matching the session's expiry, and a
// phone index key enforces at most one live session per phone number.
type Store struct {
	client *redis.Client
	ttl    time.Duration

	// Now is injectable for expiry tests.
	Now func() time.Time
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{
		client: client,
		ttl:    ttl,
		Now:    time.Now,
	}
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

func phoneKey(phone string) string {
	return phoneKeyPrefix + phone
}

// FindOrCreateByPhone returns the live, incomplete session for phone if one
// exists, otherwise creates a fresh one. The boolean reports creation.
func (s *Store) FindOrCreateByPhone(ctx context.Context, phone, countryCode string) (*models.SignupSession, bool, error) {
	id, err := s.client.Get(ctx, phoneKey(phone)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, false, err
	}

	if err == nil {
		sess, found, getErr := s.Get(ctx, id)
		if getErr != nil {
			return nil, false, getErr
		}
		if found && !sess.Completed {
			return sess, false, nil
		}
		// Dangling index entry; fall through and start fresh.
		s.client.Del(ctx, phoneKey(phone))
	}

	now := s.Now()
	sess := &models.SignupSession{
		ID:          uuid.NewString(),
		Phone:       phone,
		CountryCode: countryCode,
		CurrentStep: models.StepMobile,
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return nil, false, err
	}

	// SetNX on the phone index decides the winner between concurrent
	// creates for the same phone.
	ok, err := s.client.SetNX(ctx, phoneKey(phone), sess.ID, s.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		winnerID, err := s.client.Get(ctx, phoneKey(phone)).Result()
		if err != nil {
			return nil, false, err
		}
		winner, found, err := s.Get(ctx, winnerID)
		if err != nil {
			return nil, false, err
		}
		if found {
			return winner, false, nil
		}
		return nil, false, ErrNotFound
	}

	if err := s.client.Set(ctx, sessionKey(sess.ID), data, s.ttl).Err(); err != nil {
		return nil, false, err
	}

	return sess, true, nil
}

// Get loads a session by id. Expired sessions are treated as missing even
// if the key has not been evicted yet.
func (s *Store) Get(ctx context.Context, id string) (*models.SignupSession, bool, error) {
	data, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var sess models.SignupSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, false, err
	}

	if s.Now().After(sess.ExpiresAt) {
		s.client.Del(ctx, sessionKey(id), phoneKey(sess.Phone))
		return nil, false, nil
	}

	return &sess, true, nil
}

// Update applies mutate inside an atomic read-modify-write. The WATCH on
// the session key makes concurrent writers lose and retry, so two
// overlapping OTP confirms cannot both count against the same snapshot.
func (s *Store) Update(ctx context.Context, id string, mutate func(sess *models.SignupSession) error) (*models.SignupSession, error) {
	key := sessionKey(id)

	var updated *models.SignupSession

	txFn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var sess models.SignupSession
		if err := json.Unmarshal(data, &sess); err != nil {
			return err
		}

		if s.Now().After(sess.ExpiresAt) {
			return ErrNotFound
		}

		prevStep := sess.CurrentStep

		if err := mutate(&sess); err != nil {
			return err
		}

		if sess.CurrentStep < prevStep {
			return fmt.Errorf("session %s: step would decrease from %d to %d", id, prevStep, sess.CurrentStep)
		}

		sess.UpdatedAt = s.Now()

		out, err := json.Marshal(&sess)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, redis.KeepTTL)
			return nil
		})
		if err != nil {
			return err
		}

		updated = &sess
		return nil
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := s.client.Watch(ctx, txFn, key)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}

	return nil, ErrConflict
}

// Complete marks the session as terminally finished and frees the phone
// index so that phone number can sign up again in the future.
func (s *Store) Complete(ctx context.Context, id string) error {
	sess, err := s.Update(ctx, id, func(sess *models.SignupSession) error {
		sess.Completed = true
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		// The session lapsed after provisioning committed; its index entry
		// is gone or will be swept, so there is nothing left to retire.
		return nil
	}
	if err != nil {
		return err
	}

	return s.client.Del(ctx, phoneKey(sess.Phone)).Err()
}

// Delete removes a session and its phone index entry.
func (s *Store) Delete(ctx context.Context, id string) error {
	sess, found, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	return s.client.Del(ctx, sessionKey(id), phoneKey(sess.Phone)).Err()
}

// Sweep scans the phone index and removes entries whose session key has
// already expired. Session keys themselves are evicted by their TTL; this
// keeps the index from pointing at nothing in the meantime.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	var removed int

	iter := s.client.Scan(ctx, 0, phoneKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		indexKey := iter.Val()

		id, err := s.client.Get(ctx, indexKey).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return removed, err
		}

		_, found, err := s.Get(ctx, id)
		if err != nil {
			return removed, err
		}
		if !found {
			if err := s.client.Del(ctx, indexKey).Err(); err != nil {
				return removed, err
			}
			removed++
		}
	}

	return removed, iter.Err()
}
