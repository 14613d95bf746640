package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nivobank/nivo/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewStore(client, 30*time.Minute), mr
}

func TestFindOrCreateByPhone_CreatesThenReuses(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	sess, created, err := store.FindOrCreateByPhone(ctx, "9876543210", "+91")
	require.NoError(t, err)
	require.True(t, created)
	require.NotEmpty(t, sess.ID)
	require.Equal(t, models.StepMobile, sess.CurrentStep)

	again, created, err := store.FindOrCreateByPhone(ctx, "9876543210", "+91")
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, sess.ID, again.ID)
}

func TestGet_MissingSession(t *testing.T) {
	store, _ := newTestStore(t)

	_, found, err := store.Get(context.Background(), "nope")
	require.NoError(t, err)
	require.False(t, found)
}

func TestGet_ExpiredSessionTreatedAsMissing(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	sess, _, err := store.FindOrCreateByPhone(ctx, "9876543210", "+91")
	require.NoError(t, err)

	store.Now = func() time.Time { return time.Now().Add(31 * time.Minute) }

	_, found, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	require.False(t, found)

	// The phone index must be cleared too, so a fresh session can start.
	store.Now = time.Now
	fresh, created, err := store.FindOrCreateByPhone(ctx, "9876543210", "+91")
	require.NoError(t, err)
	require.True(t, created)
	require.NotEqual(t, sess.ID, fresh.ID)
}

func TestUpdate_PersistsMutation(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	sess, _, err := store.FindOrCreateByPhone(ctx, "9876543210", "+91")
	require.NoError(t, err)

	updated, err := store.Update(ctx, sess.ID, func(s *models.SignupSession) error {
		s.MobileOTP = &models.OTPState{Code: "123456", ExpiresAt: time.Now().Add(5 * time.Minute)}
		s.AdvanceTo(models.StepPersonal)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, models.StepPersonal, updated.CurrentStep)

	loaded, found, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, models.StepPersonal, loaded.CurrentStep)
	require.NotNil(t, loaded.MobileOTP)
	require.Equal(t, "123456", loaded.MobileOTP.Code)
}

func TestUpdate_UnknownSession(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Update(context.Background(), "missing", func(s *models.SignupSession) error {
		return nil
	})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdate_RejectsStepDecrease(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	sess, _, err := store.FindOrCreateByPhone(ctx, "9876543210", "+91")
	require.NoError(t, err)

	_, err = store.Update(ctx, sess.ID, func(s *models.SignupSession) error {
		s.AdvanceTo(models.StepPrimaryID)
		return nil
	})
	require.NoError(t, err)

	_, err = store.Update(ctx, sess.ID, func(s *models.SignupSession) error {
		s.CurrentStep = models.StepMobile
		return nil
	})
	require.Error(t, err)

	loaded, _, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, models.StepPrimaryID, loaded.CurrentStep)
}

func TestComplete_FreesPhoneIndex(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	sess, _, err := store.FindOrCreateByPhone(ctx, "9876543210", "+91")
	require.NoError(t, err)

	require.NoError(t, store.Complete(ctx, sess.ID))

	loaded, found, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, loaded.Completed)

	fresh, created, err := store.FindOrCreateByPhone(ctx, "9876543210", "+91")
	require.NoError(t, err)
	require.True(t, created)
	require.NotEqual(t, sess.ID, fresh.ID)
}

func TestSweep_RemovesDanglingPhoneIndex(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	sess, _, err := store.FindOrCreateByPhone(ctx, "9876543210", "+91")
	require.NoError(t, err)

	// Simulate the session key being evicted by its TTL while the phone
	// index entry lingers.
	mr.Del(sessionKeyPrefix + sess.ID)

	removed, err := store.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	_, created, err := store.FindOrCreateByPhone(ctx, "9876543210", "+91")
	require.NoError(t, err)
	require.True(t, created)
}
