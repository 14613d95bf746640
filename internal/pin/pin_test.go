package pin

import (
	"database/sql"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nivobank/nivo/internal/models"
	"github.com/stretchr/testify/require"
)

// stubUserRepo records pin-state writes in memory.
type stubUserRepo struct {
	attempts    int
	lockedUntil sql.NullTime
	pinHash     string
}

func (r *stubUserRepo) Insert(user *models.User, tx *sqlx.Tx) (string, error) { return "", nil }
func (r *stubUserRepo) GetOne(id string) (*models.User, bool, error)          { return nil, false, nil }
func (r *stubUserRepo) GetByPhone(phone string) (*models.User, bool, error)   { return nil, false, nil }
func (r *stubUserRepo) HandleExists(handle string) (bool, error)              { return false, nil }
func (r *stubUserRepo) ChangeProfilePicture(id, image string) error           { return nil }

func (r *stubUserRepo) UpdatePin(id, pinHash string) error {
	r.pinHash = pinHash
	r.attempts = 0
	r.lockedUntil = sql.NullTime{}
	return nil
}

func (r *stubUserRepo) RecordPinFailure(id string, attempts int, lockedUntil sql.NullTime) error {
	r.attempts = attempts
	r.lockedUntil = lockedUntil
	return nil
}

func (r *stubUserRepo) ResetPinFailures(id string) error {
	r.attempts = 0
	r.lockedUntil = sql.NullTime{}
	return nil
}

func newTestSecurity(t *testing.T) (*Security, *stubUserRepo, *models.User) {
	t.Helper()

	repo := &stubUserRepo{}
	security := NewSecurity(repo)

	hash, err := security.Hash("482917")
	require.NoError(t, err)

	user := &models.User{ID: "user-1", PinHash: hash}
	return security, repo, user
}

func TestHash_RejectsBadFormat(t *testing.T) {
	security := NewSecurity(&stubUserRepo{})

	for _, bad := range []string{"", "12345", "1234567", "12a456", "  4829"} {
		_, err := security.Hash(bad)
		require.ErrorIs(t, err, ErrInvalidFormat, "pin %q", bad)
	}
}

func TestHash_NeverStoresPlaintext(t *testing.T) {
	security := NewSecurity(&stubUserRepo{})

	hash, err := security.Hash("482917")
	require.NoError(t, err)
	require.NotEqual(t, "482917", hash)
	require.NotContains(t, hash, "482917")
}

func TestVerify_CorrectPin(t *testing.T) {
	security, _, user := newTestSecurity(t)

	result, err := security.Verify(user, "482917")
	require.NoError(t, err)
	require.Equal(t, StatusOk, result.Status)
}

func TestVerify_WrongPinCountsAttempts(t *testing.T) {
	security, repo, user := newTestSecurity(t)

	result, err := security.Verify(user, "000001")
	require.NoError(t, err)
	require.Equal(t, StatusWrong, result.Status)
	require.Equal(t, 2, result.AttemptsLeft)
	require.Equal(t, 1, repo.attempts)
	require.False(t, repo.lockedUntil.Valid)
}

func TestVerify_LockoutAfterThreeFailures(t *testing.T) {
	security, repo, user := newTestSecurity(t)

	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	security.Now = func() time.Time { return start }

	for i := 0; i < MaxAttempts; i++ {
		result, err := security.Verify(user, "000001")
		require.NoError(t, err)
		require.Equal(t, StatusWrong, result.Status)
	}

	require.True(t, repo.lockedUntil.Valid)
	require.Equal(t, start.Add(LockoutDuration), repo.lockedUntil.Time)

	// Locked: even the correct PIN is refused.
	result, err := security.Verify(user, "482917")
	require.NoError(t, err)
	require.Equal(t, StatusLocked, result.Status)
	require.Equal(t, start.Add(LockoutDuration), result.LockedUntil)

	// One second short of expiry is still locked.
	security.Now = func() time.Time { return start.Add(LockoutDuration - time.Second) }
	result, err = security.Verify(user, "482917")
	require.NoError(t, err)
	require.Equal(t, StatusLocked, result.Status)

	// After expiry, verification behaves normally again.
	security.Now = func() time.Time { return start.Add(LockoutDuration + time.Second) }
	result, err = security.Verify(user, "482917")
	require.NoError(t, err)
	require.Equal(t, StatusOk, result.Status)
	require.Equal(t, 0, repo.attempts)
	require.False(t, repo.lockedUntil.Valid)
}

func TestVerify_WrongAfterLockoutExpiryStartsFreshWindow(t *testing.T) {
	security, repo, user := newTestSecurity(t)

	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	security.Now = func() time.Time { return start }

	for i := 0; i < MaxAttempts; i++ {
		_, err := security.Verify(user, "000001")
		require.NoError(t, err)
	}

	security.Now = func() time.Time { return start.Add(LockoutDuration + time.Minute) }

	result, err := security.Verify(user, "000001")
	require.NoError(t, err)
	require.Equal(t, StatusWrong, result.Status)
	require.Equal(t, 2, result.AttemptsLeft)
	require.Equal(t, 1, repo.attempts)
}

func TestVerify_NoPinSet(t *testing.T) {
	security, _, user := newTestSecurity(t)
	user.PinHash = ""

	result, err := security.Verify(user, "482917")
	require.NoError(t, err)
	require.Equal(t, StatusNoPinSet, result.Status)
}

func TestVerify_WrongFormatDoesNotCountAsAttempt(t *testing.T) {
	security, repo, user := newTestSecurity(t)

	result, err := security.Verify(user, "12ab56")
	require.NoError(t, err)
	require.Equal(t, StatusWrongFormat, result.Status)
	require.Equal(t, 0, repo.attempts)
}

func TestIsTrivial(t *testing.T) {
	require.True(t, IsTrivial("123456"))
	require.True(t, IsTrivial("000000"))
	require.False(t, IsTrivial("482917"))
}
