package pin

import (
	"database/sql"
	"errors"
	"time"

	"github.com/cradoe/gopass"
	"github.com/nivobank/nivo/internal/models"
	"github.com/nivobank/nivo/internal/repository"
	"github.com/nivobank/nivo/internal/validator"
)

const (
	// MaxAttempts is how many wrong PINs are tolerated before lockout.
	MaxAttempts = 3

	// LockoutDuration is how long verification is suspended after
	// MaxAttempts consecutive failures.
	LockoutDuration = 15 * time.Minute
)

// ErrInvalidFormat is returned by Hash when the PIN is not 6 digits.
var ErrInvalidFormat = errors.New("pin must be exactly 6 digits")

type Status string

const (
	StatusOk          Status = "ok"
	StatusWrong       Status = "wrong"
	StatusLocked      Status = "locked"
	StatusNoPinSet    Status = "no_pin_set"
	StatusWrongFormat Status = "wrong_format"
)

// VerifyResult reports the outcome of a PIN check along with the data a
// caller needs to phrase the rejection.
type VerifyResult struct {
	Status       Status
	AttemptsLeft int
	LockedUntil  time.Time
}

// trivialPins are sequences and repeats that are guessable within the
// attempt budget; they are rejected at setup time.
var trivialPins = []string{
	"000000", "111111", "222222", "333333", "444444",
	"555555", "666666", "777777", "888888", "999999",
	"123456", "654321", "012345", "123123", "121212", "112233",
}

// IsTrivial reports whether the PIN is on the deny-list.
func IsTrivial(pin string) bool {
	return validator.In(pin, trivialPins...)
}

// Security hashes and verifies login PINs and applies the lockout policy.
type Security struct {
	users repository.UserRepository

	// Now is injectable for lockout tests.
	Now func() time.Time
}

func NewSecurity(users repository.UserRepository) *Security {
	return &Security{
		users: users,
		Now:   time.Now,
	}
}

// Hash validates the PIN format and returns a salted slow hash of it. The
// plaintext PIN is never persisted anywhere.
func (s *Security) Hash(pin string) (string, error) {
	if !validator.Matches(pin, validator.RgxPin) {
		return "", ErrInvalidFormat
	}

	return gopass.Hash(pin)
}

// SetPin re-hashes and stores the PIN for an existing user, clearing any
// failure count and lockout.
func (s *Security) SetPin(user *models.User, pin string) error {
	hash, err := s.Hash(pin)
	if err != nil {
		return err
	}

	if err := s.users.UpdatePin(user.ID, hash); err != nil {
		return err
	}

	user.PinHash = hash
	user.PinAttempts = 0
	user.PinLockedUntil = sql.NullTime{}
	return nil
}

// Verify checks the PIN against the stored hash, counting failures and
// locking the account for LockoutDuration after MaxAttempts wrong PINs.
// The user struct is updated in place alongside the persisted record.
func (s *Security) Verify(user *models.User, pin string) (*VerifyResult, error) {
	now := s.Now()

	if user.PinLockedUntil.Valid {
		if now.Before(user.PinLockedUntil.Time) {
			return &VerifyResult{
				Status:      StatusLocked,
				LockedUntil: user.PinLockedUntil.Time,
			}, nil
		}

		// Lockout has lapsed; start a fresh attempt window.
		if err := s.users.ResetPinFailures(user.ID); err != nil {
			return nil, err
		}
		user.PinAttempts = 0
		user.PinLockedUntil = sql.NullTime{}
	}

	if !validator.Matches(pin, validator.RgxPin) {
		return &VerifyResult{Status: StatusWrongFormat}, nil
	}

	if user.PinHash == "" {
		return &VerifyResult{Status: StatusNoPinSet}, nil
	}

	matches, err := gopass.ComparePasswordAndHash(pin, user.PinHash)
	if err != nil {
		return nil, err
	}

	if !matches {
		attempts := user.PinAttempts + 1

		var lockedUntil sql.NullTime
		if attempts >= MaxAttempts {
			lockedUntil = sql.NullTime{Time: now.Add(LockoutDuration), Valid: true}
		}

		if err := s.users.RecordPinFailure(user.ID, attempts, lockedUntil); err != nil {
			return nil, err
		}
		user.PinAttempts = attempts
		user.PinLockedUntil = lockedUntil

		result := &VerifyResult{
			Status:       StatusWrong,
			AttemptsLeft: max(0, MaxAttempts-attempts),
		}
		if lockedUntil.Valid {
			result.LockedUntil = lockedUntil.Time
		}
		return result, nil
	}

	if user.PinAttempts > 0 || user.PinLockedUntil.Valid {
		if err := s.users.ResetPinFailures(user.ID); err != nil {
			return nil, err
		}
		user.PinAttempts = 0
		user.PinLockedUntil = sql.NullTime{}
	}

	return &VerifyResult{Status: StatusOk}, nil
}
