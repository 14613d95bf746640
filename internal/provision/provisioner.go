package provision

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nivobank/nivo/internal/identity"
	"github.com/nivobank/nivo/internal/models"
	"github.com/nivobank/nivo/internal/pin"
	"github.com/nivobank/nivo/internal/repository"
)

// maxGenerationAttempts bounds the regeneration loop for duplicate handles
// and account numbers before giving up.
const maxGenerationAttempts = 1000

// ErrExhausted means we could not find an unused handle or account number
// within the attempt budget.
var ErrExhausted = errors.New("unable to generate a unique identifier")

// ErrSessionIncomplete means the session is missing a verification the
// final step depends on. Callers should have gated on this already.
var ErrSessionIncomplete = errors.New("session is missing verified step data")

// SessionCompleter marks a signup session as terminally finished.
type SessionCompleter interface {
	Complete(ctx context.Context, id string) error
}

// Result is what a completed provisioning hands back to the customer.
type Result struct {
	UserID        string
	Handle        string
	AccountNumber string
	HolderName    string
	Email         string
}

// Provisioner turns a fully verified signup session into the permanent
// user and bank account entities.
type Provisioner struct {
	db       repository.Database
	pin      *pin.Security
	sessions SessionCompleter

	// Now is injectable for tests.
	Now func() time.Time
}

func New(db repository.Database, pinSecurity *pin.Security, sessions SessionCompleter) *Provisioner {
	return &Provisioner{
		db:       db,
		pin:      pinSecurity,
		sessions: sessions,
		Now:      time.Now,
	}
}

// Provision creates the user and bank account in one database transaction,
// then completes the session. Only masked identity fragments are persisted
// on the user. If a user already exists for the session's phone (a crash
// after commit but before session completion), the existing entities are
// returned and the session is completed, making resubmission safe.
func (p *Provisioner) Provision(ctx context.Context, sess *models.SignupSession, rawPin string) (*Result, error) {
	if sess.Personal == nil || !sess.AllVerified() {
		return nil, ErrSessionIncomplete
	}

	existing, found, err := p.db.User().GetByPhone(sess.Phone)
	if err != nil {
		return nil, err
	}
	if found {
		account, haveAccount, err := p.db.BankAccount().GetByUser(existing.ID)
		if err != nil {
			return nil, err
		}
		if !haveAccount {
			return nil, fmt.Errorf("user %s exists without a bank account", existing.ID)
		}

		if err := p.sessions.Complete(ctx, sess.ID); err != nil {
			return nil, err
		}

		return &Result{
			UserID:        existing.ID,
			Handle:        existing.Handle,
			AccountNumber: account.AccountNumber,
			HolderName:    existing.FullName,
			Email:         existing.Email,
		}, nil
	}

	pinHash, err := p.pin.Hash(rawPin)
	if err != nil {
		return nil, err
	}

	handle, err := p.generateHandle(sess.Personal.FullName, sess.Phone)
	if err != nil {
		return nil, err
	}

	accountNumber, err := p.generateAccountNumber()
	if err != nil {
		return nil, err
	}

	now := p.Now()

	user := &models.User{
		Handle:            handle,
		PhoneNumber:       sess.Phone,
		CountryCode:       sess.CountryCode,
		Email:             sess.Personal.Email,
		FullName:          sess.Personal.FullName,
		DateOfBirth:       sess.Personal.DateOfBirth,
		Gender:            sess.Personal.Gender,
		PhoneVerified:     true,
		AddressLine:       sess.PrimaryID.Address,
		PrimaryIDMasked:   identity.MaskPrimaryID(sess.PrimaryID.LastFour),
		SecondaryIDMasked: identity.MaskSecondaryID(sess.SecondaryID.LastFour),
		PinHash:           pinHash,
		PinSetAt:          now,
		TermsAcceptedAt:   now,
	}

	account := &models.BankAccount{
		AccountNumber: accountNumber,
		DisplayName:   "Nivo Savings",
	}

	err = p.db.WithinTx(ctx, func(tx *sqlx.Tx) error {
		userID, err := p.db.User().Insert(user, tx)
		if err != nil {
			return err
		}
		user.ID = userID

		account.UserID = userID
		if _, err := p.db.BankAccount().Insert(account, tx); err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := p.sessions.Complete(ctx, sess.ID); err != nil {
		return nil, err
	}

	return &Result{
		UserID:        user.ID,
		Handle:        handle,
		AccountNumber: accountNumber,
		HolderName:    user.FullName,
		Email:         user.Email,
	}, nil
}

// generateHandle derives a customer handle from the holder's initials and
// the last four digits of their phone, de-duplicating with a numeric suffix.
func (p *Provisioner) generateHandle(fullName, phone string) (string, error) {
	var initials strings.Builder
	for i, part := range strings.Fields(strings.ToLower(fullName)) {
		if i == 2 {
			break
		}
		initials.WriteByte(part[0])
	}

	suffix := phone
	if len(phone) > 4 {
		suffix = phone[len(phone)-4:]
	}

	base := initials.String() + suffix

	candidate := base
	for i := 0; i < maxGenerationAttempts; i++ {
		exists, err := p.db.User().HandleExists(candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = base + strconv.Itoa(i+2)
	}

	return "", ErrExhausted
}

// generateAccountNumber produces an unused 10-digit account number.
func (p *Provisioner) generateAccountNumber() (string, error) {
	for i := 0; i < maxGenerationAttempts; i++ {
		candidate := strconv.FormatInt(1_000_000_000+rand.Int64N(9_000_000_000), 10)

		exists, err := p.db.BankAccount().AccountNumberExists(candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}

	return "", ErrExhausted
}
