package provision

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/nivobank/nivo/internal/models"
	"github.com/nivobank/nivo/internal/pin"
	"github.com/nivobank/nivo/internal/repository"
)

// fakeDatabase is an in-memory repository.Database. WithinTx passes a nil
// transaction because the fakes never touch SQL.
type fakeDatabase struct {
	users    *fakeUserRepo
	accounts *fakeAccountRepo
}

func newFakeDatabase() *fakeDatabase {
	return &fakeDatabase{
		users:    &fakeUserRepo{byPhone: map[string]*models.User{}, handles: map[string]bool{}},
		accounts: &fakeAccountRepo{byUser: map[string]*models.BankAccount{}, numbers: map[string]bool{}},
	}
}

func (d *fakeDatabase) Identity() repository.IdentityRepository         { return nil }
func (d *fakeDatabase) User() repository.UserRepository                 { return d.users }
func (d *fakeDatabase) BankAccount() repository.BankAccountRepository   { return d.accounts }
func (d *fakeDatabase) Verification() repository.VerificationRepository { return nil }
func (d *fakeDatabase) Close() error                                    { return nil }

func (d *fakeDatabase) BeginTx(_ context.Context, _ *sql.TxOptions) (*sqlx.Tx, error) {
	return nil, errors.New("not supported")
}

func (d *fakeDatabase) WithinTx(_ context.Context, fn func(tx *sqlx.Tx) error) error {
	return fn(nil)
}

type fakeUserRepo struct {
	byPhone map[string]*models.User
	handles map[string]bool
	nextID  int
}

func (r *fakeUserRepo) Insert(user *models.User, _ *sqlx.Tx) (string, error) {
	r.nextID++
	id := "user-" + strconv.Itoa(r.nextID)
	user.ID = id
	r.byPhone[user.PhoneNumber] = user
	r.handles[user.Handle] = true
	return id, nil
}

func (r *fakeUserRepo) GetOne(id string) (*models.User, bool, error) {
	for _, user := range r.byPhone {
		if user.ID == id {
			return user, true, nil
		}
	}
	return nil, false, nil
}

func (r *fakeUserRepo) GetByPhone(phone string) (*models.User, bool, error) {
	user, ok := r.byPhone[phone]
	return user, ok, nil
}

func (r *fakeUserRepo) HandleExists(handle string) (bool, error) {
	return r.handles[handle], nil
}

func (r *fakeUserRepo) UpdatePin(_, _ string) error                           { return nil }
func (r *fakeUserRepo) RecordPinFailure(_ string, _ int, _ sql.NullTime) error { return nil }
func (r *fakeUserRepo) ResetPinFailures(_ string) error                       { return nil }
func (r *fakeUserRepo) ChangeProfilePicture(_, _ string) error                { return nil }

type fakeAccountRepo struct {
	byUser  map[string]*models.BankAccount
	numbers map[string]bool
	nextID  int
}

func (r *fakeAccountRepo) Insert(account *models.BankAccount, _ *sqlx.Tx) (string, error) {
	r.nextID++
	id := "account-" + strconv.Itoa(r.nextID)
	account.ID = id
	r.byUser[account.UserID] = account
	r.numbers[account.AccountNumber] = true
	return id, nil
}

func (r *fakeAccountRepo) GetByUser(userID string) (*models.BankAccount, bool, error) {
	account, ok := r.byUser[userID]
	return account, ok, nil
}

func (r *fakeAccountRepo) AccountNumberExists(accountNumber string) (bool, error) {
	return r.numbers[accountNumber], nil
}

type fakeCompleter struct {
	completed []string
}

func (c *fakeCompleter) Complete(_ context.Context, id string) error {
	c.completed = append(c.completed, id)
	return nil
}

func verifiedSession() *models.SignupSession {
	now := time.Now()
	return &models.SignupSession{
		ID:          "sess-1",
		Phone:       "9876543210",
		CountryCode: "+91",
		CurrentStep: models.StepPin,
		Personal: &models.PersonalDetails{
			FullName:    "Priya Sharma",
			Email:       "priya@example.com",
			DateOfBirth: time.Date(1995, time.March, 15, 0, 0, 0, 0, time.UTC),
			Gender:      "F",
		},
		PhoneVerifiedAt: &now,
		PrimaryID: &models.IDVerification{
			Status:     models.IDVerificationVerified,
			LastFour:   "9012",
			HolderName: "Priya Sharma",
			Address:    "42 MG Road, Bengaluru",
			VerifiedAt: &now,
		},
		SecondaryID: &models.IDVerification{
			Status:     models.IDVerificationVerified,
			LastFour:   "234F",
			HolderName: "Priya Sharma",
			VerifiedAt: &now,
		},
	}
}

func newTestProvisioner() (*Provisioner, *fakeDatabase, *fakeCompleter) {
	db := newFakeDatabase()
	completer := &fakeCompleter{}
	return New(db, pin.NewSecurity(db.users), completer), db, completer
}

func TestProvision_CreatesUserAndAccount(t *testing.T) {
	provisioner, db, completer := newTestProvisioner()

	result, err := provisioner.Provision(context.Background(), verifiedSession(), "839274")
	require.NoError(t, err)

	require.Equal(t, "ps3210", result.Handle)
	require.Len(t, result.AccountNumber, 10)
	require.Equal(t, "Priya Sharma", result.HolderName)
	require.Equal(t, []string{"sess-1"}, completer.completed)

	user, found, err := db.users.GetByPhone("9876543210")
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, user.PhoneVerified)
	require.Equal(t, "XXXX-XXXX-9012", user.PrimaryIDMasked)
	require.Equal(t, "XXXXXX234F", user.SecondaryIDMasked)
	require.NotEmpty(t, user.PinHash)
	require.NotEqual(t, "839274", user.PinHash)

	account, found, err := db.accounts.GetByUser(user.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, result.AccountNumber, account.AccountNumber)
	require.Equal(t, "Nivo Savings", account.DisplayName)
}

func TestProvision_IncompleteSession(t *testing.T) {
	provisioner, _, completer := newTestProvisioner()

	sess := verifiedSession()
	sess.SecondaryID.Status = models.IDVerificationOtpSent

	_, err := provisioner.Provision(context.Background(), sess, "839274")
	require.ErrorIs(t, err, ErrSessionIncomplete)
	require.Empty(t, completer.completed)
}

func TestProvision_HandleCollisionGetsSuffix(t *testing.T) {
	provisioner, db, _ := newTestProvisioner()
	db.users.handles["ps3210"] = true

	result, err := provisioner.Provision(context.Background(), verifiedSession(), "839274")
	require.NoError(t, err)
	require.Equal(t, "ps32102", result.Handle)
}

func TestProvision_SingleNameUsesOneInitial(t *testing.T) {
	provisioner, _, _ := newTestProvisioner()

	sess := verifiedSession()
	sess.Personal.FullName = "Priya"

	result, err := provisioner.Provision(context.Background(), sess, "839274")
	require.NoError(t, err)
	require.Equal(t, "p3210", result.Handle)
}

func TestProvision_ExistingUserIsIdempotent(t *testing.T) {
	provisioner, db, completer := newTestProvisioner()
	ctx := context.Background()

	first, err := provisioner.Provision(ctx, verifiedSession(), "839274")
	require.NoError(t, err)

	// Resubmission after a crash between commit and session completion must
	// return the same entities rather than insert twice.
	second, err := provisioner.Provision(ctx, verifiedSession(), "839274")
	require.NoError(t, err)

	require.Equal(t, first.UserID, second.UserID)
	require.Equal(t, first.Handle, second.Handle)
	require.Equal(t, first.AccountNumber, second.AccountNumber)
	require.Len(t, db.users.byPhone, 1)
	require.Equal(t, []string{"sess-1", "sess-1"}, completer.completed)
}

func TestProvision_AccountNumberAvoidsCollisions(t *testing.T) {
	provisioner, db, _ := newTestProvisioner()

	// Pre-claim a large block; the generator must still land on a free number.
	for i := 0; i < 50; i++ {
		db.accounts.numbers[strconv.Itoa(1_000_000_000+i)] = true
	}

	result, err := provisioner.Provision(context.Background(), verifiedSession(), "839274")
	require.NoError(t, err)
	require.Len(t, result.AccountNumber, 10)
	require.True(t, db.accounts.numbers[result.AccountNumber])
}
