package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/nivobank/nivo/internal/config"
	"github.com/nivobank/nivo/internal/errHandler"
	"github.com/nivobank/nivo/internal/models"
	"github.com/nivobank/nivo/internal/pin"
	"github.com/nivobank/nivo/internal/repository"
)

// stubUserRepo implements UserRepository around a single user.
type stubUserRepo struct {
	user *models.User
}

func (r *stubUserRepo) Insert(user *models.User, tx *sqlx.Tx) (string, error) {
	return "", nil
}

func (r *stubUserRepo) GetOne(id string) (*models.User, bool, error) {
	if r.user != nil && r.user.ID == id {
		return r.user, true, nil
	}
	return nil, false, nil
}

func (r *stubUserRepo) GetByPhone(phone string) (*models.User, bool, error) {
	if r.user != nil && r.user.PhoneNumber == phone {
		return r.user, true, nil
	}
	return nil, false, nil
}

func (r *stubUserRepo) HandleExists(handle string) (bool, error) {
	return false, nil
}

func (r *stubUserRepo) UpdatePin(id, pinHash string) error {
	r.user.PinHash = pinHash
	return nil
}

func (r *stubUserRepo) RecordPinFailure(id string, attempts int, lockedUntil sql.NullTime) error {
	r.user.PinAttempts = attempts
	r.user.PinLockedUntil = lockedUntil
	return nil
}

func (r *stubUserRepo) ResetPinFailures(id string) error {
	r.user.PinAttempts = 0
	r.user.PinLockedUntil = sql.NullTime{}
	return nil
}

func (r *stubUserRepo) ChangeProfilePicture(id, image string) error {
	return nil
}

// stubDatabase exposes only the user repository; the login handler never
// touches the rest.
type stubDatabase struct {
	users repository.UserRepository
}

func (d *stubDatabase) Identity() repository.IdentityRepository         { return nil }
func (d *stubDatabase) User() repository.UserRepository                 { return d.users }
func (d *stubDatabase) BankAccount() repository.BankAccountRepository   { return nil }
func (d *stubDatabase) Verification() repository.VerificationRepository { return nil }
func (d *stubDatabase) Close() error                                    { return nil }

func (d *stubDatabase) BeginTx(_ context.Context, _ *sql.TxOptions) (*sqlx.Tx, error) {
	return nil, nil
}

func (d *stubDatabase) WithinTx(_ context.Context, fn func(tx *sqlx.Tx) error) error {
	return fn(nil)
}

type stubMailer struct{}

func (m *stubMailer) Send(recipient string, data any, patterns ...string) error {
	return nil
}

func newLoginTestHandler(t *testing.T) (*RouteHandler, *stubUserRepo) {
	t.Helper()

	users := &stubUserRepo{}
	security := pin.NewSecurity(users)

	pinHash, err := security.Hash("839274")
	require.NoError(t, err)

	users.user = &models.User{
		ID:          "user-1",
		Handle:      "ps3210",
		FullName:    "Priya Sharma",
		PhoneNumber: "9876543210",
		PinHash:     pinHash,
	}

	cfg := &config.Config{}
	cfg.BaseURL = "http://localhost"
	cfg.Jwt.SecretKey = "test_secret"

	h := NewRouteHandler(&RouteHandler{
		DB:         &stubDatabase{users: users},
		Pin:        security,
		ErrHandler: errHandler.New("", cfg.BaseURL, &stubMailer{}, newTestLogger()),
		Config:     cfg,
	})

	return h, users
}

func postLogin(t *testing.T, h *RouteHandler, phone, pinCode string) *httptest.ResponseRecorder {
	t.Helper()

	requestBody, err := json.Marshal(map[string]string{
		"phone_number": phone,
		"pin":          pinCode,
	})
	require.NoError(t, err)

	req, err := http.NewRequest("POST", "/auth/login", bytes.NewBuffer(requestBody))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	h.HandleAuthLogin(rr, req)
	return rr
}

func TestHandleAuthLogin_ValidCredentials(t *testing.T) {
	h, _ := newLoginTestHandler(t)

	rr := postLogin(t, h, "9876543210", "839274")
	require.Equal(t, http.StatusOK, rr.Code)

	var response map[string]interface{}
	err := json.Unmarshal(rr.Body.Bytes(), &response)
	require.NoError(t, err)

	data, ok := response["data"].(map[string]interface{})
	require.True(t, ok, "Expected response['data'] to be a map")

	require.Contains(t, data, "auth_token")
	require.Contains(t, data, "token_expiry")
	require.NotEmpty(t, data["auth_token"])
}

func TestHandleAuthLogin_WrongPinReportsAttemptsLeft(t *testing.T) {
	h, _ := newLoginTestHandler(t)

	rr := postLogin(t, h, "9876543210", "111111")
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	var response map[string]interface{}
	err := json.Unmarshal(rr.Body.Bytes(), &response)
	require.NoError(t, err)

	errData, ok := response["error"].(map[string]interface{})
	require.True(t, ok, "Expected response['error'] to be a map")
	require.Equal(t, float64(2), errData["attempts_left"])
}

func TestHandleAuthLogin_LocksAfterThirdFailure(t *testing.T) {
	h, users := newLoginTestHandler(t)

	for i := 0; i < pin.MaxAttempts; i++ {
		rr := postLogin(t, h, "9876543210", "111111")
		require.Equal(t, http.StatusUnauthorized, rr.Code)
	}
	require.True(t, users.user.PinLockedUntil.Valid)

	// Even the correct PIN is refused while the lock holds.
	rr := postLogin(t, h, "9876543210", "839274")
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestHandleAuthLogin_UnknownPhone(t *testing.T) {
	h, _ := newLoginTestHandler(t)

	rr := postLogin(t, h, "9876543211", "839274")
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}
