package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/nivobank/nivo/internal/models"
)

type UserRepository interface {
	Insert(user *models.User, tx *sqlx.Tx) (string, error)
	GetOne(id string) (*models.User, bool, error)
	GetByPhone(phone string) (*models.User, bool, error)
	HandleExists(handle string) (bool, error)
	UpdatePin(id, pinHash string) error
	RecordPinFailure(id string, attempts int, lockedUntil sql.NullTime) error
	ResetPinFailures(id string) error
	ChangeProfilePicture(id, image string) error
}

type UserRepositoryImpl struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &UserRepositoryImpl{db: db}
}

func (repo *UserRepositoryImpl) Insert(user *models.User, tx *sqlx.Tx) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var id string
	query := `
		INSERT INTO users (
			handle, phone_number, country_code, email, full_name, date_of_birth, gender,
			phone_verified, address_line, primary_id_masked, secondary_id_masked,
			pin_hash, pin_set_at, terms_accepted_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`

	args := []any{
		user.Handle,
		user.PhoneNumber,
		user.CountryCode,
		user.Email,
		user.FullName,
		user.DateOfBirth,
		user.Gender,
		user.PhoneVerified,
		user.AddressLine,
		user.PrimaryIDMasked,
		user.SecondaryIDMasked,
		user.PinHash,
		user.PinSetAt,
		user.TermsAcceptedAt,
	}

	if tx != nil {
		err := tx.QueryRowContext(ctx, query, args...).Scan(&id)
		if err != nil {
			return "", err
		}
	} else {
		err := repo.db.GetContext(ctx, &id, query, args...)
		if err != nil {
			return "", err
		}
	}

	return id, nil
}

func (repo *UserRepositoryImpl) GetOne(id string) (*models.User, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var user models.User

	query := `SELECT * FROM users WHERE id = $1`

	err := repo.db.GetContext(ctx, &user, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}

	return &user, err == nil, err
}

func (repo *UserRepositoryImpl) GetByPhone(phone string) (*models.User, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var user models.User

	query := `SELECT * FROM users WHERE phone_number = $1`

	err := repo.db.GetContext(ctx, &user, query, phone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}

	return &user, err == nil, err
}

func (repo *UserRepositoryImpl) HandleExists(handle string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var exists bool

	query := `SELECT EXISTS(SELECT 1 FROM users WHERE handle = $1)`

	err := repo.db.GetContext(ctx, &exists, query, handle)
	if err != nil {
		return false, err
	}

	return exists, nil
}

func (repo *UserRepositoryImpl) UpdatePin(id, pinHash string) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `
		UPDATE users
		SET pin_hash = $1, pin_set_at = NOW(), pin_attempts = 0, pin_locked_until = NULL, updated_at = NOW()
		WHERE id = $2`

	_, err := repo.db.ExecContext(ctx, query, pinHash, id)
	return err
}

func (repo *UserRepositoryImpl) RecordPinFailure(id string, attempts int, lockedUntil sql.NullTime) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `
		UPDATE users
		SET pin_attempts = $1, pin_locked_until = $2, updated_at = NOW()
		WHERE id = $3`

	_, err := repo.db.ExecContext(ctx, query, attempts, lockedUntil, id)
	return err
}

func (repo *UserRepositoryImpl) ResetPinFailures(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `
		UPDATE users
		SET pin_attempts = 0, pin_locked_until = NULL, updated_at = NOW()
		WHERE id = $1`

	_, err := repo.db.ExecContext(ctx, query, id)
	return err
}

func (repo *UserRepositoryImpl) ChangeProfilePicture(id, image string) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `UPDATE users SET image = $1, updated_at = NOW() WHERE id = $2`

	_, err := repo.db.ExecContext(ctx, query, image, id)
	return err
}
