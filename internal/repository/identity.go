package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/nivobank/nivo/internal/models"
)

// IdentityRepository is read-only to the verification flow. The insert
// methods exist for the administrative seeder only.
type IdentityRepository interface {
	GetPrimaryByHash(idHash string) (*models.PrimaryIDRecord, bool, error)
	GetSecondaryByHash(idHash string) (*models.SecondaryIDRecord, bool, error)
	InsertPrimary(record *models.PrimaryIDRecord, tx *sqlx.Tx) (string, error)
	InsertSecondary(record *models.SecondaryIDRecord, tx *sqlx.Tx) (string, error)
}

type IdentityRepositoryImpl struct {
	db *sqlx.DB
}

func NewIdentityRepository(db *sqlx.DB) IdentityRepository {
	return &IdentityRepositoryImpl{db: db}
}

func (repo *IdentityRepositoryImpl) GetPrimaryByHash(idHash string) (*models.PrimaryIDRecord, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var record models.PrimaryIDRecord

	query := `SELECT * FROM primary_id_records WHERE id_hash = $1 AND is_active = TRUE`

	err := repo.db.GetContext(ctx, &record, query, idHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}

	return &record, err == nil, err
}

func (repo *IdentityRepositoryImpl) GetSecondaryByHash(idHash string) (*models.SecondaryIDRecord, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var record models.SecondaryIDRecord

	query := `SELECT * FROM secondary_id_records WHERE id_hash = $1 AND is_active = TRUE`

	err := repo.db.GetContext(ctx, &record, query, idHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}

	return &record, err == nil, err
}

func (repo *IdentityRepositoryImpl) InsertPrimary(record *models.PrimaryIDRecord, tx *sqlx.Tx) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var id string
	query := `
		INSERT INTO primary_id_records (id_hash, last_four, full_name, date_of_birth, gender, address_line, postal_code, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id_hash) DO NOTHING
		RETURNING id`

	args := []any{
		record.IDHash,
		record.LastFour,
		record.FullName,
		record.DateOfBirth,
		record.Gender,
		record.AddressLine,
		record.PostalCode,
		record.CreatedBy,
	}

	var err error
	if tx != nil {
		err = tx.QueryRowContext(ctx, query, args...).Scan(&id)
	} else {
		err = repo.db.GetContext(ctx, &id, query, args...)
	}
	if errors.Is(err, sql.ErrNoRows) {
		// Conflict target hit; the record already exists.
		return "", nil
	}

	return id, err
}

func (repo *IdentityRepositoryImpl) InsertSecondary(record *models.SecondaryIDRecord, tx *sqlx.Tx) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var id string
	query := `
		INSERT INTO secondary_id_records (id_hash, last_four, full_name, date_of_birth, father_name, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id_hash) DO NOTHING
		RETURNING id`

	args := []any{
		record.IDHash,
		record.LastFour,
		record.FullName,
		record.DateOfBirth,
		record.FatherName,
		record.Status,
		record.CreatedBy,
	}

	var err error
	if tx != nil {
		err = tx.QueryRowContext(ctx, query, args...).Scan(&id)
	} else {
		err = repo.db.GetContext(ctx, &id, query, args...)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}

	return id, err
}
