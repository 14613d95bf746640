package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/nivobank/nivo/internal/models"
)

// VerificationRepository is append-only: records are inserted once per
// verification attempt outcome and never updated.
type VerificationRepository interface {
	Insert(record *models.VerificationRecord) (string, error)
	ListBySession(sessionID string) ([]models.VerificationRecord, error)
}

type VerificationRepositoryImpl struct {
	db *sqlx.DB
}

func NewVerificationRepository(db *sqlx.DB) VerificationRepository {
	return &VerificationRepositoryImpl{db: db}
}

func (repo *VerificationRepositoryImpl) Insert(record *models.VerificationRecord) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var id string
	query := `
		INSERT INTO verification_records (session_id, kind, status, response)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	err := repo.db.GetContext(ctx, &id, query,
		record.SessionID,
		record.Kind,
		record.Status,
		record.Response,
	)
	if err != nil {
		return "", err
	}

	return id, nil
}

func (repo *VerificationRepositoryImpl) ListBySession(sessionID string) ([]models.VerificationRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	records := []models.VerificationRecord{}

	query := `SELECT * FROM verification_records WHERE session_id = $1 ORDER BY created_at ASC`

	err := repo.db.SelectContext(ctx, &records, query, sessionID)
	if err != nil {
		return nil, err
	}

	return records, nil
}
