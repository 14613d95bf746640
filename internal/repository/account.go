package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/nivobank/nivo/internal/models"
)

type BankAccountRepository interface {
	Insert(account *models.BankAccount, tx *sqlx.Tx) (string, error)
	GetByUser(userID string) (*models.BankAccount, bool, error)
	AccountNumberExists(accountNumber string) (bool, error)
}

type BankAccountRepositoryImpl struct {
	db *sqlx.DB
}

func NewBankAccountRepository(db *sqlx.DB) BankAccountRepository {
	return &BankAccountRepositoryImpl{db: db}
}

func (repo *BankAccountRepositoryImpl) Insert(account *models.BankAccount, tx *sqlx.Tx) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var id string
	query := `
		INSERT INTO bank_accounts (user_id, account_number, display_name)
		VALUES ($1, $2, $3)
		RETURNING id`

	if tx != nil {
		err := tx.QueryRowContext(ctx, query, account.UserID, account.AccountNumber, account.DisplayName).Scan(&id)
		if err != nil {
			return "", err
		}
	} else {
		err := repo.db.GetContext(ctx, &id, query, account.UserID, account.AccountNumber, account.DisplayName)
		if err != nil {
			return "", err
		}
	}

	return id, nil
}

func (repo *BankAccountRepositoryImpl) GetByUser(userID string) (*models.BankAccount, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var account models.BankAccount

	query := `SELECT * FROM bank_accounts WHERE user_id = $1 ORDER BY created_at ASC LIMIT 1`

	err := repo.db.GetContext(ctx, &account, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}

	return &account, err == nil, err
}

func (repo *BankAccountRepositoryImpl) AccountNumberExists(accountNumber string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var exists bool

	query := `SELECT EXISTS(SELECT 1 FROM bank_accounts WHERE account_number = $1)`

	err := repo.db.GetContext(ctx, &exists, query, accountNumber)
	if err != nil {
		return false, err
	}

	return exists, nil
}
