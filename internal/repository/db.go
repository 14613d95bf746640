package repository

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/nivobank/nivo/assets"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/lib/pq"
)

const defaultTimeout = 3 * time.Second

// Database interface defines available repositories
type Database interface {
	Identity() IdentityRepository
	User() UserRepository
	BankAccount() BankAccountRepository
	Verification() VerificationRepository

	Close() error
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
	WithinTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
}

// DatabaseImpl implements the Database interface
type DatabaseImpl struct {
	db               *sqlx.DB
	identityRepo     IdentityRepository
	userRepo         UserRepository
	bankAccountRepo  BankAccountRepository
	verificationRepo VerificationRepository

	mu sync.Mutex
}

// New initializes a database connection and runs migrations if enabled
func New(dsn string, automigrate bool) (Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	db, err := sqlx.ConnectContext(ctx, "postgres", "postgres://"+dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(2 * time.Hour)

	if automigrate {
		iofsDriver, err := iofs.New(assets.EmbeddedFiles, "migrations")
		if err != nil {
			return nil, err
		}

		migrator, err := migrate.NewWithSourceInstance("iofs", iofsDriver, "postgres://"+dsn)
		if err != nil {
			return nil, err
		}

		if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return nil, err
		}
	}

	return &DatabaseImpl{db: db}, nil
}

func (d *DatabaseImpl) Close() error {
	return d.db.Close()
}

func (d *DatabaseImpl) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	tx, err := d.db.BeginTxx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// WithinTx runs fn inside a transaction, committing on success and rolling
// back on error or panic.
func (d *DatabaseImpl) WithinTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

func (d *DatabaseImpl) Identity() IdentityRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.identityRepo == nil {
		d.identityRepo = NewIdentityRepository(d.db)
	}
	return d.identityRepo
}

func (d *DatabaseImpl) User() UserRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.userRepo == nil {
		d.userRepo = NewUserRepository(d.db)
	}
	return d.userRepo
}

func (d *DatabaseImpl) BankAccount() BankAccountRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.bankAccountRepo == nil {
		d.bankAccountRepo = NewBankAccountRepository(d.db)
	}
	return d.bankAccountRepo
}

func (d *DatabaseImpl) Verification() VerificationRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.verificationRepo == nil {
		d.verificationRepo = NewVerificationRepository(d.db)
	}
	return d.verificationRepo
}
