package models

import (
	"database/sql"
	"time"
)

// User is the permanent customer entity created once a signup session
// completes. Identity documents appear only in masked form.
type User struct {
	ID                string         `db:"id"`
	Handle            string         `db:"handle"`
	PhoneNumber       string         `db:"phone_number"`
	CountryCode       string         `db:"country_code"`
	Email             string         `db:"email"`
	FullName          string         `db:"full_name"`
	DateOfBirth       time.Time      `db:"date_of_birth"`
	Gender            string         `db:"gender"`
	PhoneVerified     bool           `db:"phone_verified"`
	AddressLine       string         `db:"address_line"`
	Image             sql.NullString `db:"image"`
	PrimaryIDMasked   string         `db:"primary_id_masked"`
	SecondaryIDMasked string         `db:"secondary_id_masked"`
	PinHash           string         `db:"pin_hash"`
	PinSetAt          time.Time      `db:"pin_set_at"`
	PinAttempts       int            `db:"pin_attempts"`
	PinLockedUntil    sql.NullTime   `db:"pin_locked_until"`
	TermsAcceptedAt   time.Time      `db:"terms_accepted_at"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
}

// BankAccount is the ledger-facing account opened alongside the user.
type BankAccount struct {
	ID            string    `db:"id"`
	UserID        string    `db:"user_id"`
	AccountNumber string    `db:"account_number"`
	DisplayName   string    `db:"display_name"`
	CreatedAt     time.Time `db:"created_at"`
}
