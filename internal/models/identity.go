package models

import (
	"time"
)

// PrimaryIDRecord is an admin-curated record for the national (Aadhaar-style)
// identity document. Only the one-way hash and the last four digits of the
// identifier are ever stored.
type PrimaryIDRecord struct {
	ID          string    `db:"id"`
	IDHash      string    `db:"id_hash"`
	LastFour    string    `db:"last_four"`
	FullName    string    `db:"full_name"`
	DateOfBirth time.Time `db:"date_of_birth"`
	Gender      string    `db:"gender"`
	AddressLine string    `db:"address_line"`
	PostalCode  string    `db:"postal_code"`
	IsActive    bool      `db:"is_active"`
	CreatedBy   string    `db:"created_by"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// SecondaryIDRecord is the equivalent record for the tax (PAN-style)
// identity document.
type SecondaryIDRecord struct {
	ID          string    `db:"id"`
	IDHash      string    `db:"id_hash"`
	LastFour    string    `db:"last_four"`
	FullName    string    `db:"full_name"`
	DateOfBirth time.Time `db:"date_of_birth"`
	FatherName  string    `db:"father_name"`
	Status      string    `db:"status"`
	IsActive    bool      `db:"is_active"`
	CreatedBy   string    `db:"created_by"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}
