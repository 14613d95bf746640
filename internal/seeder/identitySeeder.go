// Development environments have no real identity registry to call, so we
// seed a handful of known identity records. Raw identifiers never hit the
// database; only their hash and last four characters are stored.
package seeders

import (
	"context"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nivobank/nivo/internal/identity"
	"github.com/nivobank/nivo/internal/models"
)

const seederCreatedBy = "setup_script"

func (seeder *Seeder) seedIdentityRecords() {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	primaryRecords := []struct {
		Number      string
		Name        string
		DateOfBirth string
		Gender      string
		Address     string
		PostalCode  string
	}{
		{
			Number:      "123456789012",
			Name:        "John Doe",
			DateOfBirth: "1990-01-15",
			Gender:      "M",
			Address:     "123 Sample Street, Test City, Test State",
			PostalCode:  "400001",
		},
		{
			Number:      "987654321098",
			Name:        "Jane Smith",
			DateOfBirth: "1985-05-20",
			Gender:      "F",
			Address:     "456 Example Road, Demo City, Demo State",
			PostalCode:  "110001",
		},
		{
			Number:      "555666777888",
			Name:        "Bob Johnson",
			DateOfBirth: "1992-08-10",
			Gender:      "M",
			Address:     "789 Test Avenue, Sample City, Sample State",
			PostalCode:  "600001",
		},
	}

	secondaryRecords := []struct {
		Number      string
		Name        string
		DateOfBirth string
		FatherName  string
	}{
		{
			Number:      "ABCDE1234F",
			Name:        "John Doe",
			DateOfBirth: "1990-01-15",
			FatherName:  "Richard Doe",
		},
		{
			Number:      "PQRST5678G",
			Name:        "Jane Smith",
			DateOfBirth: "1985-05-20",
			FatherName:  "Michael Smith",
		},
		{
			Number:      "XYZ123456H",
			Name:        "Bob Johnson",
			DateOfBirth: "1992-08-10",
			FatherName:  "William Johnson",
		},
	}

	err := seeder.DB.WithinTx(ctx, func(tx *sqlx.Tx) error {
		for _, rec := range primaryRecords {
			dateOfBirth, err := time.Parse("2006-01-02", rec.DateOfBirth)
			if err != nil {
				return err
			}

			record := &models.PrimaryIDRecord{
				IDHash:      identity.HashIdentifier(rec.Number),
				LastFour:    rec.Number[len(rec.Number)-4:],
				FullName:    rec.Name,
				DateOfBirth: dateOfBirth,
				Gender:      rec.Gender,
				AddressLine: rec.Address,
				PostalCode:  rec.PostalCode,
				IsActive:    true,
				CreatedBy:   seederCreatedBy,
			}

			if _, err := seeder.DB.Identity().InsertPrimary(record, tx); err != nil {
				return err
			}
			log.Printf("Seeded primary identity record ending in %s", record.LastFour)
		}

		for _, rec := range secondaryRecords {
			dateOfBirth, err := time.Parse("2006-01-02", rec.DateOfBirth)
			if err != nil {
				return err
			}

			record := &models.SecondaryIDRecord{
				IDHash:      identity.HashIdentifier(rec.Number),
				LastFour:    rec.Number[len(rec.Number)-4:],
				FullName:    rec.Name,
				DateOfBirth: dateOfBirth,
				FatherName:  rec.FatherName,
				Status:      "active",
				IsActive:    true,
				CreatedBy:   seederCreatedBy,
			}

			if _, err := seeder.DB.Identity().InsertSecondary(record, tx); err != nil {
				return err
			}
			log.Printf("Seeded secondary identity record ending in %s", record.LastFour)
		}

		return nil
	})

	if err != nil {
		log.Fatalf("Failed to seed identity records: %v", err)
	}
}
