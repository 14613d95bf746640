package seeders

import (
	"time"

	"github.com/nivobank/nivo/internal/repository"
)

const defaultTimeout = 5 * time.Second

type Seeder struct {
	DB repository.Database
}

func New(DB repository.Database) *Seeder {
	return &Seeder{
		DB: DB,
	}
}

func (seeder *Seeder) Run() {
	seeder.seedIdentityRecords()
}
