package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

const (
	VerificationKindMobile      = "mobile"
	VerificationKindPrimaryID   = "primary_id"
	VerificationKindSecondaryID = "secondary_id"
)

const (
	VerificationStatusPending = "pending"
	VerificationStatusSuccess = "success"
	VerificationStatusFailed  = "failed"
)

// VerificationRecord is an append-only audit entry for one verification
// attempt outcome. Rows are never updated after insert.
type VerificationRecord struct {
	ID        string         `db:"id"`
	SessionID string         `db:"session_id"`
	Kind      string         `db:"kind"`
	Status    string         `db:"status"`
	Response  types.JSONText `db:"response"`
	CreatedAt time.Time      `db:"created_at"`
}
