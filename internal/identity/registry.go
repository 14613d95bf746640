package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/nivobank/nivo/internal/models"
	"github.com/nivobank/nivo/internal/repository"
)

// Field names reported back when a cross-check fails. These are the
// claim field names, so callers can point at the offending input.
const (
	FieldFullName    = "fullName"
	FieldDateOfBirth = "dateOfBirth"
	FieldGender      = "gender"
)

// Claims is the user-supplied identity data checked against a registry
// record.
type Claims struct {
	FullName    string
	DateOfBirth time.Time
	Gender      string
}

// Registry looks up pre-approved identity records by a one-way hash of the
// raw identifier. It is read-only; records are curated by administrators.
type Registry struct {
	repo repository.IdentityRepository
}

func NewRegistry(repo repository.IdentityRepository) *Registry {
	return &Registry{repo: repo}
}

// HashIdentifier produces the lookup digest for a raw identifier. The hash
// is deterministic and unsalted: it is a join key, not a password hash, and
// the stored records never contain the raw value.
func HashIdentifier(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// NormalizePrimary strips everything but digits from a primary identifier.
func NormalizePrimary(raw string) string {
	var b strings.Builder
	for _, c := range raw {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	return b.String()
}

// NormalizeSecondary upper-cases and trims a secondary identifier.
func NormalizeSecondary(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

func (r *Registry) LookupPrimary(_ context.Context, rawIdentifier string) (*models.PrimaryIDRecord, bool, error) {
	return r.repo.GetPrimaryByHash(HashIdentifier(NormalizePrimary(rawIdentifier)))
}

func (r *Registry) LookupSecondary(_ context.Context, rawIdentifier string) (*models.SecondaryIDRecord, bool, error) {
	return r.repo.GetSecondaryByHash(HashIdentifier(NormalizeSecondary(rawIdentifier)))
}

// CrossCheckPrimary compares claims against a primary record: name
// (case-insensitive), date of birth (exact date) and gender (exact).
// It returns the list of mismatched fields, empty on a full match.
func (r *Registry) CrossCheckPrimary(record *models.PrimaryIDRecord, claims Claims) []string {
	var mismatched []string

	if !namesEqual(record.FullName, claims.FullName) {
		mismatched = append(mismatched, FieldFullName)
	}
	if !datesEqual(record.DateOfBirth, claims.DateOfBirth) {
		mismatched = append(mismatched, FieldDateOfBirth)
	}
	if !strings.EqualFold(record.Gender, claims.Gender) {
		mismatched = append(mismatched, FieldGender)
	}

	return mismatched
}

// CrossCheckSecondary compares claims against a secondary record. Secondary
// records carry no gender field, so only name and date of birth are checked.
func (r *Registry) CrossCheckSecondary(record *models.SecondaryIDRecord, claims Claims) []string {
	var mismatched []string

	if !namesEqual(record.FullName, claims.FullName) {
		mismatched = append(mismatched, FieldFullName)
	}
	if !datesEqual(record.DateOfBirth, claims.DateOfBirth) {
		mismatched = append(mismatched, FieldDateOfBirth)
	}

	return mismatched
}

func namesEqual(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func datesEqual(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
