package identity

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nivobank/nivo/internal/models"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockIdentityRepo struct {
	mock.Mock
}

func (m *MockIdentityRepo) GetPrimaryByHash(idHash string) (*models.PrimaryIDRecord, bool, error) {
	args := m.Called(idHash)
	record, _ := args.Get(0).(*models.PrimaryIDRecord)
	return record, args.Bool(1), args.Error(2)
}

func (m *MockIdentityRepo) GetSecondaryByHash(idHash string) (*models.SecondaryIDRecord, bool, error) {
	args := m.Called(idHash)
	record, _ := args.Get(0).(*models.SecondaryIDRecord)
	return record, args.Bool(1), args.Error(2)
}

func (m *MockIdentityRepo) InsertPrimary(record *models.PrimaryIDRecord, tx *sqlx.Tx) (string, error) {
	return "", nil
}

func (m *MockIdentityRepo) InsertSecondary(record *models.SecondaryIDRecord, tx *sqlx.Tx) (string, error) {
	return "", nil
}

func testClaims() Claims {
	return Claims{
		FullName:    "John Doe",
		DateOfBirth: time.Date(1990, 1, 15, 0, 0, 0, 0, time.UTC),
		Gender:      "M",
	}
}

func testPrimaryRecord() *models.PrimaryIDRecord {
	return &models.PrimaryIDRecord{
		ID:          "rec-1",
		LastFour:    "9012",
		FullName:    "John Doe",
		DateOfBirth: time.Date(1990, 1, 15, 0, 0, 0, 0, time.UTC),
		Gender:      "M",
		IsActive:    true,
	}
}

func TestLookupPrimary_HashesNormalizedIdentifier(t *testing.T) {
	repo := new(MockIdentityRepo)
	registry := NewRegistry(repo)

	wantHash := HashIdentifier("123456789012")
	repo.On("GetPrimaryByHash", wantHash).Return(testPrimaryRecord(), true, nil)

	record, found, err := registry.LookupPrimary(context.Background(), "1234 5678 9012")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "rec-1", record.ID)

	repo.AssertExpectations(t)
}

func TestLookupSecondary_UppercasesIdentifier(t *testing.T) {
	repo := new(MockIdentityRepo)
	registry := NewRegistry(repo)

	wantHash := HashIdentifier("ABCDE1234F")
	repo.On("GetSecondaryByHash", wantHash).Return(nil, false, nil)

	_, found, err := registry.LookupSecondary(context.Background(), "abcde1234f")
	require.NoError(t, err)
	require.False(t, found)

	repo.AssertExpectations(t)
}

func TestCrossCheckPrimary_FullMatch(t *testing.T) {
	registry := NewRegistry(nil)

	mismatched := registry.CrossCheckPrimary(testPrimaryRecord(), testClaims())
	require.Empty(t, mismatched)
}

func TestCrossCheckPrimary_NameIsCaseInsensitive(t *testing.T) {
	registry := NewRegistry(nil)

	claims := testClaims()
	claims.FullName = "  JOHN DOE "

	mismatched := registry.CrossCheckPrimary(testPrimaryRecord(), claims)
	require.Empty(t, mismatched)
}

func TestCrossCheckPrimary_SingleFieldMismatches(t *testing.T) {
	registry := NewRegistry(nil)

	t.Run("full name", func(t *testing.T) {
		claims := testClaims()
		claims.FullName = "Jane Doe"

		mismatched := registry.CrossCheckPrimary(testPrimaryRecord(), claims)
		require.Equal(t, []string{FieldFullName}, mismatched)
	})

	t.Run("date of birth", func(t *testing.T) {
		claims := testClaims()
		claims.DateOfBirth = time.Date(1991, 1, 15, 0, 0, 0, 0, time.UTC)

		mismatched := registry.CrossCheckPrimary(testPrimaryRecord(), claims)
		require.Equal(t, []string{FieldDateOfBirth}, mismatched)
	})

	t.Run("gender", func(t *testing.T) {
		claims := testClaims()
		claims.Gender = "F"

		mismatched := registry.CrossCheckPrimary(testPrimaryRecord(), claims)
		require.Equal(t, []string{FieldGender}, mismatched)
	})
}

func TestCrossCheckSecondary_IgnoresGender(t *testing.T) {
	registry := NewRegistry(nil)

	record := &models.SecondaryIDRecord{
		FullName:    "John Doe",
		DateOfBirth: time.Date(1990, 1, 15, 0, 0, 0, 0, time.UTC),
	}

	claims := testClaims()
	claims.Gender = "F" // no gender on secondary records

	mismatched := registry.CrossCheckSecondary(record, claims)
	require.Empty(t, mismatched)
}

func TestMasking(t *testing.T) {
	require.Equal(t, "XXXX-XXXX-9012", MaskPrimaryID("9012"))
	require.Equal(t, "XXXXXX234F", MaskSecondaryID("234F"))
	require.Equal(t, "9012", LastFour("123456789012"))
}
