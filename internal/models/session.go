package models

import (
	"time"
)

// Signup steps, in the order a session must pass through them.
const (
	StepMobile      = 1
	StepPersonal    = 2
	StepPrimaryID   = 3
	StepSecondaryID = 4
	StepPin         = 5
)

const (
	// IDVerificationOtpSent means the identity record matched and we are
	// waiting on the OTP that was sent to the session's phone.
	IDVerificationOtpSent = "otp_sent"

	// IDVerificationVerified means the OTP was confirmed and the step is done.
	IDVerificationVerified = "verified"
)

// OTPState is the sub-state of a single OTP challenge. A fresh challenge
// replaces the whole struct, which is what resets Attempts.
type OTPState struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
	Attempts  int       `json:"attempts"`
}

// Expired reports whether the code can no longer be used.
func (o *OTPState) Expired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

// PersonalDetails is the step-2 payload.
type PersonalDetails struct {
	FullName    string    `json:"full_name"`
	Email       string    `json:"email"`
	DateOfBirth time.Time `json:"date_of_birth"`
	Gender      string    `json:"gender"`
	SavedAt     time.Time `json:"saved_at"`
}

// IDVerification is the sub-state of an identity verification step
// (primary or secondary). The full identifier is never stored here,
// only the registry record reference and the display fragment.
type IDVerification struct {
	Status     string     `json:"status"`
	RecordID   string     `json:"record_id"`
	LastFour   string     `json:"last_four"`
	HolderName string     `json:"holder_name"`
	Address    string     `json:"address,omitempty"`
	OTP        *OTPState  `json:"otp,omitempty"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
}

// SignupSession carries a single onboarding attempt between steps.
type SignupSession struct {
	ID          string `json:"id"`
	Phone       string `json:"phone"`
	CountryCode string `json:"country_code"`

	// CurrentStep is monotonically non-decreasing, 1..5.
	CurrentStep int  `json:"current_step"`
	Completed   bool `json:"completed"`

	MobileOTP       *OTPState        `json:"mobile_otp,omitempty"`
	PhoneVerifiedAt *time.Time       `json:"phone_verified_at,omitempty"`
	Personal        *PersonalDetails `json:"personal,omitempty"`
	PrimaryID       *IDVerification  `json:"primary_id,omitempty"`
	SecondaryID     *IDVerification  `json:"secondary_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AdvanceTo raises CurrentStep to step, never lowering it.
func (s *SignupSession) AdvanceTo(step int) {
	if step > s.CurrentStep {
		s.CurrentStep = step
	}
}

// AllVerified reports whether every verification gate before PIN setup
// has been passed.
func (s *SignupSession) AllVerified() bool {
	if s.PhoneVerifiedAt == nil {
		return false
	}
	if s.PrimaryID == nil || s.PrimaryID.Status != IDVerificationVerified {
		return false
	}
	if s.SecondaryID == nil || s.SecondaryID.Status != IDVerificationVerified {
		return false
	}
	return true
}
