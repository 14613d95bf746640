package signup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nivobank/nivo/internal/identity"
	"github.com/nivobank/nivo/internal/models"
	"github.com/nivobank/nivo/internal/notifier"
	"github.com/nivobank/nivo/internal/otp"
	"github.com/nivobank/nivo/internal/pin"
	"github.com/nivobank/nivo/internal/provision"
	"github.com/nivobank/nivo/internal/session"
	"github.com/nivobank/nivo/internal/validator"
)

// MaxOtpAttempts is how many wrong codes a single challenge tolerates
// before the caller must request a fresh one.
const MaxOtpAttempts = 3

const defaultCountryCode = "+91"

// IdentityRegistry is the lookup/cross-check capability the machine
// depends on. The production implementation is identity.Registry; a real
// KYC provider can be substituted without touching the machine.
type IdentityRegistry interface {
	LookupPrimary(ctx context.Context, rawIdentifier string) (*models.PrimaryIDRecord, bool, error)
	LookupSecondary(ctx context.Context, rawIdentifier string) (*models.SecondaryIDRecord, bool, error)
	CrossCheckPrimary(record *models.PrimaryIDRecord, claims identity.Claims) []string
	CrossCheckSecondary(record *models.SecondaryIDRecord, claims identity.Claims) []string
}

// AccountProvisioner creates the permanent entities on the final step.
type AccountProvisioner interface {
	Provision(ctx context.Context, sess *models.SignupSession, rawPin string) (*provision.Result, error)
}

// Machine is the verification step machine. It owns step ordering, input
// validation per step, OTP gating and the hand-off to provisioning. All
// collaborators are injected; the machine holds no ambient state.
type Machine struct {
	sessions    *session.Store
	registry    IdentityRegistry
	otp         *otp.Generator
	notifier    notifier.Notifier
	provisioner AccountProvisioner
	producer    AuditProducer
	logger      *slog.Logger

	// Now is injectable for expiry tests.
	Now func() time.Time
}

func NewMachine(sessions *session.Store, registry IdentityRegistry, generator *otp.Generator,
	smsNotifier notifier.Notifier, provisioner AccountProvisioner, producer AuditProducer,
	logger *slog.Logger) *Machine {

	return &Machine{
		sessions:    sessions,
		registry:    registry,
		otp:         generator,
		notifier:    smsNotifier,
		provisioner: provisioner,
		producer:    producer,
		logger:      logger,
		Now:         time.Now,
	}
}

type RequestMobileOtpResult struct {
	SessionID        string
	ExpiresInSeconds int
}

type ConfirmOtpResult struct {
	NextStep         int
	MaskedIdentifier string
}

type RequestIDOtpResult struct {
	MaskedIdentifier string
	HolderName       string
	ExpiresInSeconds int
}

type PersonalDetailsInput struct {
	FullName    string
	Email       string
	DateOfBirth time.Time
	Gender      string
}

type SubmitResult struct {
	NextStep int
}

type SetupPinResult struct {
	UserID        string
	AccountHandle string
	AccountNumber string
	HolderName    string
	Email         string
}

// RequestMobileOtp starts (or resumes) a session for the phone number and
// issues a fresh code. Re-requesting always replaces the outstanding code
// and resets the attempt counter.
func (m *Machine) RequestMobileOtp(ctx context.Context, phone, countryCode string) (*RequestMobileOtpResult, error) {
	if countryCode == "" {
		countryCode = defaultCountryCode
	}

	fieldErrors := map[string]string{}
	if !validator.Matches(phone, validator.RgxPhoneNumber) {
		fieldErrors["phone"] = "Please enter a valid 10-digit mobile number"
	}
	if !validator.Matches(countryCode, validator.RgxCountryCode) {
		fieldErrors["countryCode"] = "Please enter a valid country code"
	}
	if len(fieldErrors) > 0 {
		return nil, errValidation(fieldErrors)
	}

	sess, _, err := m.sessions.FindOrCreateByPhone(ctx, phone, countryCode)
	if err != nil {
		return nil, err
	}

	code, err := m.otp.Code()
	if err != nil {
		return nil, err
	}
	expiresAt := m.otp.ExpiryFrom(m.Now())

	_, err = m.sessions.Update(ctx, sess.ID, func(sess *models.SignupSession) error {
		if sess.Completed {
			return errPrecondition("Signup has already been completed for this session")
		}
		sess.MobileOTP = &models.OTPState{Code: code, ExpiresAt: expiresAt}
		return nil
	})
	if err != nil {
		return nil, m.mapSessionError(err)
	}

	m.sendOtp(ctx, notifier.KindMobileOtp, countryCode+phone, code)

	return &RequestMobileOtpResult{
		SessionID:        sess.ID,
		ExpiresInSeconds: m.otp.TTLSeconds(),
	}, nil
}

// ConfirmMobileOtp checks the submitted code against the outstanding
// challenge and, on success, consumes it and unlocks step 2.
func (m *Machine) ConfirmMobileOtp(ctx context.Context, sessionID, code string) (*ConfirmOtpResult, error) {
	var nextStep int

	opErr, err := m.confirmOtp(ctx, sessionID, code,
		func(sess *models.SignupSession) (**models.OTPState, *Error) {
			return &sess.MobileOTP, nil
		},
		func(sess *models.SignupSession) {
			now := m.Now()
			sess.PhoneVerifiedAt = &now
			sess.AdvanceTo(models.StepPersonal)
			nextStep = sess.CurrentStep
		},
	)
	m.auditOtpOutcome(sessionID, models.VerificationKindMobile, opErr, err, nil)
	if err != nil {
		return nil, err
	}
	if opErr != nil {
		return nil, opErr
	}

	return &ConfirmOtpResult{NextStep: nextStep}, nil
}

// SubmitPersonalDetails validates and stores the step-2 payload. It can be
// re-submitted after the step is passed; the details are simply re-saved.
func (m *Machine) SubmitPersonalDetails(ctx context.Context, sessionID string, input PersonalDetailsInput) (*SubmitResult, error) {
	if fieldErrors := m.validatePersonalDetails(input); len(fieldErrors) > 0 {
		return nil, errValidation(fieldErrors)
	}

	var nextStep int

	_, err := m.sessions.Update(ctx, sessionID, func(sess *models.SignupSession) error {
		if sess.Completed {
			return errPrecondition("Signup has already been completed for this session")
		}
		if sess.CurrentStep < models.StepPersonal {
			return errPrecondition("Mobile number must be verified first")
		}

		sess.Personal = &models.PersonalDetails{
			FullName:    input.FullName,
			Email:       input.Email,
			DateOfBirth: input.DateOfBirth,
			Gender:      input.Gender,
			SavedAt:     m.Now(),
		}
		sess.AdvanceTo(models.StepPrimaryID)
		nextStep = sess.CurrentStep
		return nil
	})
	if err != nil {
		return nil, m.mapSessionError(err)
	}

	return &SubmitResult{NextStep: nextStep}, nil
}

// RequestPrimaryIdOtp looks the identifier up in the registry, cross-checks
// it against the saved personal details and, on a full match, issues the
// OTP that gates the step. The current step is not advanced until the code
// is confirmed.
func (m *Machine) RequestPrimaryIdOtp(ctx context.Context, sessionID, rawIdentifier, address string) (*RequestIDOtpResult, error) {
	sess, err := m.loadSessionForIDStep(ctx, sessionID, models.StepPrimaryID, "Personal details must be submitted first")
	if err != nil {
		return nil, err
	}

	fieldErrors := map[string]string{}
	normalized := identity.NormalizePrimary(rawIdentifier)
	if !validator.Matches(normalized, validator.RgxPrimaryID) {
		fieldErrors["identifier"] = "Identifier must be exactly 12 digits"
	}
	if !validator.NotBlank(address) {
		fieldErrors["address"] = "Current address is required"
	}
	if len(fieldErrors) > 0 {
		return nil, errValidation(fieldErrors)
	}

	record, found, err := m.registry.LookupPrimary(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errRecordNotFound("No active identity record found for this identifier")
	}

	claims := identity.Claims{
		FullName:    sess.Personal.FullName,
		DateOfBirth: sess.Personal.DateOfBirth,
		Gender:      sess.Personal.Gender,
	}
	if mismatched := m.registry.CrossCheckPrimary(record, claims); len(mismatched) > 0 {
		m.emitVerificationEvent(sessionID, models.VerificationKindPrimaryID, models.VerificationStatusFailed,
			map[string]any{"mismatched_fields": mismatched})
		return nil, errIdentityMismatch(mismatched)
	}

	code, err := m.otp.Code()
	if err != nil {
		return nil, err
	}

	verification := &models.IDVerification{
		Status:     models.IDVerificationOtpSent,
		RecordID:   record.ID,
		LastFour:   record.LastFour,
		HolderName: record.FullName,
		Address:    address,
		OTP:        &models.OTPState{Code: code, ExpiresAt: m.otp.ExpiryFrom(m.Now())},
	}

	_, err = m.sessions.Update(ctx, sessionID, func(sess *models.SignupSession) error {
		if sess.Completed {
			return errPrecondition("Signup has already been completed for this session")
		}
		sess.PrimaryID = verification
		return nil
	})
	if err != nil {
		return nil, m.mapSessionError(err)
	}

	m.emitVerificationEvent(sessionID, models.VerificationKindPrimaryID, models.VerificationStatusPending,
		map[string]any{"record_id": record.ID, "masked_identifier": identity.MaskPrimaryID(record.LastFour)})

	m.sendOtp(ctx, notifier.KindPrimaryIDOtp, sess.CountryCode+sess.Phone, code)

	return &RequestIDOtpResult{
		MaskedIdentifier: identity.MaskPrimaryID(record.LastFour),
		HolderName:       record.FullName,
		ExpiresInSeconds: m.otp.TTLSeconds(),
	}, nil
}

// ConfirmPrimaryIdOtp consumes the primary-ID challenge and unlocks step 4.
func (m *Machine) ConfirmPrimaryIdOtp(ctx context.Context, sessionID, code string) (*ConfirmOtpResult, error) {
	var (
		nextStep int
		masked   string
	)

	opErr, err := m.confirmOtp(ctx, sessionID, code,
		func(sess *models.SignupSession) (**models.OTPState, *Error) {
			if sess.PrimaryID == nil || sess.PrimaryID.Status != models.IDVerificationOtpSent {
				return nil, errPrecondition("Identity verification has not been started for this step")
			}
			return &sess.PrimaryID.OTP, nil
		},
		func(sess *models.SignupSession) {
			now := m.Now()
			sess.PrimaryID.Status = models.IDVerificationVerified
			sess.PrimaryID.VerifiedAt = &now
			sess.AdvanceTo(models.StepSecondaryID)
			nextStep = sess.CurrentStep
			masked = identity.MaskPrimaryID(sess.PrimaryID.LastFour)
		},
	)
	m.auditOtpOutcome(sessionID, models.VerificationKindPrimaryID, opErr, err,
		map[string]any{"masked_identifier": masked})
	if err != nil {
		return nil, err
	}
	if opErr != nil {
		return nil, opErr
	}

	return &ConfirmOtpResult{NextStep: nextStep, MaskedIdentifier: masked}, nil
}

// RequestSecondaryIdOtp mirrors the primary-ID step for the tax identifier:
// registry lookup, name and date-of-birth cross-check, then an OTP.
func (m *Machine) RequestSecondaryIdOtp(ctx context.Context, sessionID, rawIdentifier string) (*RequestIDOtpResult, error) {
	sess, err := m.loadSessionForIDStep(ctx, sessionID, models.StepSecondaryID, "Primary identity verification must be completed first")
	if err != nil {
		return nil, err
	}

	normalized := identity.NormalizeSecondary(rawIdentifier)
	if !validator.Matches(normalized, validator.RgxSecondaryID) {
		return nil, errValidation(map[string]string{
			"identifier": "Identifier must be 5 letters, 4 digits and a letter",
		})
	}

	record, found, err := m.registry.LookupSecondary(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errRecordNotFound("No active identity record found for this identifier")
	}

	claims := identity.Claims{
		FullName:    sess.Personal.FullName,
		DateOfBirth: sess.Personal.DateOfBirth,
	}
	if mismatched := m.registry.CrossCheckSecondary(record, claims); len(mismatched) > 0 {
		m.emitVerificationEvent(sessionID, models.VerificationKindSecondaryID, models.VerificationStatusFailed,
			map[string]any{"mismatched_fields": mismatched})
		return nil, errIdentityMismatch(mismatched)
	}

	code, err := m.otp.Code()
	if err != nil {
		return nil, err
	}

	verification := &models.IDVerification{
		Status:     models.IDVerificationOtpSent,
		RecordID:   record.ID,
		LastFour:   record.LastFour,
		HolderName: record.FullName,
		OTP:        &models.OTPState{Code: code, ExpiresAt: m.otp.ExpiryFrom(m.Now())},
	}

	_, err = m.sessions.Update(ctx, sessionID, func(sess *models.SignupSession) error {
		if sess.Completed {
			return errPrecondition("Signup has already been completed for this session")
		}
		sess.SecondaryID = verification
		return nil
	})
	if err != nil {
		return nil, m.mapSessionError(err)
	}

	m.emitVerificationEvent(sessionID, models.VerificationKindSecondaryID, models.VerificationStatusPending,
		map[string]any{"record_id": record.ID, "masked_identifier": identity.MaskSecondaryID(record.LastFour)})

	m.sendOtp(ctx, notifier.KindSecondaryIDOtp, sess.CountryCode+sess.Phone, code)

	return &RequestIDOtpResult{
		MaskedIdentifier: identity.MaskSecondaryID(record.LastFour),
		HolderName:       record.FullName,
		ExpiresInSeconds: m.otp.TTLSeconds(),
	}, nil
}

// ConfirmSecondaryIdOtp consumes the secondary-ID challenge and unlocks the
// final step.
func (m *Machine) ConfirmSecondaryIdOtp(ctx context.Context, sessionID, code string) (*ConfirmOtpResult, error) {
	var (
		nextStep int
		masked   string
	)

	opErr, err := m.confirmOtp(ctx, sessionID, code,
		func(sess *models.SignupSession) (**models.OTPState, *Error) {
			if sess.SecondaryID == nil || sess.SecondaryID.Status != models.IDVerificationOtpSent {
				return nil, errPrecondition("Identity verification has not been started for this step")
			}
			return &sess.SecondaryID.OTP, nil
		},
		func(sess *models.SignupSession) {
			now := m.Now()
			sess.SecondaryID.Status = models.IDVerificationVerified
			sess.SecondaryID.VerifiedAt = &now
			sess.AdvanceTo(models.StepPin)
			nextStep = sess.CurrentStep
			masked = identity.MaskSecondaryID(sess.SecondaryID.LastFour)
		},
	)
	m.auditOtpOutcome(sessionID, models.VerificationKindSecondaryID, opErr, err,
		map[string]any{"masked_identifier": masked})
	if err != nil {
		return nil, err
	}
	if opErr != nil {
		return nil, opErr
	}

	return &ConfirmOtpResult{NextStep: nextStep, MaskedIdentifier: masked}, nil
}

// SetupPin is the only irreversible transition: it validates the PIN,
// delegates to the provisioner and retires the session. Once a session is
// completed this verb is rejected outright.
func (m *Machine) SetupPin(ctx context.Context, sessionID, rawPin, confirmPin string, termsAccepted bool) (*SetupPinResult, error) {
	sess, found, err := m.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errSessionNotFound()
	}

	if sess.Completed {
		return nil, errPrecondition("Signup has already been completed for this session")
	}
	if sess.CurrentStep < models.StepPin {
		return nil, errPrecondition("Secondary identity verification must be completed first")
	}
	if !sess.AllVerified() {
		return nil, errNotAllVerified()
	}

	fieldErrors := map[string]string{}
	if !validator.Matches(rawPin, validator.RgxPin) {
		fieldErrors["pin"] = "PIN must be exactly 6 digits"
	} else if pin.IsTrivial(rawPin) {
		fieldErrors["pin"] = "PIN is too easy to guess"
	}
	if rawPin != confirmPin {
		fieldErrors["confirmPin"] = "PINs do not match"
	}
	if !termsAccepted {
		fieldErrors["termsAccepted"] = "You must accept the terms and conditions"
	}
	if len(fieldErrors) > 0 {
		return nil, errValidation(fieldErrors)
	}

	result, err := m.provisioner.Provision(ctx, sess, rawPin)
	if err != nil {
		if errors.Is(err, provision.ErrSessionIncomplete) {
			return nil, errNotAllVerified()
		}
		return nil, err
	}

	m.logger.Info("signup completed", "session_id", sessionID, "handle", result.Handle)

	return &SetupPinResult{
		UserID:        result.UserID,
		AccountHandle: result.Handle,
		AccountNumber: result.AccountNumber,
		HolderName:    result.HolderName,
		Email:         result.Email,
	}, nil
}

// confirmOtp runs the shared OTP gating inside one atomic session update.
// selectOtp picks which challenge slot the step uses; onSuccess applies the
// step's state change after a match. The returned *Error covers attempt
// increments that must persist even though the transition failed.
func (m *Machine) confirmOtp(ctx context.Context, sessionID, code string,
	selectOtp func(sess *models.SignupSession) (**models.OTPState, *Error),
	onSuccess func(sess *models.SignupSession)) (*Error, error) {

	var opErr *Error

	_, err := m.sessions.Update(ctx, sessionID, func(sess *models.SignupSession) error {
		if sess.Completed {
			return errPrecondition("Signup has already been completed for this session")
		}

		slot, preErr := selectOtp(sess)
		if preErr != nil {
			return preErr
		}

		state := *slot
		if state == nil {
			return errNoOtp()
		}
		if state.Attempts >= MaxOtpAttempts {
			return errTooManyAttempts()
		}
		if state.Expired(m.Now()) {
			return errOtpExpired()
		}

		if code != state.Code {
			// The increment must survive the failed transition, so the
			// mutation is persisted and the error reported out of band.
			state.Attempts++
			opErr = errWrongOtp(MaxOtpAttempts - state.Attempts)
			return nil
		}

		// Single use: the code is cleared the moment it matches.
		*slot = nil
		onSuccess(sess)
		return nil
	})
	if err != nil {
		return nil, m.mapSessionError(err)
	}

	return opErr, nil
}

// loadSessionForIDStep fetches the session and applies the shared gates for
// the identity verification request verbs.
func (m *Machine) loadSessionForIDStep(ctx context.Context, sessionID string, requiredStep int, preconditionMsg string) (*models.SignupSession, error) {
	sess, found, err := m.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errSessionNotFound()
	}

	if sess.Completed {
		return nil, errPrecondition("Signup has already been completed for this session")
	}
	if sess.CurrentStep < requiredStep {
		return nil, errPrecondition(preconditionMsg)
	}
	if sess.Personal == nil {
		return nil, errPrecondition("Personal details must be submitted first")
	}

	return sess, nil
}

func (m *Machine) validatePersonalDetails(input PersonalDetailsInput) map[string]string {
	fieldErrors := map[string]string{}

	name := input.FullName
	if !validator.NotBlank(name) || !validator.MinRunes(name, 2) || !validator.MaxRunes(name, 100) {
		fieldErrors["fullName"] = "Full name must be between 2 and 100 characters"
	}

	if !validator.IsEmail(input.Email) {
		fieldErrors["email"] = "Must be a valid email address"
	}

	now := m.Now()
	switch {
	case input.DateOfBirth.IsZero():
		fieldErrors["dateOfBirth"] = "Date of birth is required"
	case input.DateOfBirth.After(now):
		fieldErrors["dateOfBirth"] = "Date of birth cannot be in the future"
	default:
		age := yearsBetween(input.DateOfBirth, now)
		if age < 18 {
			fieldErrors["dateOfBirth"] = "You must be at least 18 years old"
		} else if age > 120 {
			fieldErrors["dateOfBirth"] = "Please enter a valid date of birth"
		}
	}

	if !validator.In(input.Gender, "M", "F", "O") {
		fieldErrors["gender"] = "Gender must be one of M, F or O"
	}

	return fieldErrors
}

func (m *Machine) mapSessionError(err error) error {
	if errors.Is(err, session.ErrNotFound) {
		return errSessionNotFound()
	}
	return err
}

// auditOtpOutcome emits the audit event for a confirm verb. Precondition
// and not-found failures are not verification outcomes and are skipped.
func (m *Machine) auditOtpOutcome(sessionID, kind string, opErr *Error, err error, response map[string]any) {
	switch {
	case err == nil && opErr == nil:
		m.emitVerificationEvent(sessionID, kind, models.VerificationStatusSuccess, response)
	case opErr != nil && opErr.Kind == KindWrongOtp:
		m.emitVerificationEvent(sessionID, kind, models.VerificationStatusFailed,
			map[string]any{"reason": "wrong_otp", "attempts_left": opErr.AttemptsLeft})
	case err != nil:
		if sErr := AsError(err); sErr != nil {
			switch sErr.Kind {
			case KindNoOtp, KindOtpExpired, KindTooManyAttempts:
				m.emitVerificationEvent(sessionID, kind, models.VerificationStatusFailed,
					map[string]any{"reason": string(sErr.Kind)})
			}
		}
	}
}

func (m *Machine) sendOtp(ctx context.Context, kind, destination, code string) {
	message := notifier.Message{
		Kind:        kind,
		Destination: destination,
		Body:        fmt.Sprintf("Your Nivo verification code is %s. It expires in 5 minutes.", code),
	}

	// Fire and forget; delivery problems never fail the transition.
	if err := m.notifier.Send(ctx, message); err != nil {
		m.logger.Error("sms delivery failed", "kind", kind, "error", err)
	}
}

func yearsBetween(from, to time.Time) int {
	years := to.Year() - from.Year()
	if to.Month() < from.Month() || (to.Month() == from.Month() && to.Day() < from.Day()) {
		years--
	}
	return years
}
