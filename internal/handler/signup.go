package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/nivobank/nivo/internal/request"
	"github.com/nivobank/nivo/internal/response"
	"github.com/nivobank/nivo/internal/signup"
	"github.com/nivobank/nivo/internal/worker"
)

// Signup is a staged flow. Each endpoint drives exactly one transition of
// the verification step machine and the machine decides whether the
// session is far enough along for it.

func (h *RouteHandler) HandleSignupRequestOtp(w http.ResponseWriter, r *http.Request) {
	var input struct {
		PhoneNumber string `json:"phone_number"`
		CountryCode string `json:"country_code"`
	}

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.ErrHandler.BadRequest(w, r, err)
		return
	}

	result, err := h.Signup.RequestMobileOtp(r.Context(), input.PhoneNumber, input.CountryCode)
	if err != nil {
		h.respondSignupError(w, r, err)
		return
	}

	data := map[string]any{
		"session_id": result.SessionID,
		"expires_in": result.ExpiresInSeconds,
	}
	message := "An OTP has been sent to your mobile number"
	err = response.JSONOkResponse(w, data, message, nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *RouteHandler) HandleSignupConfirmOtp(w http.ResponseWriter, r *http.Request) {
	var input struct {
		SessionID string `json:"session_id"`
		Otp       string `json:"otp"`
	}

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.ErrHandler.BadRequest(w, r, err)
		return
	}

	result, err := h.Signup.ConfirmMobileOtp(r.Context(), input.SessionID, input.Otp)
	if err != nil {
		h.respondSignupError(w, r, err)
		return
	}

	data := map[string]any{
		"next_step": result.NextStep,
	}
	message := "Mobile number verified"
	err = response.JSONOkResponse(w, data, message, nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *RouteHandler) HandleSignupPersonalDetails(w http.ResponseWriter, r *http.Request) {
	var input struct {
		SessionID   string `json:"session_id"`
		FullName    string `json:"full_name"`
		Email       string `json:"email"`
		DateOfBirth string `json:"date_of_birth"`
		Gender      string `json:"gender"`
	}

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.ErrHandler.BadRequest(w, r, err)
		return
	}

	var dateOfBirth time.Time
	if input.DateOfBirth != "" {
		dateOfBirth, err = time.Parse("2006-01-02", input.DateOfBirth)
		if err != nil {
			h.ErrHandler.FailedValidation(w, r, map[string]string{
				"dateOfBirth": "Date of birth must be in YYYY-MM-DD format",
			})
			return
		}
	}

	result, err := h.Signup.SubmitPersonalDetails(r.Context(), input.SessionID, signup.PersonalDetailsInput{
		FullName:    input.FullName,
		Email:       input.Email,
		DateOfBirth: dateOfBirth,
		Gender:      input.Gender,
	})
	if err != nil {
		h.respondSignupError(w, r, err)
		return
	}

	data := map[string]any{
		"next_step": result.NextStep,
	}
	message := "Personal details saved"
	err = response.JSONOkResponse(w, data, message, nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *RouteHandler) HandleSignupRequestPrimaryIdOtp(w http.ResponseWriter, r *http.Request) {
	var input struct {
		SessionID  string `json:"session_id"`
		Identifier string `json:"identifier"`
		Address    string `json:"address"`
	}

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.ErrHandler.BadRequest(w, r, err)
		return
	}

	result, err := h.Signup.RequestPrimaryIdOtp(r.Context(), input.SessionID, input.Identifier, input.Address)
	if err != nil {
		h.respondSignupError(w, r, err)
		return
	}

	h.respondIDOtpSent(w, r, result)
}

func (h *RouteHandler) HandleSignupConfirmPrimaryIdOtp(w http.ResponseWriter, r *http.Request) {
	var input struct {
		SessionID string `json:"session_id"`
		Otp       string `json:"otp"`
	}

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.ErrHandler.BadRequest(w, r, err)
		return
	}

	result, err := h.Signup.ConfirmPrimaryIdOtp(r.Context(), input.SessionID, input.Otp)
	if err != nil {
		h.respondSignupError(w, r, err)
		return
	}

	data := map[string]any{
		"next_step":         result.NextStep,
		"masked_identifier": result.MaskedIdentifier,
	}
	message := "Primary identity verified"
	err = response.JSONOkResponse(w, data, message, nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *RouteHandler) HandleSignupRequestSecondaryIdOtp(w http.ResponseWriter, r *http.Request) {
	var input struct {
		SessionID  string `json:"session_id"`
		Identifier string `json:"identifier"`
	}

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.ErrHandler.BadRequest(w, r, err)
		return
	}

	result, err := h.Signup.RequestSecondaryIdOtp(r.Context(), input.SessionID, input.Identifier)
	if err != nil {
		h.respondSignupError(w, r, err)
		return
	}

	h.respondIDOtpSent(w, r, result)
}

func (h *RouteHandler) HandleSignupConfirmSecondaryIdOtp(w http.ResponseWriter, r *http.Request) {
	var input struct {
		SessionID string `json:"session_id"`
		Otp       string `json:"otp"`
	}

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.ErrHandler.BadRequest(w, r, err)
		return
	}

	result, err := h.Signup.ConfirmSecondaryIdOtp(r.Context(), input.SessionID, input.Otp)
	if err != nil {
		h.respondSignupError(w, r, err)
		return
	}

	data := map[string]any{
		"next_step":         result.NextStep,
		"masked_identifier": result.MaskedIdentifier,
	}
	message := "Secondary identity verified"
	err = response.JSONOkResponse(w, data, message, nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *RouteHandler) HandleSignupSetupPin(w http.ResponseWriter, r *http.Request) {
	var input struct {
		SessionID     string `json:"session_id"`
		Pin           string `json:"pin"`
		ConfirmPin    string `json:"confirm_pin"`
		TermsAccepted bool   `json:"terms_accepted"`
	}

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.ErrHandler.BadRequest(w, r, err)
		return
	}

	result, err := h.Signup.SetupPin(r.Context(), input.SessionID, input.Pin, input.ConfirmPin, input.TermsAccepted)
	if err != nil {
		h.respondSignupError(w, r, err)
		return
	}

	// The welcome email is sent by the worker consuming this topic.
	h.Helper.BackgroundTask(r, func() error {
		opened := worker.AccountOpenedEvent{
			UserID:        result.UserID,
			Handle:        result.AccountHandle,
			AccountNumber: result.AccountNumber,
			HolderName:    result.HolderName,
			Email:         result.Email,
		}

		payload, err := json.Marshal(opened)
		if err != nil {
			log.Printf("Error encoding account opened event: %v", err)
			return err
		}

		if err := h.Kafka.ProduceMessage(worker.AccountOpenedTopic, string(payload)); err != nil {
			log.Printf("Error producing account opened event: %v", err)
			return err
		}

		return nil
	})

	data := map[string]any{
		"account_handle": result.AccountHandle,
		"account_number": result.AccountNumber,
		"holder_name":    result.HolderName,
		"bank_name":      BankName,
	}
	message := "Account created successfully"
	err = response.JSONCreatedResponse(w, data, message)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *RouteHandler) respondIDOtpSent(w http.ResponseWriter, r *http.Request, result *signup.RequestIDOtpResult) {
	data := map[string]any{
		"masked_identifier": result.MaskedIdentifier,
		"holder_name":       result.HolderName,
		"expires_in":        result.ExpiresInSeconds,
	}
	message := "An OTP has been sent to your registered mobile number"
	err := response.JSONOkResponse(w, data, message, nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

// respondSignupError translates a failed transition into a status code.
// Anything that is not a transition error is a genuine server fault.
func (h *RouteHandler) respondSignupError(w http.ResponseWriter, r *http.Request, err error) {
	sErr := signup.AsError(err)
	if sErr == nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	switch sErr.Kind {
	case signup.KindValidation:
		h.ErrHandler.FailedValidation(w, r, sErr.FieldErrors)

	case signup.KindNotFound:
		h.ErrHandler.NotFoundMessage(w, r, sErr.Message)

	case signup.KindRecordNotFound:
		h.ErrHandler.NotFoundMessage(w, r, sErr.Message)

	case signup.KindTooManyAttempts:
		h.ErrHandler.TooManyRequests(w, r, sErr.Message, map[string]any{"should_resend": true})

	case signup.KindWrongOtp:
		response.JSONErrorResponse(w, map[string]any{"attempts_left": sErr.AttemptsLeft}, sErr.Message, http.StatusBadRequest, nil)

	case signup.KindNoOtp, signup.KindOtpExpired:
		response.JSONErrorResponse(w, map[string]any{"should_resend": true}, sErr.Message, http.StatusBadRequest, nil)

	case signup.KindIdentityMismatch:
		response.JSONErrorResponse(w, map[string]any{"mismatched_fields": sErr.Fields}, sErr.Message, http.StatusUnprocessableEntity, nil)

	case signup.KindPreconditionNotMet, signup.KindNotAllVerified:
		response.JSONErrorResponse(w, nil, sErr.Message, http.StatusConflict, nil)

	default:
		h.ErrHandler.ServerError(w, r, err)
	}
}
