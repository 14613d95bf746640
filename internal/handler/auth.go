package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/nivobank/nivo/internal/pin"
	"github.com/nivobank/nivo/internal/request"
	"github.com/nivobank/nivo/internal/response"
	"github.com/nivobank/nivo/internal/validator"

	"github.com/pascaldekloe/jwt"
)

// Login is phone number plus transaction PIN. Wrong PINs burn attempts and
// the account locks itself for a while after the third one; the lockout
// bookkeeping lives in the pin package.
func (h *RouteHandler) HandleAuthLogin(w http.ResponseWriter, r *http.Request) {
	var input struct {
		PhoneNumber string              `json:"phone_number"`
		Pin         string              `json:"pin"`
		Validator   validator.Validator `json:"-"`
	}

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.ErrHandler.BadRequest(w, r, err)
		return
	}

	input.Validator.Check(validator.NotBlank(input.PhoneNumber), "Phone number is required")
	input.Validator.Check(validator.Matches(input.PhoneNumber, validator.RgxPhoneNumber), "Phone number must be a valid 10-digit mobile number")
	input.Validator.Check(validator.NotBlank(input.Pin), "PIN is required")

	if input.Validator.HasErrors() {
		h.ErrHandler.FailedValidation(w, r, input.Validator.Errors)
		return
	}

	user, found, err := h.DB.User().GetByPhone(input.PhoneNumber)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	if !found {
		h.ErrHandler.FailedValidation(w, r, []string{"Incorrect phone number/PIN"})
		return
	}

	result, err := h.Pin.Verify(user, input.Pin)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	switch result.Status {
	case pin.StatusOk:
		// fall through to token issuance

	case pin.StatusLocked:
		message := fmt.Sprintf("Too many failed attempts. Try again after %s", result.LockedUntil.Format(time.Kitchen))
		response.JSONErrorResponse(w, nil, message, http.StatusForbidden, nil)
		return

	case pin.StatusWrong:
		message := fmt.Sprintf("Incorrect PIN. %d attempts left", result.AttemptsLeft)
		response.JSONErrorResponse(w, map[string]any{"attempts_left": result.AttemptsLeft}, message, http.StatusUnauthorized, nil)
		return

	default:
		h.ErrHandler.FailedValidation(w, r, []string{"Incorrect phone number/PIN"})
		return
	}

	var claims jwt.Claims
	claims.Subject = user.ID

	expiry := time.Now().Add(24 * time.Hour)
	claims.Issued = jwt.NewNumericTime(time.Now())
	claims.NotBefore = jwt.NewNumericTime(time.Now())
	claims.Expires = jwt.NewNumericTime(expiry)

	claims.Issuer = h.Config.BaseURL
	claims.Audiences = []string{h.Config.BaseURL}

	jwtBytes, err := claims.HMACSign(jwt.HS256, []byte(h.Config.Jwt.SecretKey))
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	data := map[string]string{
		"auth_token":   string(jwtBytes),
		"token_expiry": expiry.Format(time.RFC3339),
	}
	message := "Login successful"
	err = response.JSONOkResponse(w, data, message, nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}
