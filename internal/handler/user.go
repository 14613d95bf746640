package handler

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/nivobank/nivo/internal/context"
	"github.com/nivobank/nivo/internal/response"
)

func (h *RouteHandler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	user := context.ContextGetAuthenticatedUser(r)

	data := map[string]any{
		"id":                  user.ID,
		"handle":              user.Handle,
		"full_name":           user.FullName,
		"phone_number":        user.PhoneNumber,
		"country_code":        user.CountryCode,
		"email":               user.Email,
		"gender":              user.Gender,
		"address_line":        user.AddressLine,
		"primary_id_masked":   user.PrimaryIDMasked,
		"secondary_id_masked": user.SecondaryIDMasked,
		"image":               user.Image.String,
	}

	account, found, err := h.DB.BankAccount().GetByUser(user.ID)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}
	if found {
		data["account_number"] = account.AccountNumber
		data["account_name"] = account.DisplayName
	}

	err = response.JSONOkResponse(w, data, "", nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

// HandleChangeProfilePicture stages the multipart upload on disk, pushes it
// to cloud storage and saves the returned URL on the user.
func (h *RouteHandler) HandleChangeProfilePicture(w http.ResponseWriter, r *http.Request) {
	user := context.ContextGetAuthenticatedUser(r)

	err := r.ParseMultipartForm(10 << 20) // 10 MB
	if err != nil {
		message := errors.New("invalid request data")
		h.ErrHandler.BadRequest(w, r, message)
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		message := errors.New("error retrieving the file")
		h.ErrHandler.BadRequest(w, r, message)
		return
	}
	defer file.Close()

	fileExtension := filepath.Ext(fileHeader.Filename)

	tempFile, err := os.CreateTemp("", fmt.Sprintf("upload-*%s", fileExtension))
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}
	defer tempFile.Close()
	defer os.Remove(tempFile.Name())

	_, err = tempFile.ReadFrom(file)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	fileUrl, err := h.FileUploader.UploadFile(tempFile.Name())
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	if err := h.DB.User().ChangeProfilePicture(user.ID, fileUrl); err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	data := map[string]any{
		"image": fileUrl,
	}
	message := "Profile picture updated"
	err = response.JSONOkResponse(w, data, message, nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}
