package context

import (
	"context"
	"net/http"

	"github.com/nivobank/nivo/internal/models"
)

type contextKey string

const (
	authenticatedUserContextKey = contextKey("authenticatedUser")
)

func ContextSetAuthenticatedUser(r *http.Request, user *models.User) *http.Request {
	ctx := context.WithValue(r.Context(), authenticatedUserContextKey, user)
	return r.WithContext(ctx)
}

func ContextGetAuthenticatedUser(r *http.Request) *models.User {
	user, ok := r.Context().Value(authenticatedUserContextKey).(*models.User)
	if !ok {
		return nil
	}

	return user
}
