package app

import (
	"net/http"

	"github.com/nivobank/nivo/internal/handler"
	"github.com/nivobank/nivo/internal/middleware"
)

func (app *Application) routes() http.Handler {
	mux := http.NewServeMux()

	middlewareRepo := middleware.New(app.errorHandler, app.Logger, app.DB.User(), &app.Config)

	routeHandler := handler.NewRouteHandler(&handler.RouteHandler{
		Signup:       app.Signup,
		DB:           app.DB,
		Pin:          app.Pin,
		ErrHandler:   app.errorHandler,
		Helper:       app.Helper,
		Kafka:        app.Kafka,
		FileUploader: app.FileUploader,
		Config:       &app.Config,
	})
	healthHandler := handler.NewHealthCheckHandler(app.errorHandler)

	mux.HandleFunc("GET /status", healthHandler.HandleHealthCheck)

	mux.HandleFunc("POST /signup/otp/request", routeHandler.HandleSignupRequestOtp)
	mux.HandleFunc("POST /signup/otp/confirm", routeHandler.HandleSignupConfirmOtp)
	mux.HandleFunc("POST /signup/personal-details", routeHandler.HandleSignupPersonalDetails)
	mux.HandleFunc("POST /signup/primary-id/request", routeHandler.HandleSignupRequestPrimaryIdOtp)
	mux.HandleFunc("POST /signup/primary-id/confirm", routeHandler.HandleSignupConfirmPrimaryIdOtp)
	mux.HandleFunc("POST /signup/secondary-id/request", routeHandler.HandleSignupRequestSecondaryIdOtp)
	mux.HandleFunc("POST /signup/secondary-id/confirm", routeHandler.HandleSignupConfirmSecondaryIdOtp)
	mux.HandleFunc("POST /signup/pin", routeHandler.HandleSignupSetupPin)

	mux.HandleFunc("POST /auth/login", routeHandler.HandleAuthLogin)

	mux.Handle("GET /me", middlewareRepo.RequireAuthenticatedUser(http.HandlerFunc(routeHandler.HandleGetProfile)))
	mux.Handle("PATCH /me/profile-picture", middlewareRepo.RequireAuthenticatedUser(http.HandlerFunc(routeHandler.HandleChangeProfilePicture)))

	return middlewareRepo.LogAccess(middlewareRepo.RecoverPanic(middlewareRepo.Authenticate(mux)))
}
