package handler

import (
	"github.com/nivobank/nivo/internal/config"
	"github.com/nivobank/nivo/internal/errHandler"
	"github.com/nivobank/nivo/internal/file"
	"github.com/nivobank/nivo/internal/helper"
	"github.com/nivobank/nivo/internal/pin"
	"github.com/nivobank/nivo/internal/repository"
	"github.com/nivobank/nivo/internal/signup"
)

const BankName = "Nivo"

type RouteHandler struct {
	Signup       *signup.Machine
	DB           repository.Database
	Pin          *pin.Security
	ErrHandler   *errHandler.ErrorHandler
	Helper       *helper.HelperRepository
	Kafka        signup.AuditProducer
	FileUploader *file.FileUploader
	Config       *config.Config
}

func NewRouteHandler(handler *RouteHandler) *RouteHandler {
	return &RouteHandler{
		Signup:       handler.Signup,
		DB:           handler.DB,
		Pin:          handler.Pin,
		ErrHandler:   handler.ErrHandler,
		Helper:       handler.Helper,
		Kafka:        handler.Kafka,
		FileUploader: handler.FileUploader,
		Config:       handler.Config,
	}
}
