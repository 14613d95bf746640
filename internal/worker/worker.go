package worker

import (
	"context"

	"github.com/nivobank/nivo/internal/helper"
	"github.com/nivobank/nivo/internal/repository"
	"github.com/nivobank/nivo/internal/session"
	"github.com/nivobank/nivo/internal/smtp"
	"github.com/nivobank/nivo/internal/stream"
)

type Worker struct {
	KafkaStream *stream.KafkaStream
	DB          repository.Database
	Sessions    *session.Store
	Mailer      smtp.MailerInterface
	Helper      *helper.HelperRepository
	Ctx         context.Context
}

const (
	// verificationAuditGroupID is used by the worker that appends every
	// verification attempt outcome to the audit table.
	verificationAuditGroupID = "verification-audit-group"

	// accountOpenedGroupID is used by the worker that sends the welcome
	// email once an account has been created.
	accountOpenedGroupID = "account-opened-group"

	// Topics
	// AccountOpenedTopic announces that a signup finished and the permanent
	// user and bank account entities exist.
	AccountOpenedTopic = "account.opened"
)

// Our workers typically need the database, the session store and the kafka
// event stream; anything worker-specific is passed as an argument.
func New(wk *Worker) *Worker {
	return &Worker{
		KafkaStream: wk.KafkaStream,
		DB:          wk.DB,
		Sessions:    wk.Sessions,
		Mailer:      wk.Mailer,
		Helper:      wk.Helper,
		Ctx:         wk.Ctx,
	}
}

// AccountOpenedEvent is the payload produced on AccountOpenedTopic.
type AccountOpenedEvent struct {
	UserID        string `json:"user_id"`
	Handle        string `json:"handle"`
	AccountNumber string `json:"account_number"`
	HolderName    string `json:"holder_name"`
	Email         string `json:"email"`
}
