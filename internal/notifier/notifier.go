package notifier

import (
	"context"
	"log/slog"
)

const (
	// KindMobileOtp identifies OTPs confirming control of the phone number.
	KindMobileOtp = "mobile_otp"

	// KindPrimaryIDOtp identifies OTPs gating primary identity verification.
	KindPrimaryIDOtp = "primary_id_otp"

	// KindSecondaryIDOtp identifies OTPs gating secondary identity verification.
	KindSecondaryIDOtp = "secondary_id_otp"
)

// Message is an SMS-shaped notification payload.
type Message struct {
	Kind        string
	Destination string
	Body        string
}

// Notifier delivers messages to the customer's phone. Delivery is
// fire-and-forget; callers never wait on a provider response.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LogNotifier writes messages to the structured logger instead of a real
// SMS gateway. It is the development/demo delivery channel.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("sms", "kind", message.Kind, "to", message.Destination, "body", message.Body)
	return nil
}
