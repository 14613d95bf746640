package signup

import (
	"encoding/json"
	"log"
)

// VerificationEventsTopic carries one message per verification attempt
// outcome. A consumer appends them to the verification_records audit table.
const VerificationEventsTopic = "kyc.verification"

// VerificationEvent is the wire payload for audit messages.
type VerificationEvent struct {
	SessionID string         `json:"session_id"`
	Kind      string         `json:"kind"`
	Status    string         `json:"status"`
	Response  map[string]any `json:"response"`
}

// AuditProducer publishes verification events. Publishing is best-effort;
// transitions never fail because the broker is down.
type AuditProducer interface {
	ProduceMessage(topic, message string) error
}

func (m *Machine) emitVerificationEvent(sessionID, kind, status string, response map[string]any) {
	if m.producer == nil {
		return
	}

	event := VerificationEvent{
		SessionID: sessionID,
		Kind:      kind,
		Status:    status,
		Response:  response,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error encoding verification event: %v", err)
		return
	}

	if err := m.producer.ProduceMessage(VerificationEventsTopic, string(payload)); err != nil {
		log.Printf("Error producing verification event: %v", err)
	}
}
