// Every verification attempt outcome — pending, success or failed — is
// published by the signup machine and appended here to the
// verification_records table. The table is the compliance audit trail; the
// signup flow itself never reads it.
package worker

import (
	"encoding/json"
	"log"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/jmoiron/sqlx/types"
	"github.com/nivobank/nivo/internal/models"
	"github.com/nivobank/nivo/internal/signup"
	"github.com/nivobank/nivo/internal/stream"
)

func (wk *Worker) VerificationAuditWorker() {
	consumer, err := wk.KafkaStream.CreateConsumer(&stream.StreamConsumer{
		GroupId: verificationAuditGroupID,
		Topic:   signup.VerificationEventsTopic,
	})

	if err != nil {
		log.Fatalf("Error creating consumer: %v", err)
	}
	defer consumer.Close()

	for {
		select {
		case <-wk.Ctx.Done():
			log.Println("VerificationAuditWorker received cancellation signal, shutting down...")
			return
		default:
			event := consumer.Poll(100)
			switch e := event.(type) {
			case *kafka.Message:
				var verificationEvent signup.VerificationEvent
				if err := json.Unmarshal(e.Value, &verificationEvent); err != nil {
					log.Printf("Error decoding verification event: %v", err)
					continue
				}

				wk.appendVerificationRecord(&verificationEvent)
			case kafka.Error:
				log.Printf("Error: %v\n", e)
			case *kafka.AssignedPartitions:
				consumer.Assign(e.Partitions)
			case *kafka.RevokedPartitions:
				consumer.Unassign()
			}
		}
	}
}

func (wk *Worker) appendVerificationRecord(event *signup.VerificationEvent) {
	response, err := json.Marshal(event.Response)
	if err != nil {
		log.Printf("Error encoding verification response: %v", err)
		return
	}

	record := &models.VerificationRecord{
		SessionID: event.SessionID,
		Kind:      event.Kind,
		Status:    event.Status,
		Response:  types.JSONText(response),
	}

	if _, err := wk.DB.Verification().Insert(record); err != nil {
		log.Printf("Error inserting verification record: %v", err)
	}
}
