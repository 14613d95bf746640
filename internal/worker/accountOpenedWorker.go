// A welcome email goes out once the permanent entities exist. Email
// delivery is deliberately off the request path: the signup handler
// publishes AccountOpenedTopic and this worker does the sending.
package worker

import (
	"encoding/json"
	"log"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/nivobank/nivo/internal/stream"
)

func (wk *Worker) AccountOpenedWorker() {
	consumer, err := wk.KafkaStream.CreateConsumer(&stream.StreamConsumer{
		GroupId: accountOpenedGroupID,
		Topic:   AccountOpenedTopic,
	})

	if err != nil {
		log.Fatalf("Error creating consumer: %v", err)
	}
	defer consumer.Close()

	for {
		select {
		case <-wk.Ctx.Done():
			log.Println("AccountOpenedWorker received cancellation signal, shutting down...")
			return
		default:
			event := consumer.Poll(100)
			switch e := event.(type) {
			case *kafka.Message:
				var opened AccountOpenedEvent
				if err := json.Unmarshal(e.Value, &opened); err != nil {
					log.Printf("Error decoding account opened event: %v", err)
					continue
				}

				wk.sendWelcomeEmail(&opened)
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

func (wk *Worker) sendWelcomeEmail(opened *AccountOpenedEvent) {
	wk.Helper.BackgroundTask(nil, func() error {
		emailData := wk.Helper.NewEmailData()
		emailData["Name"] = opened.HolderName
		emailData["BankName"] = "Nivo"
		emailData["AccountNumber"] = opened.AccountNumber
		emailData["Handle"] = opened.Handle

		if err := wk.Mailer.Send(opened.Email, emailData, "welcome.tmpl"); err != nil {
			log.Printf("Error sending welcome email: %v", err)
			return err
		}

		return nil
	})
}
