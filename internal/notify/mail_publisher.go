// Package notify hands email work to an external delivery worker over
// RabbitMQ. The auth flows treat publishing as best-effort: a broker outage
// must never fail a registration or a password-reset request.
package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/dkachur-dev/contact-vault/internal/domain"
)

const mailQueue = "mail.jobs"

// RabbitMailPublisher implements domain.MailPublisher against a RabbitMQ
// broker. A fresh connection per publish keeps the implementation robust
// against broker restarts; mail volume here is a handful of messages per
// signup or reset, not a throughput concern.
type RabbitMailPublisher struct {
	url string
}

func NewRabbitMailPublisher(url string) *RabbitMailPublisher {
	return &RabbitMailPublisher{url: url}
}

// Publish enqueues one mail job as a persistent JSON message. Errors are
// logged and returned so the caller can decide to ignore them.
func (p *RabbitMailPublisher) Publish(ctx context.Context, job domain.MailJob) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		log.Printf("rabbitmq: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("rabbitmq: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	// Idempotent declare; durable so jobs survive broker restarts.
	if _, err := ch.QueueDeclare(mailQueue, true, false, false, false, nil); err != nil {
		log.Printf("rabbitmq: queue declare failed: %v", err)
		return err
	}

	body, err := json.Marshal(job)
	if err != nil {
		log.Printf("rabbitmq: marshal job failed: %v", err)
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx, "", mailQueue, false, false, pub); err != nil {
		log.Printf("rabbitmq: publish failed: %v", err)
		return err
	}

	return nil
}
