package kafka

import (
	"context"
	"fmt"

	"github.com/cloudcart/invoice-service/internal/entity"
	"github.com/cloudcart/invoice-service/pkg/kafka/producer"
	"github.com/segmentio/kafka-go"
)

type EventProducer struct {
	*producer.Producer
	invoiceTopic    string
	deadLetterTopic string
}

func NewEventProducer(producer *producer.Producer, invoiceTopic, deadLetterTopic string) *EventProducer {
	return &EventProducer{
		producer,
		invoiceTopic,
		deadLetterTopic,
	}
}

func (ep *EventProducer) SendEvents(ctx context.Context, events []*entity.OutboxEvent) error {
	var msgsToSend []kafka.Message

	for _, event := range events {
		msg := kafka.Message{
			Topic: ep.invoiceTopic,
			Key:   []byte(event.AggregateID.String()),
			Value: event.Payload,
			Headers: []kafka.Header{
				{Key: "event_id", Value: []byte(event.ID.String())},
			},
		}
		msgsToSend = append(msgsToSend, msg)
	}

	if len(msgsToSend) == 0 {
		return nil
	}

	err := ep.Writer.WriteMessages(ctx, msgsToSend...)
	if err != nil {
		return fmt.Errorf("EventProducer - SendEvents - ep.Writer.WriteMessages: %w", err)
	}

	return nil
}

// SendDeadLetter forwards a rejected inbound payload unchanged, with the
// rejection reason attached as a header.
func (ep *EventProducer) SendDeadLetter(ctx context.Context, key, value []byte, reason string) error {
	err := ep.Writer.WriteMessages(ctx, kafka.Message{
		Topic: ep.deadLetterTopic,
		Key:   key,
		Value: value,
		Headers: []kafka.Header{
			{Key: "reason", Value: []byte(reason)},
		},
	})
	if err != nil {
		return fmt.Errorf("EventProducer - SendDeadLetter - ep.Writer.WriteMessages: %w", err)
	}

	return nil
}

func (ep *EventProducer) Close() error {
	err := ep.Producer.Close()
	if err != nil {
		return fmt.Errorf("EventProducer - Close: %w", err)
	}

	return nil
}
