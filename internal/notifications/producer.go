package notifications

import (
	"context"
	"fmt"
	"log"
	"time"

	"tripgo/internal/bookings"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// KafkaProducerConfig contains configuration for the Kafka booking event producer
type KafkaProducerConfig struct {
	Brokers          []string
	Topic            string
	RetryMax         int
	Timeout          time.Duration
	RequiredAcks     sarama.RequiredAcks
	CompressionType  sarama.CompressionCodec
	IdempotentWrites bool
}

// DefaultKafkaProducerConfig returns a default producer configuration
func DefaultKafkaProducerConfig() *KafkaProducerConfig {
	return &KafkaProducerConfig{
		Brokers:          []string{"localhost:9092"},
		Topic:            "booking-notifications",
		RetryMax:         3,
		Timeout:          10 * time.Second,
		RequiredAcks:     sarama.WaitForAll,
		CompressionType:  sarama.CompressionSnappy,
		IdempotentWrites: true,
	}
}

// KafkaProducer publishes booking lifecycle events to Kafka. It implements
// bookings.Notifier.
type KafkaProducer struct {
	producer sarama.SyncProducer
	config   *KafkaProducerConfig
}

// NewKafkaProducer creates a new Kafka booking event producer
func NewKafkaProducer(config *KafkaProducerConfig) (*KafkaProducer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = config.RequiredAcks
	saramaConfig.Producer.Compression = config.CompressionType
	saramaConfig.Producer.Retry.Max = config.RetryMax
	saramaConfig.Producer.Timeout = config.Timeout
	saramaConfig.Producer.Idempotent = config.IdempotentWrites
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner

	if config.IdempotentWrites {
		saramaConfig.Net.MaxOpenRequests = 1
	}

	producer, err := sarama.NewSyncProducer(config.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	log.Printf("Kafka booking event producer created")
	return &KafkaProducer{
		producer: producer,
		config:   config,
	}, nil
}

// NotifyBookingEvent publishes a lifecycle event for the booking
func (kp *KafkaProducer) NotifyBookingEvent(ctx context.Context, booking *bookings.Booking, event string) error {
	msg := &BookingEvent{
		ID:           uuid.New(),
		Event:        event,
		BookingID:    booking.ID,
		Reference:    booking.Reference,
		TripID:       booking.TripID,
		Status:       booking.Status.String(),
		ContactName:  booking.ContactName,
		ContactEmail: booking.ContactEmail,
		SeatCodes:    booking.SeatCodes(),
		Total:        booking.Total,
		Currency:     booking.Currency,
		CreatedAt:    time.Now(),
	}

	messageBytes, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal booking event: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: kp.config.Topic,
		Key:   sarama.StringEncoder(msg.PartitionKey()),
		Value: sarama.ByteEncoder(messageBytes),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_id"), Value: []byte(msg.ID.String())},
			{Key: []byte("event_type"), Value: []byte(event)},
			{Key: []byte("booking_id"), Value: []byte(booking.ID.String())},
			{Key: []byte("producer"), Value: []byte("tripgo-bookings")},
		},
		Timestamp: msg.CreatedAt,
	}

	partition, offset, err := kp.producer.SendMessage(message)
	if err != nil {
		return fmt.Errorf("failed to send booking event to Kafka: %w", err)
	}

	log.Printf("Booking event published - Topic: %s, Partition: %d, Offset: %d, Event: %s, Booking: %s",
		kp.config.Topic, partition, offset, event, booking.Reference)
	return nil
}

// Close closes the Kafka producer
func (kp *KafkaProducer) Close() error {
	if kp.producer != nil {
		if err := kp.producer.Close(); err != nil {
			return fmt.Errorf("failed to close Kafka producer: %w", err)
		}
		log.Printf("Kafka booking event producer closed")
	}
	return nil
}
