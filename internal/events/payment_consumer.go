package events

import (
	"context"
	"errors"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/AzizTN01/autorent-back/internal/application"
	"github.com/AzizTN01/autorent-back/internal/domain/rental"
	"github.com/AzizTN01/autorent-back/pkg/domain"
	"github.com/AzizTN01/autorent-back/pkg/kafka"
)

// Payment topic and the event types this service reacts to.
const (
	TopicPaymentEvents = "payment.events"

	PaymentCaptured = "payment.captured"
	PaymentRefunded = "payment.refunded"
)

// PaymentEvent is the data carried by payment CloudEvents.
type PaymentEvent struct {
	PaymentID uuid.UUID `json:"paymentId"`
	RentalID  uuid.UUID `json:"rentalId"`
	Amount    float64   `json:"amount"`
}

// PaymentUpdater applies payment transitions. *application.RentalService
// implements it.
type PaymentUpdater interface {
	SetPaymentStatus(ctx context.Context, id uuid.UUID, status rental.PaymentStatus) (*application.RentalDTO, error)
}

// PaymentEventConsumer listens to payment events and moves rentals'
// payment status accordingly.
type PaymentEventConsumer struct {
	consumer *kafka.Consumer
	service  PaymentUpdater
	logger   *zap.Logger
}

// NewPaymentEventConsumer creates a new PaymentEventConsumer.
func NewPaymentEventConsumer(
	brokers []string,
	groupID string,
	service PaymentUpdater,
	logger *zap.Logger,
) *PaymentEventConsumer {
	return &PaymentEventConsumer{
		consumer: kafka.NewConsumer(brokers, groupID, TopicPaymentEvents, logger),
		service:  service,
		logger:   logger,
	}
}

// Start begins consuming payment events. This blocks until the context is cancelled.
func (c *PaymentEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// Close closes the underlying Kafka consumer.
func (c *PaymentEventConsumer) Close() error {
	return c.consumer.Close()
}

func (c *PaymentEventConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	cloudEvent, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse cloud event from payment topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return nil // Don't retry malformed messages
	}

	switch cloudEvent.Type {
	case PaymentCaptured:
		return c.applyPayment(ctx, cloudEvent, rental.PaymentPaid)
	case PaymentRefunded:
		return c.applyPayment(ctx, cloudEvent, rental.PaymentRefunded)
	default:
		c.logger.Debug("ignoring unhandled payment event type",
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}
}

func (c *PaymentEventConsumer) applyPayment(ctx context.Context, cloudEvent kafka.CloudEvent, status rental.PaymentStatus) error {
	var evt PaymentEvent
	if err := cloudEvent.ParseData(&evt); err != nil || evt.RentalID == uuid.Nil {
		c.logger.Error("failed to parse payment event data",
			zap.String("type", cloudEvent.Type),
			zap.Error(err),
		)
		return nil // Don't retry malformed data
	}

	_, err := c.service.SetPaymentStatus(ctx, evt.RentalID, status)
	switch {
	case err == nil:
		c.logger.Info("rental payment status updated",
			zap.String("rental_id", evt.RentalID.String()),
			zap.String("payment_id", evt.PaymentID.String()),
			zap.String("payment_status", string(status)),
		)
		return nil
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrInvalidState):
		// Redelivered or out-of-order events cannot succeed on retry.
		c.logger.Warn("payment event not applicable",
			zap.String("rental_id", evt.RentalID.String()),
			zap.String("type", cloudEvent.Type),
			zap.Error(err),
		)
		return nil
	default:
		c.logger.Error("failed to update rental payment status",
			zap.String("rental_id", evt.RentalID.String()),
			zap.Error(err),
		)
		return err
	}
}
