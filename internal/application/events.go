package application

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/AzizTN01/autorent-back/pkg/kafka"
)

// Topics and event types published by the rental service.
const (
	EventSource       = "autorent-rental"
	TopicRentalEvents = "rental.events"

	RentalCreated        = "rental.created"
	RentalStatusChanged  = "rental.status_changed"
	RentalPaymentChanged = "rental.payment_changed"
	RentalRescheduled    = "rental.rescheduled"
)

// EventPublisher publishes CloudEvents. *kafka.Producer implements it.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic, key string, ce kafka.CloudEvent) error
}

// NopPublisher drops every event. Used when the event bus is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishEvent(context.Context, string, string, kafka.CloudEvent) error {
	return nil
}

// RentalCreatedEvent is published after a rental is stored.
type RentalCreatedEvent struct {
	RentalID   uuid.UUID `json:"rentalId"`
	UserID     uuid.UUID `json:"userId"`
	CarID      uuid.UUID `json:"carId"`
	StartDate  time.Time `json:"rentalStartDate"`
	EndDate    time.Time `json:"rentalEndDate"`
	TotalCost  float64   `json:"totalCost"`
	Linked     bool      `json:"linked"`
	OccurredAt time.Time `json:"occurredAt"`
}

// RentalStatusChangedEvent is published after every lifecycle transition.
type RentalStatusChangedEvent struct {
	RentalID   uuid.UUID `json:"rentalId"`
	UserID     uuid.UUID `json:"userId"`
	CarID      uuid.UUID `json:"carId"`
	Status     string    `json:"status"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// RentalPaymentChangedEvent is published after every payment transition.
type RentalPaymentChangedEvent struct {
	RentalID      uuid.UUID `json:"rentalId"`
	UserID        uuid.UUID `json:"userId"`
	PaymentStatus string    `json:"paymentStatus"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// RentalRescheduledEvent is published after a rental's period moves.
type RentalRescheduledEvent struct {
	RentalID   uuid.UUID `json:"rentalId"`
	CarID      uuid.UUID `json:"carId"`
	StartDate  time.Time `json:"rentalStartDate"`
	EndDate    time.Time `json:"rentalEndDate"`
	OccurredAt time.Time `json:"occurredAt"`
}
