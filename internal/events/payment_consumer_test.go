package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AzizTN01/autorent-back/internal/application"
	"github.com/AzizTN01/autorent-back/internal/domain/rental"
	"github.com/AzizTN01/autorent-back/pkg/domain"
	"github.com/AzizTN01/autorent-back/pkg/kafka"
)

type call struct {
	id     uuid.UUID
	status rental.PaymentStatus
}

type fakeUpdater struct {
	calls []call
	err   error
}

func (f *fakeUpdater) SetPaymentStatus(_ context.Context, id uuid.UUID, status rental.PaymentStatus) (*application.RentalDTO, error) {
	f.calls = append(f.calls, call{id, status})
	if f.err != nil {
		return nil, f.err
	}
	return &application.RentalDTO{ID: id, PaymentStatus: string(status)}, nil
}

func message(t *testing.T, eventType string, data any) kafkago.Message {
	t.Helper()
	ce, err := kafka.NewCloudEvent("payments", eventType, data)
	require.NoError(t, err)
	value, err := json.Marshal(ce)
	require.NoError(t, err)
	return kafkago.Message{Value: value}
}

func newTestConsumer(u PaymentUpdater) *PaymentEventConsumer {
	return &PaymentEventConsumer{service: u, logger: zap.NewNop()}
}

func TestHandleMessage_MapsPaymentEvents(t *testing.T) {
	u := &fakeUpdater{}
	c := newTestConsumer(u)
	id := uuid.New()

	require.NoError(t, c.handleMessage(context.Background(), message(t, PaymentCaptured, PaymentEvent{RentalID: id, Amount: 120})))
	require.NoError(t, c.handleMessage(context.Background(), message(t, PaymentRefunded, PaymentEvent{RentalID: id})))

	assert.Equal(t, []call{{id, rental.PaymentPaid}, {id, rental.PaymentRefunded}}, u.calls)
}

func TestHandleMessage_SkipsMalformedAndUnknown(t *testing.T) {
	u := &fakeUpdater{}
	c := newTestConsumer(u)

	assert.NoError(t, c.handleMessage(context.Background(), kafkago.Message{Value: []byte("{not json")}))
	assert.NoError(t, c.handleMessage(context.Background(), message(t, "payment.initiated", PaymentEvent{RentalID: uuid.New()})))
	assert.NoError(t, c.handleMessage(context.Background(), message(t, PaymentCaptured, map[string]string{"rentalId": "nope"})))
	assert.Empty(t, u.calls)
}

func TestHandleMessage_ErrorHandling(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{"not found is dropped", domain.NewNotFoundError("Rental", "x"), false},
		{"already paid is dropped", domain.NewInvalidStateError("Paid", "Paid"), false},
		{"store failure is retried", errors.New("connection reset"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestConsumer(&fakeUpdater{err: tt.err})
			err := c.handleMessage(context.Background(), message(t, PaymentCaptured, PaymentEvent{RentalID: uuid.New()}))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
