package rabbitmq

import (
	"context"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simaogato/folio-backend/internal/domain"
)

// fakeConfirmChannel records publishes and answers each one with a confirm
type fakeConfirmChannel struct {
	confirms   chan amqp.Confirmation
	published  []published
	calls      int
	tag        uint64
	nack       bool
	silent     bool
	publishErr error
	confirmErr error
}

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

func (f *fakeConfirmChannel) Confirm(bool) error { return f.confirmErr }

func (f *fakeConfirmChannel) NotifyPublish(c chan amqp.Confirmation) chan amqp.Confirmation {
	f.confirms = c
	return c
}

func (f *fakeConfirmChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.calls++
	if f.publishErr != nil {
		return f.publishErr
	}

	f.published = append(f.published, published{exchange: exchange, key: key, msg: msg})
	f.tag++
	if !f.silent {
		f.confirms <- amqp.Confirmation{DeliveryTag: f.tag, Ack: !f.nack}
	}
	return nil
}

var testTopology = Topology{
	Exchange:           "folio.accounts",
	RoutingKey:         "accounts",
	Queue:              "accounts",
	DeadLetterExchange: "folio.accounts.dlx",
	DeadLetterQueue:    "accounts.dlq",
}

func TestPublisher_Publish(t *testing.T) {
	ch := &fakeConfirmChannel{}
	pub, err := NewPublisher(ch, testTopology)
	require.NoError(t, err)

	delta := domain.BalanceDelta{Broker: "XPINV", Amount: decimal.RequireFromString("-1010.5")}

	err = pub.Publish(context.Background(), delta)
	require.NoError(t, err)

	require.Len(t, ch.published, 1)
	got := ch.published[0]
	assert.Equal(t, "folio.accounts", got.exchange)
	assert.Equal(t, "accounts", got.key)
	assert.Equal(t, "application/json", got.msg.ContentType)
	assert.Equal(t, amqp.Persistent, got.msg.DeliveryMode)
	assert.NotEmpty(t, got.msg.MessageId)
	assert.JSONEq(t, `{"account":"XPINV","amount":-1010.5}`, string(got.msg.Body))
}

func TestPublisher_PublishPayloadKeepsMessageID(t *testing.T) {
	ch := &fakeConfirmChannel{}
	pub, err := NewPublisher(ch, testTopology)
	require.NoError(t, err)

	err = pub.PublishPayload(context.Background(), "event-1", []byte(`{"account":"CLEAR","amount":10}`))
	require.NoError(t, err)

	require.Len(t, ch.published, 1)
	assert.Equal(t, "event-1", ch.published[0].msg.MessageId)
}

func TestPublisher_Failures(t *testing.T) {
	tests := []struct {
		name    string
		ch      *fakeConfirmChannel
		wantErr error
	}{
		{name: "broker nack", ch: &fakeConfirmChannel{nack: true}, wantErr: ErrNacked},
		{name: "no confirm", ch: &fakeConfirmChannel{silent: true}, wantErr: ErrConfirmTimeout},
		{name: "publish error", ch: &fakeConfirmChannel{publishErr: amqp.ErrClosed}, wantErr: amqp.ErrClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub, err := NewPublisher(tt.ch, testTopology, WithConfirmTimeout(20*time.Millisecond))
			require.NoError(t, err)

			err = pub.Publish(context.Background(), domain.BalanceDelta{Broker: "XPINV", Amount: decimal.NewFromInt(1)})

			assert.ErrorIs(t, err, domain.ErrChannelUnavailable)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPublisher_CancelledContext(t *testing.T) {
	ch := &fakeConfirmChannel{silent: true}
	pub, err := NewPublisher(ch, testTopology, WithConfirmTimeout(time.Minute))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = pub.Publish(ctx, domain.BalanceDelta{Broker: "XPINV", Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, domain.ErrChannelUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPublisher_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	ch := &fakeConfirmChannel{publishErr: errors.New("connection reset")}
	pub, err := NewPublisher(ch, testTopology)
	require.NoError(t, err)

	delta := domain.BalanceDelta{Broker: "XPINV", Amount: decimal.NewFromInt(1)}
	for i := 0; i < 5; i++ {
		require.Error(t, pub.Publish(context.Background(), delta))
	}

	err = pub.Publish(context.Background(), delta)
	assert.ErrorIs(t, err, domain.ErrChannelUnavailable)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 5, ch.calls, "open breaker must not reach the channel")
}

func TestNewPublisher_ConfirmModeUnavailable(t *testing.T) {
	_, err := NewPublisher(&fakeConfirmChannel{confirmErr: errors.New("not supported")}, testTopology)
	require.Error(t, err)
}
