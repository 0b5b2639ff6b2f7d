package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
)

func sampleSummary() OrderSummary {
	return OrderSummary{
		OrderID:   uuid.New(),
		Number:    "PED-20250101-0042",
		Status:    domain.StatusPendingContact,
		CreatedAt: time.Date(2025, 1, 1, 10, 30, 0, 0, time.UTC),
		Client:    domain.Client{Name: "Ana", Phone: "+54 9 11 1234-5678"},
		Lines: []SummaryLine{
			{ProductName: "Remera", Quantity: 2, Subtotal: decimal.NewFromInt(200)},
			{ProductName: "Buzo", VariantCode: "M", Quantity: 1, Subtotal: decimal.NewFromInt(60)},
		},
		Total: decimal.NewFromInt(260),
	}
}

func TestOrderSummary_Message(t *testing.T) {
	msg := sampleSummary().Message()
	assert.Contains(t, msg, "Pedido #PED-20250101-0042")
	assert.Contains(t, msg, "- Buzo (M) x1 - $60.00")
	assert.Contains(t, msg, "Total: $260.00")
	assert.Contains(t, msg, "https://wa.me/5491112345678")
	assert.NotContains(t, msg, "Email:")
}

func TestWebhookSender_Send(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"success":"true"}`))
	}))
	defer srv.Close()

	err := NewWebhookSender(srv.URL).Send(context.Background(), sampleSummary())
	require.NoError(t, err)
	assert.Equal(t, "Nuevo pedido #PED-20250101-0042", got["_subject"])
	assert.Equal(t, "box", got["_template"])
	assert.Equal(t, "false", got["_captcha"])
}

func TestWebhookSender_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhookSender(srv.URL).Send(context.Background(), sampleSummary())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

type senderFunc func(ctx context.Context, s OrderSummary) error

func (f senderFunc) Send(ctx context.Context, s OrderSummary) error { return f(ctx, s) }

func TestDispatcher_SwallowsFailures(t *testing.T) {
	logger, hook := test.NewNullLogger()
	d := NewDispatcher(senderFunc(func(context.Context, OrderSummary) error {
		return errors.New("smtp down")
	}), time.Second, logger)

	d.Dispatch(context.Background(), sampleSummary())

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, log.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, "PED-20250101-0042", hook.LastEntry().Data["numero_pedido"])
}

func TestDispatcher_SurvivesPanic(t *testing.T) {
	logger, hook := test.NewNullLogger()
	d := NewDispatcher(senderFunc(func(context.Context, OrderSummary) error {
		panic("boom")
	}), time.Second, logger)

	assert.NotPanics(t, func() { d.Dispatch(context.Background(), sampleSummary()) })
	assert.Equal(t, log.ErrorLevel, hook.LastEntry().Level)
}

func TestDispatcher_AppliesTimeoutAndIgnoresCallerCancel(t *testing.T) {
	logger, _ := test.NewNullLogger()
	var deadline time.Time
	var callerErr error
	d := NewDispatcher(senderFunc(func(ctx context.Context, _ OrderSummary) error {
		deadline, _ = ctx.Deadline()
		callerErr = ctx.Err()
		return nil
	}), 50*time.Millisecond, logger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Dispatch(ctx, sampleSummary())

	assert.False(t, deadline.IsZero())
	assert.NoError(t, callerErr)
}
