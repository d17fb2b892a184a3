package gateway

import (
	"encoding/json"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/KretovDmitry/backoffice/internal/application/errs"
	"github.com/KretovDmitry/backoffice/internal/config"
	"github.com/KretovDmitry/backoffice/internal/domain/entities"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret    = "test_events_secret"
	testTimestamp = "1760486400"
)

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()

	g, err := New(&config.Config{Gateway: config.Gateway{
		PublicKey:       "pub_test_key",
		IntegrityKey:    "test_integrity_key",
		EventsSecret:    testSecret,
		CheckoutURL:     "https://checkout.example.com/p/",
		RedirectBaseURL: "https://shop.example.com/",
		LinkExpiration:  2 * time.Hour,
	}})
	require.NoError(t, err)

	g.now = func() time.Time { return time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC) }

	return g
}

type event struct {
	id        string
	status    string
	cents     int64
	reference string
	timestamp string
}

func (e event) body(t *testing.T) []byte {
	t.Helper()

	body, err := json.Marshal(map[string]any{
		"event": "transaction.updated",
		"data": map[string]any{
			"transaction": map[string]any{
				"id":                  e.id,
				"amount_in_cents":     e.cents,
				"reference":           e.reference,
				"customer_email":      "buyer@example.com",
				"currency":            "COP",
				"payment_method_type": "CARD",
				"status":              e.status,
			},
		},
		"environment": "test",
		"signature": map[string]any{
			"properties": []string{"transaction.id", "transaction.status", "transaction.amount_in_cents"},
		},
		"timestamp": json.Number(e.timestamp),
	})
	require.NoError(t, err)

	return body
}

func validEvent() event {
	return event{
		id:        "1234-1610641025-49201",
		status:    "APPROVED",
		cents:     4490000,
		reference: "a0b1c2d3-0000-4000-8000-000000000001",
		timestamp: testTimestamp,
	}
}

func checksumOf(e event) string {
	return EventChecksum([]string{e.id, e.status, "4490000"}, e.timestamp, testSecret)
}

func TestVerifyEvent(t *testing.T) {
	g := newTestGateway(t)
	e := validEvent()

	got, err := g.VerifyEvent(e.body(t), checksumOf(e))
	require.NoError(t, err)

	assert.Equal(t, &entities.PaymentEvent{
		Event:         "transaction.updated",
		TransactionID: e.id,
		Reference:     e.reference,
		AmountInCents: 4490000,
		Currency:      "COP",
		Status:        "APPROVED",
		PaymentMethod: "CARD",
		CustomerEmail: "buyer@example.com",
		Environment:   "test",
		Timestamp:     1760486400,
	}, got)

	t.Run("upper case checksum", func(t *testing.T) {
		_, err := g.VerifyEvent(e.body(t), strings.ToUpper(checksumOf(e)))
		assert.NoError(t, err)
	})
}

func TestVerifyEventIsSensitiveToSignedValues(t *testing.T) {
	g := newTestGateway(t)
	checksum := checksumOf(validEvent())

	tests := []struct {
		name   string
		mutate func(e *event)
	}{
		{name: "transaction id", mutate: func(e *event) { e.id += "0" }},
		{name: "status", mutate: func(e *event) { e.status = "DECLINED" }},
		{name: "amount", mutate: func(e *event) { e.cents++ }},
		{name: "timestamp", mutate: func(e *event) { e.timestamp = "1760486401" }},
	}
	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := validEvent()
			tt.mutate(&e)

			got, err := g.VerifyEvent(e.body(t), checksum)
			assert.ErrorIs(t, err, errs.ErrInvalidSignature)
			assert.Nil(t, got)
		})
	}
}

func TestVerifyEventRejectsMalformedInput(t *testing.T) {
	g := newTestGateway(t)
	e := validEvent()
	checksum := checksumOf(e)

	tests := []struct {
		name     string
		body     string
		checksum string
	}{
		{name: "missing checksum", body: string(e.body(t)), checksum: "  "},
		{name: "not json", body: "transaction approved", checksum: checksum},
		{name: "no signed properties", body: `{"event":"transaction.updated","data":{},"signature":{"properties":[]},"timestamp":1}`, checksum: checksum},
		{name: "missing timestamp", body: `{"event":"transaction.updated","data":{"transaction":{"id":"1"}},"signature":{"properties":["transaction.id"]}}`, checksum: checksum},
		{name: "unknown property", body: `{"event":"transaction.updated","data":{"transaction":{"id":"1"}},"signature":{"properties":["transaction.nope"]},"timestamp":1}`, checksum: checksum},
		{name: "property is an object", body: `{"event":"transaction.updated","data":{"transaction":{"id":"1"}},"signature":{"properties":["transaction"]},"timestamp":1}`, checksum: checksum},
	}
	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := g.VerifyEvent([]byte(tt.body), tt.checksum)
			assert.ErrorIs(t, err, errs.ErrInvalidSignature)
		})
	}
}

func TestCheckoutURL(t *testing.T) {
	g := newTestGateway(t)

	order := &entities.Order{
		ID:       uuid.MustParse("a0b1c2d3-0000-4000-8000-000000000001"),
		Status:   entities.StatusPlaced,
		Currency: entities.CurrencyUnknown,
		Total:    decimal.RequireFromString("214.2"),
	}
	before := *order

	link, err := g.CheckoutURL(order, entities.CurrencyCOP)
	require.NoError(t, err)

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "checkout.example.com", u.Host)
	assert.Equal(t, "/p/", u.Path)

	q := u.Query()
	expiration := "2026-10-15T12:00:00Z"

	assert.Equal(t, "pub_test_key", q.Get("public-key"))
	assert.Equal(t, "COP", q.Get("currency"))
	assert.Equal(t, "21420", q.Get("amount-in-cents"))
	assert.Equal(t, order.ID.String(), q.Get("reference"))
	assert.Equal(t, expiration, q.Get("expiration-time"))
	assert.Equal(t, "https://shop.example.com/orders/"+order.ID.String(), q.Get("redirect-url"))
	assert.Equal(t,
		IntegritySignature(order.ID.String(), 21420, entities.CurrencyCOP, expiration, "test_integrity_key"),
		q.Get("signature:integrity"))

	assert.Equal(t, before, *order, "building a link must not modify the order")

	again, err := g.CheckoutURL(order, entities.CurrencyCOP)
	require.NoError(t, err)
	assert.Equal(t, link, again, "same input and clock give the same link")
}

func TestCheckoutURLRejects(t *testing.T) {
	g := newTestGateway(t)

	order := &entities.Order{ID: uuid.New(), Total: decimal.RequireFromString("10")}

	_, err := g.CheckoutURL(order, entities.CurrencyUnknown)
	assert.ErrorIs(t, err, errs.ErrInvalidRequest)

	order.Total = decimal.Zero
	_, err = g.CheckoutURL(order, entities.CurrencyCOP)
	assert.ErrorIs(t, err, errs.ErrInvalidRequest)
}

func TestIntegritySignatureIsSensitiveToEveryInput(t *testing.T) {
	base := IntegritySignature("ref", 100, entities.CurrencyCOP, "2026-01-01T00:00:00Z", "key")

	assert.Len(t, base, 64)
	assert.NotEqual(t, base, IntegritySignature("reg", 100, entities.CurrencyCOP, "2026-01-01T00:00:00Z", "key"))
	assert.NotEqual(t, base, IntegritySignature("ref", 101, entities.CurrencyCOP, "2026-01-01T00:00:00Z", "key"))
	assert.NotEqual(t, base, IntegritySignature("ref", 100, entities.CurrencyUSD, "2026-01-01T00:00:00Z", "key"))
	assert.NotEqual(t, base, IntegritySignature("ref", 100, entities.CurrencyCOP, "2026-01-01T00:00:01Z", "key"))
	assert.NotEqual(t, base, IntegritySignature("ref", 100, entities.CurrencyCOP, "2026-01-01T00:00:00Z", "kez"))
}

func TestNew(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	_, err = New(&config.Config{Gateway: config.Gateway{IntegrityKey: "k"}})
	assert.Error(t, err)

	_, err = New(&config.Config{Gateway: config.Gateway{EventsSecret: "s"}})
	assert.Error(t, err)
}
