// Package gateway talks to the payment provider: it verifies event callbacks
// and signs checkout redirects.
package gateway

import (
	"bytes"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/KretovDmitry/backoffice/internal/application/errs"
	"github.com/KretovDmitry/backoffice/internal/application/interfaces"
	"github.com/KretovDmitry/backoffice/internal/config"
	"github.com/KretovDmitry/backoffice/internal/domain/entities"
)

// ChecksumHeader carries the event signature computed by the provider.
const ChecksumHeader = "X-Event-Checksum"

type Gateway struct {
	config config.Gateway
	now    func() time.Time
}

func New(cfg *config.Config) (*Gateway, error) {
	if cfg == nil {
		return nil, errors.New("nil dependency: config")
	}
	if cfg.Gateway.EventsSecret == "" {
		return nil, errors.New("gateway: events secret is not configured")
	}
	if cfg.Gateway.IntegrityKey == "" {
		return nil, errors.New("gateway: integrity key is not configured")
	}
	if _, err := url.Parse(cfg.Gateway.CheckoutURL); err != nil {
		return nil, fmt.Errorf("gateway: checkout url: %w", err)
	}

	return &Gateway{config: cfg.Gateway, now: time.Now}, nil
}

var _ interfaces.PaymentGateway = (*Gateway)(nil)

type payload struct {
	Event       string          `json:"event"`
	Data        json.RawMessage `json:"data"`
	Environment string          `json:"environment"`
	Signature   struct {
		Checksum   string   `json:"checksum"`
		Properties []string `json:"properties"`
	} `json:"signature"`
	Timestamp json.Number `json:"timestamp"`
}

type transactionData struct {
	Transaction struct {
		ID                string `json:"id"`
		AmountInCents     int64  `json:"amount_in_cents"`
		Reference         string `json:"reference"`
		CustomerEmail     string `json:"customer_email"`
		Currency          string `json:"currency"`
		PaymentMethodType string `json:"payment_method_type"`
		Status            string `json:"status"`
	} `json:"transaction"`
}

// VerifyEvent checks the checksum over the properties the payload declares
// as signed and decodes the transaction. Every failure wraps
// errs.ErrInvalidSignature.
func (g *Gateway) VerifyEvent(body []byte, checksum string) (*entities.PaymentEvent, error) {
	checksum = strings.TrimSpace(checksum)
	if checksum == "" {
		return nil, fmt.Errorf("%w: missing %s header", errs.ErrInvalidSignature, ChecksumHeader)
	}

	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: malformed payload: %s", errs.ErrInvalidSignature, err)
	}
	if len(p.Signature.Properties) == 0 {
		return nil, fmt.Errorf("%w: no signed properties", errs.ErrInvalidSignature)
	}
	if p.Timestamp == "" {
		return nil, fmt.Errorf("%w: missing timestamp", errs.ErrInvalidSignature)
	}

	values, err := signedValues(p.Data, p.Signature.Properties)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errs.ErrInvalidSignature, err)
	}

	expected := EventChecksum(values, p.Timestamp.String(), g.config.EventsSecret)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(checksum))) != 1 {
		return nil, fmt.Errorf("%w: checksum mismatch", errs.ErrInvalidSignature)
	}

	var data transactionData
	if err = json.Unmarshal(p.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: malformed transaction: %s", errs.ErrInvalidSignature, err)
	}

	ts, err := p.Timestamp.Int64()
	if err != nil {
		return nil, fmt.Errorf("%w: timestamp: %s", errs.ErrInvalidSignature, err)
	}

	tx := data.Transaction

	return &entities.PaymentEvent{
		Event:         p.Event,
		TransactionID: tx.ID,
		Reference:     tx.Reference,
		AmountInCents: tx.AmountInCents,
		Currency:      tx.Currency,
		Status:        tx.Status,
		PaymentMethod: tx.PaymentMethodType,
		CustomerEmail: tx.CustomerEmail,
		Environment:   p.Environment,
		Timestamp:     ts,
	}, nil
}

// EventChecksum is SHA-256 hex over the signed values, the timestamp and the
// events secret concatenated in that order.
func EventChecksum(values []string, timestamp, secret string) string {
	h := sha256.New()
	for _, v := range values {
		h.Write([]byte(v))
	}
	h.Write([]byte(timestamp))
	h.Write([]byte(secret))
	return hex.EncodeToString(h.Sum(nil))
}

// IntegritySignature signs a checkout redirect.
func IntegritySignature(reference string, amountInCents int64, currency entities.Currency, expiration, key string) string {
	sum := sha256.Sum256([]byte(reference + strconv.FormatInt(amountInCents, 10) + string(currency) + expiration + key))
	return hex.EncodeToString(sum[:])
}

// CheckoutURL builds the provider redirect for order. It does not modify order.
func (g *Gateway) CheckoutURL(order *entities.Order, currency entities.Currency) (string, error) {
	if !currency.Known() {
		return "", fmt.Errorf("%w: currency is required", errs.ErrInvalidRequest)
	}

	cents := order.AmountInCents()
	if cents <= 0 {
		return "", fmt.Errorf("%w: order total must be positive", errs.ErrInvalidRequest)
	}

	u, err := url.Parse(g.config.CheckoutURL)
	if err != nil {
		return "", fmt.Errorf("parse checkout url: %w", err)
	}

	reference := order.ID.String()
	expiration := g.now().Add(g.config.LinkExpiration).UTC().Format(time.RFC3339)

	q := url.Values{}
	q.Set("public-key", g.config.PublicKey)
	q.Set("currency", string(currency))
	q.Set("amount-in-cents", strconv.FormatInt(cents, 10))
	q.Set("reference", reference)
	q.Set("signature:integrity", IntegritySignature(reference, cents, currency, expiration, g.config.IntegrityKey))
	q.Set("expiration-time", expiration)
	if g.config.RedirectBaseURL != "" {
		q.Set("redirect-url", strings.TrimRight(g.config.RedirectBaseURL, "/")+"/orders/"+reference)
	}

	u.RawQuery = q.Encode()

	return u.String(), nil
}

// signedValues resolves dotted property paths against data.
func signedValues(data json.RawMessage, properties []string) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var root map[string]any
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("malformed data: %w", err)
	}

	values := make([]string, 0, len(properties))

	for _, prop := range properties {
		var node any = root
		for _, key := range strings.Split(prop, ".") {
			obj, ok := node.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("property %s not found", prop)
			}
			if node, ok = obj[key]; !ok {
				return nil, fmt.Errorf("property %s not found", prop)
			}
		}

		v, err := scalar(node)
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", prop, err)
		}
		values = append(values, v)
	}

	return values, nil
}

func scalar(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case bool:
		return strconv.FormatBool(t), nil
	case nil:
		return "", nil
	}
	return "", errors.New("not a scalar value")
}
