package rest

import (
	"errors"
	"io"
	"net/http"

	"github.com/KretovDmitry/backoffice/internal/application/errs"
	"github.com/KretovDmitry/backoffice/internal/application/interfaces"
	"github.com/KretovDmitry/backoffice/internal/infrastructure/gateway"
	"github.com/KretovDmitry/backoffice/pkg/logger"
	"github.com/go-chi/chi/v5"
)

type WebhookController struct {
	service interfaces.PaymentService
	logger  logger.Logger
}

// NewWebhookController registers the payment provider callback.
func NewWebhookController(service interfaces.PaymentService, logger logger.Logger, options ChiServerOptions) {
	r := options.BaseRouter

	if r == nil {
		r = chi.NewRouter()
	}

	c := WebhookController{
		service: service,
		logger:  logger,
	}

	r.Group(func(r chi.Router) {
		for _, mw := range options.Middlewares {
			r.Use(mw)
		}
		r.Post(options.BaseURL+"/payments/webhook", c.Webhook)
	})
}

// Provider event (POST /payments/webhook HTTP/1.1).
// Any 2xx stops provider retries, so only verified and applied events or
// deliberately ignored ones are acknowledged.
func (c *WebhookController) Webhook(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		c.ErrorHandlerFunc(w, r, checkJSONDecodeError(err))
		return
	}

	err = c.service.HandleWebhook(r.Context(), body, r.Header.Get(gateway.ChecksumHeader))
	if err != nil {
		c.ErrorHandlerFunc(w, r, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// ErrorHandlerFunc never echoes verification details back to the provider.
func (c *WebhookController) ErrorHandlerFunc(w http.ResponseWriter, r *http.Request, err error) {
	errJSON := errs.JSON{Error: "internal error", Code: errs.CodeInternal}
	code := http.StatusInternalServerError

	switch {
	// Status Unauthorized (401).
	case errors.Is(err, errs.ErrInvalidSignature):
		code = http.StatusUnauthorized
		errJSON = errs.JSON{Error: errs.ErrInvalidSignature.Error(), Code: errs.CodeSignature}

	// Status Bad Request (400).
	case errors.Is(err, errs.ErrInvalidRequest):
		code = http.StatusBadRequest
		errJSON = errs.JSON{Error: errs.ErrInvalidRequest.Error(), Code: errs.CodeValidation}
	}

	c.logger.With(r.Context()).Errorf("webhook controller [%d]: %s", code, err)

	if err = writeJSON(w, code, errJSON); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
