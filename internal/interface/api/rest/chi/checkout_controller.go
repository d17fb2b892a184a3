package rest

import (
	"net/http"

	"github.com/KretovDmitry/backoffice/internal/application/interfaces"
	"github.com/KretovDmitry/backoffice/internal/domain/entities"
	"github.com/KretovDmitry/backoffice/internal/domain/entities/user"
	"github.com/KretovDmitry/backoffice/internal/interface/api/rest/header"
	"github.com/KretovDmitry/backoffice/internal/interface/api/rest/request"
	"github.com/KretovDmitry/backoffice/internal/interface/api/rest/response"
	"github.com/KretovDmitry/backoffice/pkg/logger"
	"github.com/go-chi/chi/v5"
)

type CheckoutController struct {
	service interfaces.CheckoutService
	logger  logger.Logger
}

// NewCheckoutController registers http.Handlers with additional options.
// Web checkout runs behind optional authentication, POS checkout behind
// the options' middlewares.
func NewCheckoutController(
	service interfaces.CheckoutService,
	optionalAuth MiddlewareFunc,
	logger logger.Logger,
	options ChiServerOptions,
) {
	r := options.BaseRouter

	if r == nil {
		r = chi.NewRouter()
	}

	c := CheckoutController{
		service: service,
		logger:  logger,
	}

	r.Group(func(r chi.Router) {
		if optionalAuth != nil {
			r.Use(optionalAuth)
		}
		r.Post(options.BaseURL+"/orders/checkout", c.WebCheckout)
	})

	r.Group(func(r chi.Router) {
		for _, mw := range options.Middlewares {
			r.Use(mw)
		}
		r.Post(options.BaseURL+"/orders/checkout/{method}", c.POSCheckout)
	})
}

// Storefront checkout (POST /orders/checkout HTTP/1.1).
func (c *CheckoutController) WebCheckout(w http.ResponseWriter, r *http.Request) {
	c.checkout(w, r, entities.OriginWeb)
}

// Point-of-sale checkout (POST /orders/checkout/{method} HTTP/1.1).
func (c *CheckoutController) POSCheckout(w http.ResponseWriter, r *http.Request) {
	origin, err := entities.ParsePOSOrigin(chi.URLParam(r, "method"))
	if err != nil {
		c.ErrorHandlerFunc(w, r, err)
		return
	}

	c.checkout(w, r, origin)
}

func (c *CheckoutController) checkout(w http.ResponseWriter, r *http.Request, origin entities.Origin) {
	payload := new(request.Checkout)
	if err := decodeJSON(r, payload); err != nil {
		c.ErrorHandlerFunc(w, r, err)
		return
	}

	params := payload.ToParams(origin)
	params.PlacedIP = header.RemoteIP(r)
	if u, found := user.FromContext(r.Context()); found {
		params.Caller = u
	}

	order, err := c.service.Checkout(r.Context(), params)
	if err != nil {
		c.ErrorHandlerFunc(w, r, err)
		return
	}

	// Status 201 with the public projection.
	if err = writeJSON(w, http.StatusCreated, response.NewOrderFromEntity(order)); err != nil {
		c.logger.Errorf("checkout controller: encode response: %s", err)
	}
}

// ErrorHandlerFunc handles sending of an error in the JSON format,
// writing appropriate status code and handling the failure to marshal that.
func (c *CheckoutController) ErrorHandlerFunc(w http.ResponseWriter, r *http.Request, err error) {
	code, errJSON := classify(err)

	log := c.logger.With(r.Context())
	if code >= http.StatusInternalServerError {
		log.Errorf("checkout controller [%d]: %s", code, err)
	} else {
		log.Infof("checkout controller [%d]: %s", code, err)
	}

	if err = writeJSON(w, code, errJSON); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
