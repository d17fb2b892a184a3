package rest

import (
	"net/http"

	"github.com/KretovDmitry/backoffice/internal/application/errs"
	"github.com/KretovDmitry/backoffice/internal/application/interfaces"
	"github.com/KretovDmitry/backoffice/internal/domain/entities"
	"github.com/KretovDmitry/backoffice/internal/domain/entities/user"
	"github.com/KretovDmitry/backoffice/internal/interface/api/rest/middleware"
	"github.com/KretovDmitry/backoffice/internal/interface/api/rest/request"
	"github.com/KretovDmitry/backoffice/internal/interface/api/rest/response"
	"github.com/KretovDmitry/backoffice/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type OrderController struct {
	service    interfaces.OrderService
	reconciler interfaces.ReconciliationService
	logger     logger.Logger
}

// NewOrderController registers http.Handlers with additional options.
// The payment link is public, everything else requires the options'
// middlewares plus a back office role.
func NewOrderController(
	service interfaces.OrderService,
	reconciler interfaces.ReconciliationService,
	identity interfaces.Identity,
	logger logger.Logger,
	options ChiServerOptions,
) {
	r := options.BaseRouter

	if r == nil {
		r = chi.NewRouter()
	}

	c := OrderController{
		service:    service,
		reconciler: reconciler,
		logger:     logger,
	}

	r.Get(options.BaseURL+"/orders/{id}/payment-link", c.PaymentLink)

	r.Group(func(r chi.Router) {
		for _, mw := range options.Middlewares {
			r.Use(mw)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRoles(identity, user.RoleManager, user.RoleAdmin))
			r.Delete(options.BaseURL+"/orders/anulate", c.Anulate)
			r.Get(options.BaseURL+"/orders/all/metadata", c.Metadata)
			r.Get(options.BaseURL+"/orders/{id}", c.GetOrder)
			r.Patch(options.BaseURL+"/orders/{id}/status", c.UpdateStatus)
		})

		r.With(middleware.RequireRoles(identity, user.RoleAdmin)).
			Post(options.BaseURL+"/orders/{id}/reconcile", c.Reconcile)
	})
}

// Cancel an order (DELETE /orders/anulate HTTP/1.1).
func (c *OrderController) Anulate(w http.ResponseWriter, r *http.Request) {
	payload := new(request.Anulate)
	if err := decodeJSON(r, payload); err != nil {
		c.ErrorHandlerFunc(w, r, err)
		return
	}

	id, err := uuid.Parse(payload.ID)
	if err != nil {
		c.ErrorHandlerFunc(w, r, errs.NewValidationError("id", "must be a uuid"))
		return
	}

	order, err := c.service.Anulate(r.Context(), id)
	if err != nil {
		c.ErrorHandlerFunc(w, r, err)
		return
	}

	c.encode(w, r, http.StatusOK, response.NewOrderFromEntity(order))
}

// Order with its items (GET /orders/{id} HTTP/1.1).
func (c *OrderController) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		c.ErrorHandlerFunc(w, r, err)
		return
	}

	order, err := c.service.GetOrder(r.Context(), id)
	if err != nil {
		c.ErrorHandlerFunc(w, r, err)
		return
	}

	c.encode(w, r, http.StatusOK, response.NewOrderFromEntity(order))
}

// Dashboard aggregates (GET /orders/all/metadata HTTP/1.1).
func (c *OrderController) Metadata(w http.ResponseWriter, r *http.Request) {
	meta, err := c.service.Metadata(r.Context())
	if err != nil {
		c.ErrorHandlerFunc(w, r, err)
		return
	}

	c.encode(w, r, http.StatusOK, response.NewMetadataFromEntity(meta))
}

// Fulfillment progress (PATCH /orders/{id}/status HTTP/1.1).
func (c *OrderController) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		c.ErrorHandlerFunc(w, r, err)
		return
	}

	payload := new(request.UpdateStatus)
	if err = decodeJSON(r, payload); err != nil {
		c.ErrorHandlerFunc(w, r, err)
		return
	}

	status, err := entities.ParseOrderStatus(payload.Status)
	if err != nil {
		c.ErrorHandlerFunc(w, r, errs.NewValidationError("status", "is unknown"))
		return
	}

	order, err := c.service.UpdateStatus(r.Context(), id, status)
	if err != nil {
		c.ErrorHandlerFunc(w, r, err)
		return
	}

	c.encode(w, r, http.StatusOK, response.NewOrderFromEntity(order))
}

// Provider redirect (GET /orders/{id}/payment-link HTTP/1.1).
func (c *OrderController) PaymentLink(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		c.ErrorHandlerFunc(w, r, err)
		return
	}

	link, err := c.service.PaymentLink(r.Context(), id)
	if err != nil {
		c.ErrorHandlerFunc(w, r, err)
		return
	}

	c.encode(w, r, http.StatusOK, response.PaymentLink{URL: link})
}

// On-demand reconciliation (POST /orders/{id}/reconcile HTTP/1.1).
func (c *OrderController) Reconcile(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		c.ErrorHandlerFunc(w, r, err)
		return
	}

	order, updated, err := c.reconciler.Reconcile(r.Context(), id)
	if err != nil {
		c.ErrorHandlerFunc(w, r, err)
		return
	}

	c.encode(w, r, http.StatusOK, response.Reconcile{
		Updated: updated,
		Order:   response.NewOrderFromEntity(order),
	})
}

func (c *OrderController) encode(w http.ResponseWriter, r *http.Request, code int, v any) {
	if err := writeJSON(w, code, v); err != nil {
		c.logger.With(r.Context()).Errorf("order controller: encode response: %s", err)
	}
}

// ErrorHandlerFunc handles sending of an error in the JSON format,
// writing appropriate status code and handling the failure to marshal that.
func (c *OrderController) ErrorHandlerFunc(w http.ResponseWriter, r *http.Request, err error) {
	code, errJSON := classify(err)

	log := c.logger.With(r.Context())
	if code >= http.StatusInternalServerError {
		log.Errorf("order controller [%d]: %s", code, err)
	} else {
		log.Infof("order controller [%d]: %s", code, err)
	}

	if err = writeJSON(w, code, errJSON); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func orderID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, errs.NewValidationError("id", "must be a uuid")
	}
	return id, nil
}
