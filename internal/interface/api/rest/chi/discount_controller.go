package rest

import (
	"net/http"

	"github.com/KretovDmitry/backoffice/internal/application/interfaces"
	"github.com/KretovDmitry/backoffice/internal/application/params"
	"github.com/KretovDmitry/backoffice/internal/domain/entities"
	"github.com/KretovDmitry/backoffice/internal/domain/entities/user"
	"github.com/KretovDmitry/backoffice/internal/interface/api/rest/middleware"
	"github.com/KretovDmitry/backoffice/internal/interface/api/rest/request"
	"github.com/KretovDmitry/backoffice/internal/interface/api/rest/response"
	"github.com/KretovDmitry/backoffice/pkg/logger"
	"github.com/go-chi/chi/v5"
)

type DiscountController struct {
	service interfaces.DiscountService
	logger  logger.Logger
}

// NewDiscountController registers http.Handlers with additional options.
func NewDiscountController(
	service interfaces.DiscountService,
	identity interfaces.Identity,
	logger logger.Logger,
	options ChiServerOptions,
) {
	r := options.BaseRouter

	if r == nil {
		r = chi.NewRouter()
	}

	c := DiscountController{
		service: service,
		logger:  logger,
	}

	r.Group(func(r chi.Router) {
		for _, mw := range options.Middlewares {
			r.Use(mw)
		}
		r.Use(middleware.RequireRoles(identity, user.RoleManager, user.RoleAdmin))
		r.Post(options.BaseURL+"/discounts", c.CreateDiscount)
	})
}

// Create a discount under a generated code (POST /discounts HTTP/1.1).
func (c *DiscountController) CreateDiscount(w http.ResponseWriter, r *http.Request) {
	payload := new(request.CreateDiscount)
	if err := decodeJSON(r, payload); err != nil {
		c.ErrorHandlerFunc(w, r, err)
		return
	}

	discount, err := c.service.Create(r.Context(), &params.CreateDiscount{
		Type:      entities.DiscountType(payload.Type),
		Discount:  payload.Discount,
		ExpiresAt: payload.ExpiresAt,
	})
	if err != nil {
		c.ErrorHandlerFunc(w, r, err)
		return
	}

	if err = writeJSON(w, http.StatusCreated, response.NewDiscountFromEntity(discount)); err != nil {
		c.logger.With(r.Context()).Errorf("discount controller: encode response: %s", err)
	}
}

// ErrorHandlerFunc handles sending of an error in the JSON format,
// writing appropriate status code and handling the failure to marshal that.
func (c *DiscountController) ErrorHandlerFunc(w http.ResponseWriter, r *http.Request, err error) {
	code, errJSON := classify(err)

	c.logger.With(r.Context()).Errorf("discount controller [%d]: %s", code, err)

	if err = writeJSON(w, code, errJSON); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
