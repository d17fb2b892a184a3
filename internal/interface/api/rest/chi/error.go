package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/KretovDmitry/backoffice/internal/application/errs"
	"github.com/KretovDmitry/backoffice/internal/interface/api/rest/header"
)

// decodeJSON checks the content type and decodes the request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	if !header.IsApplicationJSONContentType(r) {
		return fmt.Errorf("%w: invalid content type", errs.ErrInvalidRequest)
	}

	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return checkJSONDecodeError(err)
	}

	return nil
}

func checkJSONDecodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return errs.NewValidationError(typeErr.Field,
			fmt.Sprintf("must be of type %s, got %s", typeErr.Type, typeErr.Value))
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return fmt.Errorf("%w: malformed json at offset %d", errs.ErrInvalidRequest, syntaxErr.Offset)
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return fmt.Errorf("%w: body exceeds %d bytes", errs.ErrInvalidRequest, maxErr.Limit)
	}
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: empty body", errs.ErrInvalidRequest)
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: truncated body", errs.ErrInvalidRequest)
	}

	return err
}

// classify maps application errors onto the HTTP status and wire form
// shared by the order facing controllers.
func classify(err error) (int, errs.JSON) {
	var validation *errs.ValidationError

	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, errs.JSON{
			Error: err.Error(), Code: errs.CodeValidation, Field: validation.Field,
		}

	case errors.Is(err, errs.ErrInvalidRequest):
		return http.StatusBadRequest, errs.JSON{Error: err.Error(), Code: errs.CodeValidation}

	case errors.Is(err, errs.ErrUnauthorized):
		return http.StatusUnauthorized, errs.JSON{
			Error: errs.ErrUnauthorized.Error(), Code: errs.CodeAuthorization,
		}

	// Generic on purpose, the failed check is only logged.
	case errors.Is(err, errs.ErrForbidden):
		return http.StatusForbidden, errs.JSON{
			Error: errs.ErrForbidden.Error(), Code: errs.CodeAuthorization,
		}

	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound, errs.JSON{Error: err.Error(), Code: errs.CodeNotFound}

	case errors.Is(err, errs.ErrInvalidTransition), errors.Is(err, errs.ErrDataConflict):
		return http.StatusConflict, errs.JSON{Error: err.Error(), Code: errs.CodeConflict}

	case errors.Is(err, errs.ErrDiscountInvalid):
		return http.StatusUnprocessableEntity, errs.JSON{Error: err.Error(), Code: errs.CodeDiscount}

	case errors.Is(err, errs.ErrCodeSpaceExhausted):
		return http.StatusServiceUnavailable, errs.JSON{Error: err.Error(), Code: errs.CodeConflict}
	}

	return http.StatusInternalServerError, errs.JSON{Error: "internal error", Code: errs.CodeInternal}
}

func writeJSON(w http.ResponseWriter, code int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(v)
}
