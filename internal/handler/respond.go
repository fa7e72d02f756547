package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/AdansBatista/orca-sub008/internal/domain"
	"github.com/go-playground/validator/v10"
)

// validate is shared across handlers; the validator caches struct
// metadata, so one instance serves the whole package.
var validate = validator.New()

// respondJSON writes v as the JSON response body.
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodeJSON decodes the request body into dst. Unknown fields are
// rejected so typos in client payloads fail loudly.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Invalid("", "Request body is required")
		}
		return domain.Invalid("", "Invalid JSON: "+err.Error())
	}

	return nil
}

// decodeValid decodes the request body and runs struct validation.
// Validation failures come back as a domain.ValidationError with one
// message per field, ready for ValidationErrorResponse.
func decodeValid(r *http.Request, dst interface{}) error {
	if err := decodeJSON(r, dst); err != nil {
		return err
	}

	if err := validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return domain.Invalid("", "Invalid request body")
		}

		var verr error
		for _, fe := range fieldErrs {
			verr = domain.AddFieldError(verr, fieldName(fe), fieldMessage(fe))
		}
		return verr
	}

	return nil
}

// fieldName converts the validator's Go field name to snake_case to
// match the JSON payload the client sent.
func fieldName(fe validator.FieldError) string {
	var b strings.Builder
	for i, r := range fe.Field() {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// fieldMessage renders a short human message for a failed rule.
func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "is invalid"
	}
}
