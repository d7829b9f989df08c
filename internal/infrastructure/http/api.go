package httpserver

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/oapi-codegen/runtime/types"
)

const (
	CodeMissingField     = "MISSING_FIELD"
	CodeInvalidField     = "INVALID_FIELD"
	CodeBadRequest       = "BAD_REQUEST"
	CodeConflict         = "CONFLICT"
	CodeNotFound         = "NOT_FOUND"
	CodeDuplicateRequest = "DUPLICATE_REQUEST"
	CodeInternal         = "INTERNAL"
	CodeUnavailable      = "UNAVAILABLE"
)

type BookingInfo struct {
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"firstname" validate:"required"`
	LastName  string `json:"lastname" validate:"required"`
}

type BookingRequest struct {
	StartDate   *types.Date  `json:"startDate" validate:"required"`
	EndDate     *types.Date  `json:"endDate" validate:"required"`
	BookingInfo *BookingInfo `json:"bookingInfo" validate:"required"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorsResponse struct {
	Errors []APIError `json:"errors"`
}

type requestValidator struct{ v *validator.Validate }

func newRequestValidator() *requestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &requestValidator{v: v}
}

// Check returns one APIError per failed field rule, or nil.
func (rv *requestValidator) Check(s any) []APIError {
	err := rv.v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []APIError{{Code: CodeBadRequest, Message: err.Error()}}
	}
	out := make([]APIError, 0, len(verrs))
	for _, fe := range verrs {
		// drop the Go type name that leads the namespace
		_, field, _ := strings.Cut(fe.Namespace(), ".")
		if fe.Tag() == "required" {
			out = append(out, APIError{Code: CodeMissingField, Message: fmt.Sprintf("Missing mandatory field '%s'", field)})
			continue
		}
		out = append(out, APIError{Code: CodeInvalidField, Message: fmt.Sprintf("Field '%s' fails rule '%s'", field, fe.Tag())})
	}
	return out
}
