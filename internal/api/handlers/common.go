package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"auction-settlement/internal/domain"
	"auction-settlement/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// HeaderUserID carries the caller's identity. Authentication happens upstream.
const HeaderUserID = "X-User-ID"

type errorResponse struct {
	Error      string `json:"error"`
	Field      string `json:"field,omitempty"`
	MinimumBid string `json:"minimum_bid,omitempty"`
}

// RequestValidator plugs validator/v10 into echo's c.Validate.
type RequestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

func (v *RequestValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

func getAllErrorMessages(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}
	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, fmt.Sprintf("'%s': %s", fe.Field(), getMessage(fe)))
	}
	return strings.Join(messages, "; ")
}

func getMessage(fe validator.FieldError) string {
	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "lte", "max":
		if isString {
			return "length should be less or equal than " + fe.Param()
		}
		return "should be less or equal than " + fe.Param()
	case "gte", "min":
		if isString {
			return "length should be greater or equal than " + fe.Param()
		}
		return "should be greater or equal than " + fe.Param()
	case "oneof":
		return "should have value in: " + fe.Param()
	}
	return "incorrect value passed"
}

// bindAndValidate decodes the request body into req and runs the validator.
// When ok is false the 400 response has already been written.
func bindAndValidate(c echo.Context, req interface{}) (ok bool, err error) {
	if err := c.Bind(req); err != nil {
		return false, c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return false, c.JSON(http.StatusBadRequest, errorResponse{Error: getAllErrorMessages(err)})
	}
	return true, nil
}

func currentUser(c echo.Context) (string, bool) {
	userID := strings.TrimSpace(c.Request().Header.Get(HeaderUserID))
	return userID, userID != ""
}

func missingUser(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, errorResponse{Error: "missing " + HeaderUserID + " header"})
}

// respondError maps engine errors onto HTTP statuses.
func respondError(c echo.Context, log logger.Logger, err error) error {
	var validationErr *domain.ValidationError
	var tooLow *domain.BidTooLowError

	switch {
	case errors.As(err, &validationErr):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Field: validationErr.Field})
	case errors.Is(err, domain.ErrValidation):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.As(err, &tooLow):
		return c.JSON(http.StatusUnprocessableEntity, errorResponse{
			Error:      err.Error(),
			MinimumBid: tooLow.Minimum.StringFixed(2),
		})
	case errors.Is(err, domain.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrNotOwner):
		return c.JSON(http.StatusForbidden, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrPreconditionFailed):
		return c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrLockTimeout):
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "listing is busy, retry"})
	}

	log.Error("Request failed", "method", c.Request().Method, "path", c.Path(), "error", err)
	return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
}
