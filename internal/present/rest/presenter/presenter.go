package presenter

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/totegamma/web5-playground/internal/domain"
	"github.com/totegamma/web5-playground/internal/usecase"
)

type errorResponse struct {
	Error string `json:"error"`
}

// OK wraps a successful response.
func OK(c echo.Context, payload any) error {
	return c.JSON(http.StatusOK, payload)
}

func BadRequest(c echo.Context, err error) error {
	fmt.Println("Bad request:", err)
	return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
}

func BadRequestMessage(c echo.Context, msg string) error {
	fmt.Println("Bad request:", msg)
	return c.JSON(http.StatusBadRequest, errorResponse{Error: msg})
}

func Unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, errorResponse{Error: msg})
}

func NotFound(c echo.Context, msg string) error {
	fmt.Println("Not found:", msg)
	return c.JSON(http.StatusNotFound, errorResponse{Error: msg})
}

func Conflict(c echo.Context, err error) error {
	fmt.Println("Conflict:", err)
	return c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
}

func InternalError(c echo.Context, err error) error {
	fmt.Println("Internal error:", err)
	return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
}

// FromError maps the domain error taxonomy onto status codes. Anything
// outside the taxonomy is a server fault.
func FromError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, usecase.ErrAuthMismatch),
		errors.Is(err, usecase.ErrAccountDeactivated),
		errors.Is(err, usecase.ErrAddressMismatch):
		return c.JSON(http.StatusForbidden, errorResponse{Error: err.Error()})
	case errors.Is(err, usecase.ErrInvalidLogin):
		return Unauthorized(c, err.Error())
	case errors.Is(err, usecase.ErrHandleNotAvailable),
		errors.Is(err, usecase.ErrAddressAlreadyBound):
		return BadRequest(c, err)
	case errors.Is(err, domain.ErrNotFound):
		return NotFound(c, err.Error())
	case errors.Is(err, domain.ErrSwapMismatch):
		return Conflict(c, err)
	case errors.Is(err, domain.ErrCrypto):
		return Unauthorized(c, err.Error())
	case errors.Is(err, domain.ErrMalformed),
		errors.Is(err, domain.ErrRecordInvalid),
		errors.Is(err, domain.ErrKeyRequired):
		return BadRequest(c, err)
	case errors.Is(err, domain.ErrTransport):
		fmt.Println("Upstream failure:", err)
		return c.JSON(http.StatusBadGateway, errorResponse{Error: err.Error()})
	default:
		return InternalError(c, err)
	}
}
