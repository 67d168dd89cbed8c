package presenter

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/unioncms/unioncms/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

type lockedResponse struct {
	Error       string    `json:"error"`
	LockedBy    string    `json:"lockedBy"`
	DisplayName string    `json:"displayName,omitempty"`
	Since       time.Time `json:"since"`
}

type conflictResponse struct {
	Error           string     `json:"error"`
	ConflictID      string     `json:"conflictId,omitempty"`
	ServerUpdatedAt *time.Time `json:"serverUpdatedAt,omitempty"`
}

// OK wraps a successful response.
func OK(c echo.Context, payload any) error {
	return c.JSON(http.StatusOK, payload)
}

func Created(c echo.Context, payload any) error {
	return c.JSON(http.StatusCreated, payload)
}

func BadRequest(c echo.Context, err error) error {
	return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
}

func BadRequestMessage(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, errorResponse{Error: msg})
}

func NotFound(c echo.Context, msg string) error {
	return c.JSON(http.StatusNotFound, errorResponse{Error: msg})
}

func Forbidden(c echo.Context, err error) error {
	return c.JSON(http.StatusForbidden, errorResponse{Error: err.Error()})
}

func InternalError(c echo.Context, err error) error {
	fmt.Println("Internal error:", err)
	return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
}

// FromError maps the domain error taxonomy to HTTP statuses. Anything outside
// the taxonomy is an internal error.
func FromError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrDenied):
		var denied domain.DeniedError
		errors.As(err, &denied)
		return c.JSON(http.StatusLocked, lockedResponse{
			Error:       denied.Error(),
			LockedBy:    denied.HeldBy,
			DisplayName: denied.DisplayName,
			Since:       denied.Since,
		})
	case errors.Is(err, domain.ErrManualConflict):
		var manual domain.ManualConflictError
		errors.As(err, &manual)
		return c.JSON(http.StatusConflict, conflictResponse{
			Error:      manual.Error(),
			ConflictID: manual.ConflictID,
		})
	case errors.Is(err, domain.ErrConflict):
		var conflict domain.ConflictError
		errors.As(err, &conflict)
		return c.JSON(http.StatusConflict, conflictResponse{
			Error:           conflict.Error(),
			ServerUpdatedAt: &conflict.ServerUpdatedAt,
		})
	case errors.Is(err, domain.ErrValidation):
		return BadRequest(c, err)
	case errors.Is(err, domain.ErrNotFound):
		return NotFound(c, err.Error())
	case errors.Is(err, domain.ErrPermission):
		return Forbidden(c, err)
	case errors.Is(err, domain.ErrTransport):
		fmt.Println("Transport error:", err)
		return c.JSON(http.StatusBadGateway, errorResponse{Error: "store unavailable"})
	default:
		return InternalError(c, err)
	}
}
