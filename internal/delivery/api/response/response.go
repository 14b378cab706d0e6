package response

import (
	"net/http"
	"strings"

	deliverycontext "bikeshare/internal/delivery/context"
	domainerrors "bikeshare/internal/domain/errors"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// Success returns a successful response
func Success(c echo.Context, statusCode int, data any) error {
	return c.JSON(statusCode, domainerrors.SuccessResponse{
		Data: data,
		Meta: meta(c),
	})
}

// Raw writes data without the response envelope, for documents with their own
// media type such as GeoJSON
func Raw(c echo.Context, statusCode int, contentType string, data any) error {
	c.Response().Header().Set(echo.HeaderContentType, contentType)
	c.Response().WriteHeader(statusCode)

	return errors.WithStack(c.Echo().JSONSerializer.Serialize(c, data, ""))
}

// NoContent returns 204 with the request ID header already set
func NoContent(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}

// Error returns an error response
func Error(c echo.Context, statusCode int, errorCode string, message string, details any) error {
	// Details should not be included for 5xx errors
	if statusCode >= 500 {
		details = nil
	}

	return c.JSON(statusCode, domainerrors.ErrorResponse{
		Error: &domainerrors.ErrorInfo{
			Code:    errorCode,
			Message: message,
			Details: details,
		},
		Meta: meta(c),
	})
}

func meta(c echo.Context) *domainerrors.MetaInfo {
	return &domainerrors.MetaInfo{
		RequestID: deliverycontext.GetRequestID(c),
	}
}

// BadRequest returns a 400 error
func BadRequest(c echo.Context, errorCode string, message string) error {
	return Error(c, http.StatusBadRequest, errorCode, message, nil)
}

// BindingError returns a binding error response
func BindingError(c echo.Context, errorCode string, message string) error {
	return Error(c, http.StatusBadRequest, errorCode, message, nil)
}

// NotFound returns a 404 error
func NotFound(c echo.Context, errorCode string, message string) error {
	return Error(c, http.StatusNotFound, errorCode, message, nil)
}

// InternalServerError returns a 500 error
func InternalServerError(c echo.Context, errorCode string, message string) error {
	return Error(c, http.StatusInternalServerError, errorCode, message, nil)
}

// HandleAppError handles application errors, converting domain errors to appropriate HTTP responses
func HandleAppError(c echo.Context, err error) error {
	var appErr domainerrors.AppError
	if errors.As(err, &appErr) {
		return Error(c, appErr.HTTPCode(), appErr.ErrorCode(), appErr.Message(), Details(err, appErr))
	}

	return errors.WithStack(err)
}

// Details returns the context wrapped around an AppError, or its own details.
// "the distance must be 0 or a positive number: The arguments are not valid" gives
// "the distance must be 0 or a positive number".
func Details(err error, appErr domainerrors.AppError) any {
	if d := appErr.Details(); d != "" {
		return d
	}

	prefix := strings.TrimSuffix(err.Error(), appErr.Error())
	prefix = strings.TrimSuffix(prefix, ": ")
	if prefix == "" || prefix == err.Error() {
		return nil
	}

	return prefix
}
