package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// APIResponse is the envelope of every JSON response.
type APIResponse struct {
	Status  int         `json:"status" example:"200"`
	Message string      `json:"message" example:"OK"`
	Data    interface{} `json:"data,omitempty"`
}

// ListDataResponse carries a page of rows and the unpaged total.
type ListDataResponse struct {
	Rows  interface{} `json:"rows"`
	Total int64       `json:"total"`
}

func respond(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, APIResponse{
		Status:  status,
		Message: http.StatusText(status),
		Data:    data,
	})
}

func SuccessResponse(c echo.Context, data interface{}) error {
	return respond(c, http.StatusOK, data)
}

// AcceptedResponse acknowledges work handed to the job queue.
func AcceptedResponse(c echo.Context, data interface{}) error {
	return respond(c, http.StatusAccepted, data)
}

func ListResponse(c echo.Context, rows interface{}, total int64) error {
	return respond(c, http.StatusOK, &ListDataResponse{Rows: rows, Total: total})
}

// BadRequestResponse reports rejected request fields.
func BadRequestResponse(c echo.Context, errs []ValidationError) error {
	return respond(c, http.StatusBadRequest, errs)
}

// AppErrorResponse writes err with its own status. Anything that is not an
// *AppError becomes an opaque 500.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = InternalError("something went wrong").WithError(err)
	}
	return respond(c, appErr.Status, []*AppError{appErr})
}
