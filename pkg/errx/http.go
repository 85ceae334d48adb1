package errx

import (
	"errors"
	"net/http"
)

// HTTPErrorResponse is the wire shape of every error answered by the API.
// Validation failures look like {"message": ..., "errors": {"field": ["reason"]}}.
type HTTPErrorResponse struct {
	Message string         `json:"message"`
	Code    string         `json:"code"`
	Errors  FieldErrors    `json:"errors,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// ToHTTPResponse converts an Error to an HTTPErrorResponse. Details are only
// included when debug is set, they may carry internal identifiers.
func (e *Error) ToHTTPResponse(debug bool) HTTPErrorResponse {
	resp := HTTPErrorResponse{
		Message: e.Message,
		Code:    e.Code,
		Errors:  e.Fields,
	}
	if debug {
		resp.Details = e.Details
	}
	return resp
}

// Resolve maps any error to the status and body the boundary should answer
// with. Unknown errors become a bare 500, nothing internal leaks.
func Resolve(err error, debug bool) (int, HTTPErrorResponse) {
	var e *Error
	if errors.As(err, &e) && e.Type != TypeInternal {
		status := e.HTTPStatus
		if status == 0 {
			status = typeToHTTPStatus(e.Type)
		}
		return status, e.ToHTTPResponse(debug)
	}
	return http.StatusInternalServerError, HTTPErrorResponse{
		Message: "internal error",
		Code:    string(TypeInternal),
	}
}
