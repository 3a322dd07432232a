package errs

import (
	"fmt"
	"net/http"
)

// Kind is the stable machine-readable classification of a failure. Callers
// building retry logic branch on Kind, never on Message.
const (
	KindNotFound   = "not_found"
	KindConflict   = "conflict"
	KindForbidden  = "forbidden"
	KindValidation = "validation"
	KindUpstream   = "upstream"
)

type HttpError struct {
	Code    int
	Kind    string
	Message string
	Data    any
}

func (e *HttpError) Error() string {
	return fmt.Sprintf("code %d: %s, data: %v", e.Code, e.Message, e.Data)
}

func NotFound(message string) *HttpError {
	return &HttpError{Code: http.StatusNotFound, Kind: KindNotFound, Message: message}
}

func Conflict(message string) *HttpError {
	return &HttpError{Code: http.StatusConflict, Kind: KindConflict, Message: message}
}

func Forbidden(message string) *HttpError {
	return &HttpError{Code: http.StatusForbidden, Kind: KindForbidden, Message: message}
}

func Validation(message string, data any) *HttpError {
	return &HttpError{Code: http.StatusBadRequest, Kind: KindValidation, Message: message, Data: data}
}

func Upstream(message string) *HttpError {
	return &HttpError{Code: http.StatusBadGateway, Kind: KindUpstream, Message: message}
}
