package http

import (
	"errors"
	"net/http"

	"finassist/internal/core"
	applog "finassist/internal/log"
	"finassist/internal/storage"
)

// errorHandler writes the response for err if it recognises it.
type errorHandler func(w http.ResponseWriter, err error) bool

var errorHandlers = []errorHandler{
	requestErrorHandler,
	validationHandler,
	sentinelHandler(storage.ErrNotFound, http.StatusNotFound, "resource not found"),
	sentinelHandler(storage.ErrConflict, http.StatusConflict, "resource already exists"),
	sentinelHandler(core.ErrGoalCompleted, http.StatusBadRequest, core.ErrGoalCompleted.Error()),
}

func requestErrorHandler(w http.ResponseWriter, err error) bool {
	var re *requestError
	if !errors.As(err, &re) {
		return false
	}
	ErrorResponse(http.StatusBadRequest, re.msg).Write(w)
	return true
}

func validationHandler(w http.ResponseWriter, err error) bool {
	var ve *core.ValidationError
	if !errors.As(err, &ve) {
		return false
	}
	ErrorResponse(http.StatusUnprocessableEntity, ve.Error()).Write(w)
	return true
}

func sentinelHandler(sentinel error, status int, msg string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		ErrorResponse(status, msg).Write(w)
		return true
	}
}

// writeError maps err onto a status code. Unrecognised errors become a 500
// with a generic message so store internals never reach the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	logger := applog.FromContext(r.Context())
	for _, h := range errorHandlers {
		if h(w, err) {
			logger.DebugContext(r.Context(), "Request rejected", applog.FieldError, err.Error())
			return
		}
	}
	logger.ErrorContext(r.Context(), "Request failed",
		applog.FieldError, err.Error(),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	InternalServerError("internal server error").Write(w)
}
