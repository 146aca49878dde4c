package errors

import (
	"encoding/json"
	"net/http"
)

type errorBody struct {
	Error string    `json:"error"`
	Type  ErrorType `json:"type"`
}

// WriteHTTP writes err as a JSON error response. Errors that are not *Error
// are reported as a generic internal error so details do not leak.
func WriteHTTP(w http.ResponseWriter, err error) {
	var e *Error
	if !As(err, &e) {
		e = NewError(ErrorTypeInternal, "Internal Server Error")
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(e.HTTPStatusCode())
	_ = json.NewEncoder(w).Encode(errorBody{Error: e.Message, Type: e.Type})
}
