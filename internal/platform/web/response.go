package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"
	"github.com/tokenized/logger"
	"gopkg.in/go-playground/validator.v8"
)

var (
	// ErrNotFound is abstracting the db not found error.
	ErrNotFound = errors.New("Entity not found")

	// ErrUnauthorized occurs when there is no valid session.
	ErrUnauthorized = errors.New("Unauthorized")

	validate = validator.New(&validator.Config{TagName: "validate"})
)

// RequestError is an error with a status code and a message that is safe to return to the client.
type RequestError struct {
	Err     error
	Status  int
	Message string
}

// NewRequestError wraps err with the status and client message it should be reported with.
func NewRequestError(err error, status int, message string) error {
	return &RequestError{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

func (e *RequestError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + " : " + e.Err.Error()
}

// Unmarshal decodes a JSON body into v and validates it using "validate" tags.
func Unmarshal(r io.Reader, v interface{}) error {
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return NewRequestError(err, http.StatusBadRequest, "Invalid request body")
	}

	if err := validate.Struct(v); err != nil {
		return NewRequestError(err, http.StatusBadRequest, "Invalid request")
	}

	return nil
}

// Respond sends JSON to the client. A nil data sends only the status code.
func Respond(ctx context.Context, w http.ResponseWriter, data interface{}, code int) {
	if v := ContextValues(ctx); v != nil {
		v.StatusCode = code
	}

	if data == nil || code == http.StatusNoContent {
		w.WriteHeader(code)
		return
	}

	b, err := json.Marshal(data)
	if err != nil {
		logger.Error(ctx, "Failed to marshal response : %s", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(b); err != nil {
		logger.Warn(ctx, "Failed to write response : %s", err)
	}
}

// RespondError sends an error reponse with the message of err.
func RespondError(ctx context.Context, w http.ResponseWriter, err error, code int) {
	response := struct {
		Error string `json:"error"`
	}{
		Error: err.Error(),
	}

	Respond(ctx, w, response, code)
}

// Error handles all error responses for the API. Only the message of a RequestError is ever
// returned to the client.
func Error(ctx context.Context, w http.ResponseWriter, err error) {
	switch e := errors.Cause(err).(type) {
	case *RequestError:
		RespondError(ctx, w, errors.New(e.Message), e.Status)
		return
	}

	switch errors.Cause(err) {
	case ErrNotFound:
		RespondError(ctx, w, ErrNotFound, http.StatusNotFound)
		return
	case ErrUnauthorized:
		RespondError(ctx, w, ErrUnauthorized, http.StatusUnauthorized)
		return
	}

	RespondError(ctx, w, errors.New(http.StatusText(http.StatusInternalServerError)),
		http.StatusInternalServerError)
}
