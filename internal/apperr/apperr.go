// Package apperr defines the error kinds shared by services and the HTTP
// layer. Services return (or wrap) one of the sentinel kinds; handlers map
// them to status codes with Status and Code.
package apperr

import (
	"encoding/json"
	"errors"
	"net/http"
)

var (
	ErrUnauthenticated   = errors.New("not authenticated")
	ErrForbidden         = errors.New("insufficient permissions")
	ErrNotFound          = errors.New("not found")
	ErrGone              = errors.New("gone")
	ErrRejected          = errors.New("limit reached")
	ErrPasswordRequired  = errors.New("password required")
	ErrPasswordIncorrect = errors.New("incorrect password")
	ErrConflict          = errors.New("already exists")
	ErrValidation        = errors.New("invalid request")
	ErrUnavailable       = errors.New("unavailable")
)

// Error carries a user-facing message for one of the sentinel kinds.
type Error struct {
	Kind  error
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Msg + ": " + e.Cause.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

// New returns an error of the given kind with msg as its text.
func New(kind error, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap is New with an underlying cause attached. Both kind and cause match
// with errors.Is; only msg is shown to clients.
func Wrap(kind error, msg string, cause error) error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

type mapping struct {
	kind   error
	status int
	code   string
}

// Order matters: more specific kinds come before the ones they wrap.
var mappings = []mapping{
	{ErrPasswordRequired, http.StatusUnauthorized, "password_required"},
	{ErrPasswordIncorrect, http.StatusUnauthorized, "password_incorrect"},
	{ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
	{ErrForbidden, http.StatusForbidden, "forbidden"},
	{ErrNotFound, http.StatusNotFound, "not_found"},
	{ErrGone, http.StatusGone, "gone"},
	{ErrRejected, http.StatusTooManyRequests, "rejected"},
	{ErrConflict, http.StatusConflict, "conflict"},
	{ErrValidation, http.StatusBadRequest, "validation"},
	{ErrUnavailable, http.StatusServiceUnavailable, "unavailable"},
}

// Status returns the HTTP status for err, or 500 when err is not one of
// the known kinds.
func Status(err error) int {
	for _, m := range mappings {
		if errors.Is(err, m.kind) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}

// Code returns a short machine-readable name for the kind of err.
func Code(err error) string {
	for _, m := range mappings {
		if errors.Is(err, m.kind) {
			return m.code
		}
	}
	return "internal"
}

// Message returns the text that is safe to show to a client. Unknown
// errors are reduced to "internal error".
func Message(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Msg
	}
	for _, m := range mappings {
		if errors.Is(err, m.kind) {
			return err.Error()
		}
	}
	return "internal error"
}

// Body is the JSON shape of every error response.
type Body struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Write sends err to the client with its mapped status.
func Write(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(Status(err))
	_ = json.NewEncoder(w).Encode(Body{Error: Message(err), Code: Code(err)})
}
