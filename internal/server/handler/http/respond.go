package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/DanielTwine/dloperOS/internal/apperr"
)

// maxJSONBody caps JSON request bodies.
const maxJSONBody = 1 << 20

var errInvalidBody = apperr.New(apperr.ErrValidation, "invalid request body")

type statusResponse struct {
	Status string `json:"status"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError sends err as an error body. Errors that map to 500 are
// logged with their cause, which the client never sees.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	if apperr.Status(err) == http.StatusInternalServerError && log != nil {
		log.Error("request failed", zap.Error(err))
	}
	apperr.Write(w, err)
}

// decodeJSON reads a single JSON document into v. An empty body leaves v
// untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return errInvalidBody
	}
	return nil
}
