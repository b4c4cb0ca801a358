package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/qaportal/portal/cmd/portalapi/internal/httpx"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 64 << 10

var requestValidator = validator.New(validator.WithRequiredStructEnabled())

// decodeBody decodes and validates a JSON body into dst. It writes a 400 and
// returns false when the body is malformed or fails validation.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		httpx.WriteErrorCode(w, http.StatusBadRequest, httpx.CodeInvalidRequest)
		return false
	}
	if err := requestValidator.Struct(dst); err != nil {
		httpx.WriteErrorCode(w, http.StatusBadRequest, httpx.CodeInvalidRequest)
		return false
	}
	return true
}

// idParam parses a positive int64 route parameter, writing a 400 on failure.
func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		httpx.WriteErrorCode(w, http.StatusBadRequest, httpx.CodeInvalidRequest)
		return 0, false
	}
	return id, true
}
