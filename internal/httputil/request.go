package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// maxBodyBytes caps request bodies. Requests carry names, ids and options;
// file bytes go straight to the object store.
const maxBodyBytes = 1 << 20

// ParseJSON decodes JSON from the request body into the given destination.
func ParseJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// ParseOptionalJSON is ParseJSON for endpoints whose body may be omitted.
// An empty body leaves dest untouched.
func ParseOptionalJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	err := ParseJSON(w, r, dest)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
