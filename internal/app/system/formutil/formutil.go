// Package formutil decodes request bodies that may arrive either as JSON
// (API clients) or as an urlencoded or multipart form (the public request
// page).
//
// Form values are mapped onto the same struct as JSON by field tag: the
// form is collected into a flat string map and decoded through
// encoding/json, so destination fields that accept JSON strings (plain
// strings, or types with an UnmarshalJSON that takes a string) work for
// both content types.
//
//	var f onboarding.Form
//	if err := formutil.Decode(w, r, &f, limits.MaxSubmissionBody); err != nil {
//		h.ErrLog.LogBadRequest(w, r, "decode submission", err, "Malformed request body.")
//		return
//	}
package formutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
)

// ErrUnsupportedType is returned for bodies that are neither JSON nor a form.
var ErrUnsupportedType = errors.New("unsupported content type")

// Decode reads r's body into dst, capping it at maxBytes.
func Decode(w http.ResponseWriter, r *http.Request, dst any, maxBytes int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	ct := r.Header.Get("Content-Type")
	mt := ""
	if ct != "" {
		var err error
		mt, _, err = mime.ParseMediaType(ct)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnsupportedType, err)
		}
	}

	switch {
	case mt == "application/json" || mt == "":
		dec := json.NewDecoder(r.Body)
		if err := dec.Decode(dst); err != nil {
			return fmt.Errorf("decode json: %w", err)
		}
		return nil
	case mt == "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return fmt.Errorf("parse form: %w", err)
		}
		return FromValues(r.PostForm, dst)
	case mt == "multipart/form-data":
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			return fmt.Errorf("parse multipart form: %w", err)
		}
		return FromValues(r.MultipartForm.Value, dst)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedType, mt)
	}
}

// FromValues decodes the first value of each form key into dst by json tag.
func FromValues(values map[string][]string, dst any) error {
	flat := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			flat[strings.TrimSpace(k)] = v[0]
		}
	}
	b, err := json.Marshal(flat)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("decode form: %w", err)
	}
	return nil
}
