package httputil

import (
	"bytes"
	"encoding/json"
)

// OptionalString tracks presence and value for JSON PATCH semantics (RFC 7396).
// Go's *string cannot tell an absent field from an explicit null:
//   - Present=false: field absent from JSON (leave unchanged)
//   - Present=true, Value=nil: field is JSON null
//   - Present=true, Value!=nil: field carries a string, possibly empty
type OptionalString struct {
	Present bool
	Value   *string
}

// UnmarshalJSON is only called for fields present in the document.
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Present = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

// IsNull reports an explicit JSON null.
func (o OptionalString) IsNull() bool {
	return o.Present && o.Value == nil
}
