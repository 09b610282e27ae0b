package metadata

import (
	"encoding/json"
	"strconv"
)

// Field names a metadata value.
type Field string

const (
	FieldTitle       Field = "title"
	FieldDescription Field = "description"
	FieldImage       Field = "image"
	FieldKeywords    Field = "keywords"
)

// Record is the SEO metadata returned by a provider. An empty field means
// "leave the target alone".
type Record struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
	Keywords    string `json:"keywords,omitempty"`
}

// Get returns the value for f and whether it is present.
func (r Record) Get(f Field) (string, bool) {
	var v string
	switch f {
	case FieldTitle:
		v = r.Title
	case FieldDescription:
		v = r.Description
	case FieldImage:
		v = r.Image
	case FieldKeywords:
		v = r.Keywords
	}
	return v, v != ""
}

// IsEmpty reports whether no field is present.
func (r Record) IsEmpty() bool {
	return r == Record{}
}

// RecordFromJSON builds a Record from any decoded JSON value. Non-object
// roots and non-scalar fields yield empty fields; extra keys are ignored.
func RecordFromJSON(v any) Record {
	obj, ok := v.(map[string]any)
	if !ok {
		return Record{}
	}
	return Record{
		Title:       coerceString(obj[string(FieldTitle)]),
		Description: coerceString(obj[string(FieldDescription)]),
		Image:       coerceString(obj[string(FieldImage)]),
		Keywords:    coerceString(obj[string(FieldKeywords)]),
	}
}

// coerceString renders a scalar as a string. Falsy scalars (false, 0, "")
// yield "" so they read as absent.
func coerceString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		if f, err := t.Float64(); err == nil && f == 0 {
			return ""
		}
		return t.String()
	case float64:
		if t == 0 {
			return ""
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if !t {
			return ""
		}
		return strconv.FormatBool(t)
	default:
		return ""
	}
}
