package pagedata

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/r9s-ai/seo-router/internal/metadata"
)

// Locale is the only locale key written into page data.
const Locale = "en"

// ErrNotObject is returned when the page data root is not a JSON object.
var ErrNotObject = errors.New("pagedata: document root is not an object")

var pageDataRe = regexp.MustCompile(`/public/data/[a-f0-9]{8}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{12}\.json`)

// IsPageDataPath reports whether path names a page data document.
func IsPageDataPath(path string) bool {
	return pageDataRe.MatchString(path)
}

// objects that must exist before any field is written.
var defaultPaths = [][]string{
	{"page"},
	{"page", "title"},
	{"page", "meta"},
	{"page", "meta", "desc"},
	{"page", "meta", "keywords"},
	{"page", "socialTitle"},
	{"page", "socialDesc"},
}

type target struct {
	path   []string
	field  metadata.Field
	locale bool
}

var targets = []target{
	{path: []string{"page", "title"}, field: metadata.FieldTitle, locale: true},
	{path: []string{"page", "socialTitle"}, field: metadata.FieldTitle, locale: true},
	{path: []string{"page", "meta", "desc"}, field: metadata.FieldDescription, locale: true},
	{path: []string{"page", "socialDesc"}, field: metadata.FieldDescription, locale: true},
	{path: []string{"page", "metaImage"}, field: metadata.FieldImage},
	{path: []string{"page", "meta", "keywords"}, field: metadata.FieldKeywords, locale: true},
}

// Merge returns a copy of doc with rec written into the page object. doc
// itself is never modified.
func Merge(doc map[string]any, rec metadata.Record) map[string]any {
	out, _ := deepCopy(doc).(map[string]any)
	if out == nil {
		out = map[string]any{}
	}
	for _, p := range defaultPaths {
		ensureObject(out, p)
	}
	for _, t := range targets {
		v, ok := rec.Get(t.field)
		if !ok {
			continue
		}
		parent := ensureObject(out, t.path[:len(t.path)-1])
		key := t.path[len(t.path)-1]
		if t.locale {
			ensureObject(parent, []string{key})[Locale] = v
			continue
		}
		parent[key] = v
	}
	return out
}

// MergeJSON decodes body, merges rec and re-encodes it. Numbers keep their
// original text and HTML characters are not escaped. Object keys come out
// sorted, not in source order.
func MergeJSON(body []byte, rec metadata.Record) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var root any
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("pagedata: decode: %w", err)
	}
	obj, ok := root.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	merged := Merge(obj, rec)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(merged); err != nil {
		return nil, fmt.Errorf("pagedata: encode: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// ensureObject walks path from root, replacing anything that is not an
// object with an empty one, and returns the object at the end of path.
func ensureObject(root map[string]any, path []string) map[string]any {
	cur := root
	for _, k := range path {
		next, ok := cur[k].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[k] = next
		}
		cur = next
	}
	return cur
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = deepCopy(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = deepCopy(vv)
		}
		return out
	default:
		return v
	}
}
