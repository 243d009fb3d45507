package engine

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// placeholderPattern extracts every {{...}} span in one pass. Resolving spans
// individually, instead of compiling a pattern per store key, keeps rendering
// O(template) and isolates failures to a single placeholder.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([^{}]*?)\s*\}\}`)

// identifierPattern is the conservative grammar a path must match before any
// substitution is attempted. Paths outside this grammar are left completely
// untouched, which is the primary defense against template injection through
// attacker-controlled path strings.
var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Render substitutes {{path}} placeholders in tmpl with values from store.
//
// A path is resolved first as a direct store key, then as a dotted traversal
// into a nested value (a.b.c means key "a", then field "b", then field "c").
// Placeholders that fail the identifier grammar or that cannot be resolved
// stay in the output as literal text. Render never fails: a fault while
// resolving one placeholder is logged and rendering continues, and a fault
// outside the placeholder loop returns the original template unchanged.
func Render(tmpl string, store *VariableStore) (out string) {
	if tmpl == "" || store == nil {
		return ""
	}
	defer func() {
		if r := recover(); r != nil {
			templateAborts.Inc()
			slog.Error("template rendering aborted, returning original template", "error", r)
			out = tmpl
		}
	}()

	if !strings.Contains(tmpl, "{{") {
		return tmpl
	}

	templateRenders.Inc()
	return placeholderPattern.ReplaceAllStringFunc(tmpl, func(span string) string {
		path := strings.TrimSpace(span[2 : len(span)-2])
		if !identifierPattern.MatchString(path) {
			return span
		}
		return resolveSpan(span, path, store)
	})
}

// resolveSpan resolves one placeholder, recovering from any fault so the rest
// of the template still renders.
func resolveSpan(span, path string, store *VariableStore) (out string) {
	defer func() {
		if r := recover(); r != nil {
			placeholderFaults.Inc()
			slog.Error("failed to resolve placeholder", "path", path, "error", r)
			out = span
		}
	}()

	if v, ok := store.Get(path); ok {
		return sanitize(formatValue(v))
	}
	if v, ok := resolveNested(path, store); ok {
		return sanitize(formatValue(v))
	}
	return span
}

// resolveNested walks a dotted path into a nested value: some head of the
// path is a store key and the remainder is a field traversal into its value.
// Store keys are themselves dotted (webhook.response, contact.name), so heads
// are tried shortest first. Resolution that fails at every split leaves the
// placeholder alone.
func resolveNested(path string, store *VariableStore) (any, bool) {
	segs := strings.Split(path, ".")
	for i := 1; i < len(segs); i++ {
		head := strings.Join(segs[:i], ".")
		v, ok := store.Get(head)
		if !ok {
			continue
		}
		if out, ok := lookupPath(v, strings.Join(segs[i:], ".")); ok {
			return out, true
		}
	}
	return nil, false
}

// lookupPath traverses a field path inside an arbitrary value. String values
// holding valid JSON (the usual shape of cached webhook and HTTP responses)
// are walked directly; everything else is marshaled once and walked as JSON.
func lookupPath(root any, path string) (any, bool) {
	if s, ok := root.(string); ok {
		if !gjson.Valid(s) {
			return nil, false
		}
		r := gjson.Get(s, path)
		if !r.Exists() {
			return nil, false
		}
		return r.Value(), true
	}

	b, err := json.Marshal(root)
	if err != nil {
		return nil, false
	}
	r := gjson.GetBytes(b, path)
	if !r.Exists() {
		return nil, false
	}
	return r.Value(), true
}

// valueKind classifies a variable value for formatting. The formatter
// switches exhaustively over these kinds instead of probing concrete types
// at each call site.
type valueKind int

const (
	kindAbsent valueKind = iota
	kindScalar
	kindSequence
	kindStructured
)

func kindOf(v any) valueKind {
	if v == nil {
		return kindAbsent
	}
	switch v.(type) {
	case string, bool, int, int32, int64, uint, uint32, uint64,
		float32, float64, json.Number, time.Time, []byte:
		return kindScalar
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return kindSequence
	case reflect.Map, reflect.Struct:
		return kindStructured
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return kindAbsent
		}
		return kindOf(rv.Elem().Interface())
	default:
		return kindScalar
	}
}

// formatValue renders a variable value as the string substituted into a
// template.
//
// Absent values render empty. Sequences render as their first usable scalar,
// not a joined list; a multi-valued field stands for "one value from possibly
// several upstream sources". Structured values render as canonical JSON.
func formatValue(v any) string {
	if v == nil {
		return ""
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return ""
		}
		return formatValue(rv.Elem().Interface())
	}

	switch kindOf(v) {
	case kindAbsent:
		return ""
	case kindSequence:
		return formatSequence(v)
	case kindStructured:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	default:
		return formatScalar(v)
	}
}

// formatSequence returns the first non-empty, non-absent element of a slice
// or array, formatted as a string.
func formatSequence(v any) string {
	rv := reflect.ValueOf(v)
	for i := 0; i < rv.Len(); i++ {
		elem := rv.Index(i).Interface()
		if kindOf(elem) == kindAbsent {
			continue
		}
		s := formatValue(elem)
		if s == "" {
			continue
		}
		return s
	}
	return ""
}

func formatScalar(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case time.Time:
		return s.Format(time.RFC3339)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(s), 'f', -1, 32)
	case json.Number:
		return s.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// sanitize is the escaping seam between resolution and output. The primary
// output channel today is a plain-text messaging medium, so it passes values
// through untouched; a markup-bound channel can inject escaping here without
// touching the resolution algorithm.
func sanitize(s string) string {
	return s
}
