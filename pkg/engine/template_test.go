package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRenderDirectKeys(t *testing.T) {
	store := NewVariableStore()
	store.Set("contact.name", "Ana")
	store.Set("contact.phone", "+15551230000")

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{"single placeholder", "{{contact.name}}", "Ana"},
		{"placeholder inside text", "Hello {{contact.name}}!", "Hello Ana!"},
		{"multiple placeholders", "{{contact.name}}: {{contact.phone}}", "Ana: +15551230000"},
		{"whitespace inside braces", "{{ contact.name }}", "Ana"},
		{"absent key stays literal", "{{contact.email}}", "{{contact.email}}"},
		{"empty template", "", ""},
		{"no placeholders", "plain text", "plain text"},
		{"mixed resolved and unresolved", "Hello {{unknown.name}}, we will call {{contact.phone}}",
			"Hello {{unknown.name}}, we will call +15551230000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Render(tt.template, store))
		})
	}
}

func TestRenderNestedPaths(t *testing.T) {
	store := NewVariableStore()
	store.Set("a", map[string]any{"b": "x", "c": "y"})
	store.Set("order", map[string]any{
		"customer": map[string]any{"name": "Ana"},
		"items":    []any{"first", "second"},
	})
	store.Set("response", `{"status":200,"body":{"token":"abc123"}}`)

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{"one level", "{{a.b}}", "x"},
		{"two levels", "{{order.customer.name}}", "Ana"},
		{"into json string value", "{{response.body.token}}", "abc123"},
		{"numeric field from json string", "{{response.status}}", "200"},
		{"missing leaf stays literal", "{{a.missing}}", "{{a.missing}}"},
		{"missing root stays literal", "{{nope.b}}", "{{nope.b}}"},
		{"partial path failure stays literal", "{{order.customer.age}}", "{{order.customer.age}}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Render(tt.template, store))
		})
	}
}

func TestRenderDirectKeyWinsOverNestedPath(t *testing.T) {
	store := NewVariableStore()
	store.Set("a", map[string]any{"b": "nested"})
	store.Set("a.b", "direct")

	assert.Equal(t, "direct", Render("{{a.b}}", store))
}

func TestRenderRejectsInvalidPaths(t *testing.T) {
	store := NewVariableStore()
	store.Set("weird!key", "should never appear")
	store.Set("name", "Ana")

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{"exclamation mark", "{{weird!key}}", "{{weird!key}}"},
		{"spaces in path", "{{two words}}", "{{two words}}"},
		{"regex metacharacters", "{{a(b)*c}}", "{{a(b)*c}}"},
		{"injection next to a valid placeholder", "{{name}}{{$x := 1}}", "Ana{{$x := 1}}"},
		{"empty path", "{{}}", "{{}}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Render(tt.template, store)
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, got, "should never appear")
		})
	}
}

func TestRenderIdempotent(t *testing.T) {
	store := NewVariableStore()
	store.Set("contact.name", "Ana")
	tmpl := "Hi {{contact.name}}, ref {{missing.ref}}"

	first := Render(tmpl, store)
	second := Render(tmpl, store)
	assert.Equal(t, first, second)
}

func TestFormatValue(t *testing.T) {
	ts := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"nil renders empty", nil, ""},
		{"string passes through", "hello", "hello"},
		{"bool", true, "true"},
		{"int", 42, "42"},
		{"float without exponent", 1230000.5, "1230000.5"},
		{"time renders rfc3339", ts, "2025-03-14T09:30:00Z"},
		{"array picks first usable element", []any{nil, "", "first", "second"}, "first"},
		{"array of all empties renders empty", []any{nil, ""}, ""},
		{"string slice", []string{"only"}, "only"},
		{"map renders as json", map[string]any{"status": 200.0}, `{"status":200}`},
		{"nested pointer", ptr("deref"), "deref"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatValue(tt.value))
		})
	}
}

func ptr[T any](v T) *T { return &v }

func TestRenderFormatsValuesInPlace(t *testing.T) {
	store := NewVariableStore()
	store.Set("phones", []any{"", "+5511999990000"})
	store.Set("payload", map[string]any{"ok": true})

	assert.Equal(t, "call +5511999990000", Render("call {{phones}}", store))
	assert.Equal(t, `{"ok":true}`, Render("{{payload}}", store))
}

func TestRenderSurvivesPathologicalValue(t *testing.T) {
	store := NewVariableStore()
	store.Set("contact.name", "Ana")
	// marshaling a channel panics inside the json encoder for some shapes and
	// errors for others; either way the rest of the template must render.
	store.Set("bad", map[string]any{"ch": make(chan int)})

	got := Render("{{bad.x}} and {{contact.name}}", store)
	assert.Contains(t, got, "Ana")
	assert.Contains(t, got, "{{bad.x}}")
}

func TestSanitizeIsPassthrough(t *testing.T) {
	assert.Equal(t, "<b>Ana & Co</b>", sanitize("<b>Ana & Co</b>"))
}
