package template

import (
	"strings"
	"testing"

	"github.com/craftwise-app/craftwise/internal/db"
)

func TestCatalogHasTemplateForEveryKind(t *testing.T) {
	catalog := NewCatalog()

	for _, kind := range db.Kinds {
		t.Run(kind, func(t *testing.T) {
			tmpl, err := catalog.Get(kind)
			if err != nil {
				t.Fatalf("Get(%s) failed: %v", kind, err)
			}
			if tmpl.Subject == "" || tmpl.Body == "" {
				t.Errorf("template for %s has empty subject or body", kind)
			}
		})
	}
}

func TestCatalogUnknownKind(t *testing.T) {
	catalog := NewCatalog()

	if _, err := catalog.Get("t_minus_1week"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestRender(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		context map[string]string
		want    string
	}{
		{
			name:    "single_placeholder",
			input:   "Hi {{attendeeName}}",
			context: map[string]string{"attendeeName": "Maya"},
			want:    "Hi Maya",
		},
		{
			name:    "multiple_placeholders",
			input:   "{{a}} and {{b}}",
			context: map[string]string{"a": "one", "b": "two"},
			want:    "one and two",
		},
		{
			name:    "unknown_key_left_verbatim",
			input:   "Venue: {{location}}",
			context: map[string]string{"attendeeName": "Maya"},
			want:    "Venue: {{location}}",
		},
		{
			name:    "repeated_placeholder",
			input:   "{{name}}, yes you, {{name}}",
			context: map[string]string{"name": "Sam"},
			want:    "Sam, yes you, Sam",
		},
		{
			name:    "no_placeholders",
			input:   "plain text",
			context: map[string]string{"name": "Sam"},
			want:    "plain text",
		},
		{
			name:    "unclosed_placeholder",
			input:   "broken {{name",
			context: map[string]string{"name": "Sam"},
			want:    "broken {{name",
		},
		{
			name:    "value_containing_braces_not_resubstituted",
			input:   "{{a}}",
			context: map[string]string{"a": "{{b}}", "b": "nope"},
			want:    "{{b}}",
		},
		{
			name:    "empty_context",
			input:   "Hi {{attendeeName}}",
			context: nil,
			want:    "Hi {{attendeeName}}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Render(tt.input, tt.context)
			if got != tt.want {
				t.Errorf("Render(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestRenderDeterministic(t *testing.T) {
	catalog := NewCatalog()
	tmpl, err := catalog.Get(db.KindTMinus24h)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	context := map[string]string{
		"attendeeName": "Maya",
		"workshopName": "Wheel Throwing Basics",
		"workshopDate": "2025-07-10",
		"workshopTime": "09:00",
	}

	first := Render(tmpl.Body, context)
	for i := 0; i < 10; i++ {
		if got := Render(tmpl.Body, context); got != first {
			t.Fatalf("render not deterministic: iteration %d differs", i)
		}
	}

	if !strings.Contains(first, "Maya") || !strings.Contains(first, "Wheel Throwing Basics") {
		t.Errorf("rendered body missing substituted values: %q", first)
	}
	// location was not provided, placeholder stays
	if !strings.Contains(first, "{{location}}") {
		t.Errorf("expected unresolved location placeholder, got %q", first)
	}
}
