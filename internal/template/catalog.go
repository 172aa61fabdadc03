// Package template holds the reminder templates and the placeholder
// substitution used to render them. Substitution is a literal
// {{key}} -> value pass: the contract only needs named placeholders
// with graceful handling of missing keys, so a full templating engine
// would be dead weight here.
package template

import (
	"fmt"
	"strings"

	"github.com/craftwise-app/craftwise/internal/db"
)

// Template is the subject/body pair for one reminder kind. Both fields
// may contain {{key}} placeholders.
type Template struct {
	Kind    string
	Subject string
	Body    string
}

// Catalog maps reminder kinds to templates. Templates are seeded once
// at startup and never mutated.
type Catalog struct {
	templates map[string]Template
}

// NewCatalog returns a catalog seeded with the default template for
// every reminder kind.
func NewCatalog() *Catalog {
	c := &Catalog{templates: make(map[string]Template)}
	for _, t := range defaultTemplates {
		c.templates[t.Kind] = t
	}
	return c
}

// Get returns the template for a reminder kind.
func (c *Catalog) Get(kind string) (Template, error) {
	t, ok := c.templates[kind]
	if !ok {
		return Template{}, fmt.Errorf("no template for kind %q", kind)
	}
	return t, nil
}

// Render substitutes every {{key}} placeholder in s with its value
// from context. Placeholders without a matching key are left verbatim:
// optional fields such as the venue are simply absent for some
// workshops and must not fail the render.
func Render(s string, context map[string]string) string {
	var b strings.Builder
	b.Grow(len(s))

	for {
		open := strings.Index(s, "{{")
		if open < 0 {
			b.WriteString(s)
			return b.String()
		}

		close := strings.Index(s[open:], "}}")
		if close < 0 {
			b.WriteString(s)
			return b.String()
		}
		close += open

		key := s[open+2 : close]
		b.WriteString(s[:open])

		if value, ok := context[key]; ok {
			b.WriteString(value)
		} else {
			b.WriteString(s[open : close+2])
		}

		s = s[close+2:]
	}
}

var defaultTemplates = []Template{
	{
		Kind:    db.KindTMinus48h,
		Subject: "Your workshop {{workshopName}} is in two days",
		Body: "Hi {{attendeeName}},\n\n" +
			"A quick heads-up: {{workshopName}} starts on {{workshopDate}} at {{workshopTime}}.\n" +
			"Venue: {{location}}\n\n" +
			"See you there,\nThe craftwise team",
	},
	{
		Kind:    db.KindTMinus24h,
		Subject: "{{workshopName}} is tomorrow",
		Body: "Hi {{attendeeName}},\n\n" +
			"{{workshopName}} starts tomorrow, {{workshopDate}} at {{workshopTime}}.\n" +
			"Venue: {{location}}\n\n" +
			"See you there,\nThe craftwise team",
	},
	{
		Kind:    db.KindTMinus2h,
		Subject: "Starting soon: {{workshopName}}",
		Body: "Hi {{attendeeName}},\n\n" +
			"{{workshopName}} starts at {{workshopTime}} today. Time to head over!\n" +
			"Venue: {{location}}\n\n" +
			"The craftwise team",
	},
	{
		Kind:    db.KindTPlus2h,
		Subject: "How was {{workshopName}}?",
		Body: "Hi {{attendeeName}},\n\n" +
			"Thanks for joining {{workshopName}} today. We'd love to hear how it went -\n" +
			"just reply to this email with your thoughts.\n\n" +
			"The craftwise team",
	},
}
