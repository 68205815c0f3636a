// Package keywords implements the local answer path: an ordered table of
// categories, each with substring triggers and one canned response.
package keywords

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultDocument []byte

// ErrInvalidTable is returned when a table document violates the category invariants.
var ErrInvalidTable = errors.New("invalid keyword table")

// Category maps a set of trigger substrings to one response.
type Category struct {
	ID       string
	Triggers []string
	Response string
}

// Table is an immutable, ordered collection of categories.
type Table struct {
	categories      []Category
	defaultResponse string
	greeting        string
	cleared         string
}

type document struct {
	DefaultResponse string `yaml:"default_response"`
	Greeting        string `yaml:"greeting"`
	Cleared         string `yaml:"cleared"`
	Categories      []struct {
		ID       string   `yaml:"id"`
		Triggers []string `yaml:"triggers"`
		Response string   `yaml:"response"`
	} `yaml:"categories"`
}

// Default returns the built-in leisure and entertainment table.
func Default() *Table {
	t, err := Parse(defaultDocument)
	if err != nil {
		panic(fmt.Sprintf("keywords: embedded table: %v", err))
	}
	return t
}

// Load reads a table document from path.
func Load(path string) (*Table, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keyword table: %w", err)
	}
	return Parse(b)
}

// Parse decodes and validates a YAML table document.
// Triggers are lower-cased and de-duplicated, keeping their first position.
func Parse(data []byte) (*Table, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode keyword table: %w", err)
	}
	if strings.TrimSpace(doc.DefaultResponse) == "" {
		return nil, fmt.Errorf("%w: default_response is required", ErrInvalidTable)
	}

	t := &Table{
		defaultResponse: doc.DefaultResponse,
		greeting:        doc.Greeting,
		cleared:         doc.Cleared,
		categories:      make([]Category, 0, len(doc.Categories)),
	}

	seen := make(map[string]bool, len(doc.Categories))
	for i, c := range doc.Categories {
		if c.ID == "" {
			return nil, fmt.Errorf("%w: category %d has no id", ErrInvalidTable, i)
		}
		if seen[c.ID] {
			return nil, fmt.Errorf("%w: duplicate category %q", ErrInvalidTable, c.ID)
		}
		seen[c.ID] = true

		if strings.TrimSpace(c.Response) == "" {
			return nil, fmt.Errorf("%w: category %q has an empty response", ErrInvalidTable, c.ID)
		}
		triggers := normalizeTriggers(c.Triggers)
		if len(triggers) == 0 {
			return nil, fmt.Errorf("%w: category %q has no triggers", ErrInvalidTable, c.ID)
		}

		t.categories = append(t.categories, Category{
			ID:       c.ID,
			Triggers: triggers,
			Response: c.Response,
		})
	}

	return t, nil
}

func normalizeTriggers(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, tr := range raw {
		tr = strings.ToLower(tr)
		if strings.TrimSpace(tr) == "" || seen[tr] {
			continue
		}
		seen[tr] = true
		out = append(out, tr)
	}
	return out
}

// Match returns the response of the first category with a trigger contained
// in text. The boolean is false when no category matches.
func (t *Table) Match(text string) (string, bool) {
	if i := t.index(text); i >= 0 {
		return t.categories[i].Response, true
	}
	return "", false
}

// MatchCategory is like Match but returns the category id as well.
func (t *Table) MatchCategory(text string) (Category, bool) {
	if i := t.index(text); i >= 0 {
		return t.categories[i].clone(), true
	}
	return Category{}, false
}

// index returns the position of the first matching category or -1
func (t *Table) index(text string) int {
	lower := strings.ToLower(text)
	for i, c := range t.categories {
		for _, trigger := range c.Triggers {
			if strings.Contains(lower, trigger) {
				return i
			}
		}
	}
	return -1
}

// Reply returns the matching response or the default response.
func (t *Table) Reply(text string) string {
	if resp, ok := t.Match(text); ok {
		return resp
	}
	return t.defaultResponse
}

// DefaultResponse is the text used when no category matches.
func (t *Table) DefaultResponse() string { return t.defaultResponse }

// Greeting is the first assistant message of a new session.
func (t *Table) Greeting() string { return t.greeting }

// Cleared is the assistant message shown after a transcript is cleared.
func (t *Table) Cleared() string { return t.cleared }

// Categories returns copies of the categories in declaration order.
func (t *Table) Categories() []Category {
	out := make([]Category, len(t.categories))
	for i, c := range t.categories {
		out[i] = c.clone()
	}
	return out
}

func (c Category) clone() Category {
	triggers := make([]string, len(c.Triggers))
	copy(triggers, c.Triggers)
	c.Triggers = triggers
	return c
}
