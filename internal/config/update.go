package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/chanctl/chanctl/internal/errors"
	"github.com/chanctl/chanctl/internal/filter"
	"github.com/chanctl/chanctl/internal/patch"
)

// UpdateDocument is the filter/update document: which records to select
// and what to change on them. Unknown keys are rejected at load.
type UpdateDocument struct {
	Filters filter.Spec            `yaml:"filters"`
	Updates map[string]updateEntry `yaml:"updates"`
}

// updateEntry is one field's declared mutation. The enabled flag is
// mandatory so dormant entries are explicit, never accidental.
type updateEntry struct {
	Mode    string `yaml:"mode"`
	Value   any    `yaml:"value"`
	Enabled *bool  `yaml:"enabled"`
}

// LoadUpdateDocument reads, strictly decodes, and validates an update
// document. Rules are validated here so a typo fails before any fetch.
func LoadUpdateDocument(path string) (*UpdateDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.KindConfig, fmt.Sprintf("reading %s", path), err)
	}

	var doc UpdateDocument
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Wrap(errors.KindConfig, fmt.Sprintf("parsing %s", path), err)
	}

	if err := doc.Filters.Validate(); err != nil {
		return nil, labelWithFile(err, path)
	}
	for field, entry := range doc.Updates {
		if entry.Enabled == nil {
			return nil, errors.Newf(errors.KindConfig,
				"updates.%s must carry an explicit boolean enabled flag", field)
		}
	}
	rules := doc.Rules()
	for i := range rules {
		if err := rules[i].Validate(); err != nil {
			return nil, labelWithFile(err, path)
		}
	}
	return &doc, nil
}

// Rules converts the updates map to patch rules in field order. A missing
// mode defaults to overwrite.
func (d *UpdateDocument) Rules() []patch.Rule {
	fields := make([]string, 0, len(d.Updates))
	for f := range d.Updates {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	rules := make([]patch.Rule, 0, len(fields))
	for _, f := range fields {
		entry := d.Updates[f]
		mode := entry.Mode
		if mode == "" {
			mode = string(patch.ModeOverwrite)
		}
		enabled := entry.Enabled != nil && *entry.Enabled
		rules = append(rules, patch.Rule{
			Field:   f,
			Mode:    patch.Mode(mode),
			Value:   normalizeYAML(entry.Value),
			Enabled: enabled,
		})
	}
	return rules
}

// normalizeYAML rewrites yaml.v3 map[any]any values into the
// map[string]any shape the rest of the engine works with.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[fmt.Sprint(k)] = normalizeYAML(e)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = normalizeYAML(e)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = normalizeYAML(e)
		}
		return s
	default:
		return v
	}
}
