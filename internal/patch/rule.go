package patch

import (
	"fmt"

	"github.com/chanctl/chanctl/internal/errors"
)

// Mode is the mutation strategy an update rule applies to its field.
type Mode string

const (
	// ModeOverwrite replaces the field value unconditionally.
	ModeOverwrite Mode = "overwrite"
	// ModeRegexReplace substitutes a pattern within a scalar string field.
	ModeRegexReplace Mode = "regex_replace"
	// ModeAppend adds unseen members to a list field.
	ModeAppend Mode = "append"
	// ModeRemove drops members from a list field.
	ModeRemove Mode = "remove"
	// ModeMerge unions a map field, rule keys winning on conflict.
	ModeMerge Mode = "merge"
	// ModeDeleteKeys removes named keys from a map field.
	ModeDeleteKeys Mode = "delete_keys"
)

// Rule declares one field mutation. Disabled rules are carried but never
// applied, so a document can keep dormant entries.
type Rule struct {
	Field   string `yaml:"field" json:"field"`
	Mode    Mode   `yaml:"mode" json:"mode"`
	Value   any    `yaml:"value" json:"value"`
	Enabled bool   `yaml:"enabled" json:"enabled"`
}

// Validate rejects rules a calculator could not apply.
func (r *Rule) Validate() error {
	if r.Field == "" {
		return errors.New(errors.KindConfig, "update rule has no field name")
	}
	switch r.Mode {
	case ModeOverwrite, ModeRegexReplace, ModeAppend, ModeRemove, ModeMerge, ModeDeleteKeys:
	default:
		return errors.Newf(errors.KindConfig, "field %s: unknown update mode %q", r.Field, r.Mode)
	}
	if r.Mode == ModeRegexReplace {
		if _, err := r.RegexValue(); err != nil {
			return err
		}
	}
	return nil
}

// RegexValue extracts the {pattern, replacement} pair a regex_replace rule
// carries. The pattern itself is compiled later, per record.
type RegexValue struct {
	Pattern     string
	Replacement string
}

// RegexValue parses the rule value as a regex substitution pair.
func (r *Rule) RegexValue() (*RegexValue, error) {
	m, ok := r.Value.(map[string]any)
	if !ok {
		return nil, errors.Newf(errors.KindConfig,
			"field %s: regex_replace value must be a {pattern, replacement} map, got %T",
			r.Field, r.Value)
	}
	pattern, ok := m["pattern"].(string)
	if !ok || pattern == "" {
		return nil, errors.Newf(errors.KindConfig,
			"field %s: regex_replace value has no pattern", r.Field)
	}
	replacement := ""
	if rep, present := m["replacement"]; present && rep != nil {
		replacement = fmt.Sprint(rep)
	}
	return &RegexValue{Pattern: pattern, Replacement: replacement}, nil
}

// String renders the rule for operator-facing summaries.
func (r *Rule) String() string {
	return fmt.Sprintf("%s %s %v", r.Field, r.Mode, r.Value)
}
