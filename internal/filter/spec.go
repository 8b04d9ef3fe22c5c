package filter

import (
	"fmt"

	"github.com/chanctl/chanctl/internal/errors"
)

// MatchMode controls how configured inclusion categories combine.
type MatchMode string

const (
	// MatchAny matches when at least one configured category matches.
	MatchAny MatchMode = "any"
	// MatchAll matches only when every configured category matches.
	MatchAll MatchMode = "all"
	// MatchExact matches on whole-string name equality only.
	MatchExact MatchMode = "exact"
	// MatchNone negates a single configured category.
	MatchNone MatchMode = "none"
)

// Spec is a declarative record selector. ID criteria short-circuit
// everything else; exclusions veto before inclusions are consulted.
type Spec struct {
	MatchMode MatchMode `yaml:"match_mode" json:"match_mode"`

	IDFilters []int   `yaml:"id_filters" json:"id_filters"`
	ID        *int    `yaml:"id" json:"id"`
	KeyFilter *string `yaml:"key_filter" json:"key_filter"`

	NameFilters  []string `yaml:"name_filters" json:"name_filters"`
	GroupFilters []string `yaml:"group_filters" json:"group_filters"`
	ModelFilters []string `yaml:"model_filters" json:"model_filters"`
	TagFilters   []string `yaml:"tag_filters" json:"tag_filters"`
	TypeFilters  []int    `yaml:"type_filters" json:"type_filters"`

	ExcludeNameFilters      []string `yaml:"exclude_name_filters" json:"exclude_name_filters"`
	ExcludeGroupFilters     []string `yaml:"exclude_group_filters" json:"exclude_group_filters"`
	ExcludeModelFilters     []string `yaml:"exclude_model_filters" json:"exclude_model_filters"`
	ExcludeModelMappingKeys []string `yaml:"exclude_model_mapping_keys" json:"exclude_model_mapping_keys"`
	ExcludeParamKeys        []string `yaml:"exclude_override_params_keys" json:"exclude_override_params_keys"`
}

// configuredInclusions counts how many inclusion categories carry entries.
func (s *Spec) configuredInclusions() int {
	n := 0
	for _, present := range []bool{
		len(s.NameFilters) > 0,
		len(s.GroupFilters) > 0,
		len(s.ModelFilters) > 0,
		len(s.TagFilters) > 0,
		len(s.TypeFilters) > 0,
	} {
		if present {
			n++
		}
	}
	return n
}

// Validate rejects malformed specs before any fetch happens. A bad
// match_mode and the unsupported none-mode multi-category combination are
// both configuration errors, never runtime guesses.
func (s *Spec) Validate() error {
	mode := s.MatchMode
	if mode == "" {
		mode = MatchAny
	}
	switch mode {
	case MatchAny, MatchAll, MatchExact, MatchNone:
	default:
		return errors.Newf(errors.KindConfig,
			"unknown match_mode %q (expected any, all, exact or none)", s.MatchMode)
	}
	if mode == MatchNone && s.configuredInclusions() > 1 {
		return errors.New(errors.KindConfig,
			"match_mode none cannot combine multiple filter categories; configure exactly one")
	}
	return nil
}

// Mode returns the effective match mode, defaulting to any.
func (s *Spec) Mode() MatchMode {
	if s.MatchMode == "" {
		return MatchAny
	}
	return s.MatchMode
}

// IsEmpty reports whether the spec selects everything.
func (s *Spec) IsEmpty() bool {
	return len(s.IDFilters) == 0 && s.ID == nil && s.KeyFilter == nil &&
		s.configuredInclusions() == 0 &&
		len(s.ExcludeNameFilters) == 0 && len(s.ExcludeGroupFilters) == 0 &&
		len(s.ExcludeModelFilters) == 0 && len(s.ExcludeModelMappingKeys) == 0 &&
		len(s.ExcludeParamKeys) == 0
}

// String summarizes the spec for operator output.
func (s *Spec) String() string {
	if len(s.IDFilters) > 0 {
		return fmt.Sprintf("ids %v", s.IDFilters)
	}
	if s.ID != nil {
		return fmt.Sprintf("id %d", *s.ID)
	}
	if s.KeyFilter != nil {
		return "key filter"
	}
	if s.IsEmpty() {
		return "all records"
	}
	return fmt.Sprintf("%s-mode filters", s.Mode())
}
