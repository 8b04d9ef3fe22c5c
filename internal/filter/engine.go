// Package filter evaluates declarative record selectors. One Engine
// evaluates one Spec against any number of records; evaluation is pure
// apart from warning logs.
package filter

import (
	"fmt"
	"strings"

	"github.com/chanctl/chanctl/internal/logger"
	"github.com/chanctl/chanctl/internal/normalize"
	"github.com/chanctl/chanctl/pkg/types"
)

// Field names the engine treats specially. The secret field has two wire
// spellings across gateway versions, as does the parameter-override map.
const (
	keyField         = "key"
	keyFieldFallback = "apikey"

	modelMappingField  = "model_mapping"
	paramField         = "override_params"
	paramFieldFallback = "param_override"
)

// Engine evaluates one Spec against records.
type Engine struct {
	spec *Spec
	log  logger.Logger
}

// NewEngine builds an engine for a validated spec.
func NewEngine(spec *Spec, log logger.Logger) *Engine {
	return &Engine{spec: spec, log: log}
}

// Matches reports whether the record is selected by the spec.
// Evaluation order: id set, single id, key, exclusions, inclusions.
// The first applicable criterion decides; id criteria ignore everything
// else entirely.
func (e *Engine) Matches(rec *types.Record) bool {
	s := e.spec

	if len(s.IDFilters) > 0 {
		for _, id := range s.IDFilters {
			if rec.ID == id {
				return true
			}
		}
		return false
	}

	if s.ID != nil {
		return rec.ID == *s.ID
	}

	if s.KeyFilter != nil {
		return e.matchKey(rec, *s.KeyFilter)
	}

	if e.excluded(rec) {
		return false
	}

	return e.included(rec)
}

// Select returns the subset of records the spec matches, in input order.
func (e *Engine) Select(records []types.Record) []types.Record {
	matched := make([]types.Record, 0, len(records))
	for i := range records {
		if e.Matches(&records[i]) {
			matched = append(matched, records[i])
		}
	}
	return matched
}

func (e *Engine) matchKey(rec *types.Record, want string) bool {
	value := rec.Get(keyField)
	if value == nil {
		value = rec.Get(keyFieldFallback)
	}
	if value == nil {
		return false
	}
	return fmt.Sprint(value) == want
}

func (e *Engine) excluded(rec *types.Record) bool {
	s := e.spec

	for _, needle := range s.ExcludeNameFilters {
		if needle != "" && strings.Contains(rec.Name, needle) {
			return true
		}
	}

	if len(s.ExcludeGroupFilters) > 0 {
		if normalize.ToSet(rec.Get("group")).Intersects(normalize.NewSet(s.ExcludeGroupFilters...)) {
			return true
		}
	}
	if len(s.ExcludeModelFilters) > 0 {
		if normalize.ToSet(rec.Get("models")).Intersects(normalize.NewSet(s.ExcludeModelFilters...)) {
			return true
		}
	}

	if len(s.ExcludeModelMappingKeys) > 0 {
		mapping := normalize.ToMap(rec.Get(modelMappingField), modelMappingField, e.log)
		for _, k := range s.ExcludeModelMappingKeys {
			if _, present := mapping[k]; present {
				return true
			}
		}
	}
	if len(s.ExcludeParamKeys) > 0 {
		value := rec.Get(paramField)
		if value == nil {
			value = rec.Get(paramFieldFallback)
		}
		params := normalize.ToMap(value, paramField, e.log)
		for _, k := range s.ExcludeParamKeys {
			if _, present := params[k]; present {
				return true
			}
		}
	}

	return false
}

func (e *Engine) included(rec *types.Record) bool {
	s := e.spec

	if s.configuredInclusions() == 0 {
		return true
	}

	switch s.Mode() {
	case MatchExact:
		for _, name := range s.NameFilters {
			if rec.Name == name {
				return true
			}
		}
		return false

	case MatchNone:
		return !e.anyCategoryMatches(rec)

	case MatchAll:
		return e.allCategoriesMatch(rec)

	default:
		return e.anyCategoryMatches(rec)
	}
}

type category struct {
	configured bool
	matches    func() bool
}

func (e *Engine) categories(rec *types.Record) []category {
	s := e.spec
	return []category{
		{len(s.NameFilters) > 0, func() bool {
			for _, needle := range s.NameFilters {
				if needle != "" && strings.Contains(rec.Name, needle) {
					return true
				}
			}
			return false
		}},
		{len(s.GroupFilters) > 0, func() bool {
			return normalize.ToSet(rec.Get("group")).Intersects(normalize.NewSet(s.GroupFilters...))
		}},
		{len(s.ModelFilters) > 0, func() bool {
			return normalize.ToSet(rec.Get("models")).Intersects(normalize.NewSet(s.ModelFilters...))
		}},
		{len(s.TagFilters) > 0, func() bool {
			return normalize.ToSet(rec.Get("tag")).Intersects(normalize.NewSet(s.TagFilters...))
		}},
		{len(s.TypeFilters) > 0, func() bool {
			recType, ok := types.CoerceInt(rec.Get("type"))
			if !ok {
				return false
			}
			for _, t := range s.TypeFilters {
				if recType == t {
					return true
				}
			}
			return false
		}},
	}
}

func (e *Engine) anyCategoryMatches(rec *types.Record) bool {
	for _, c := range e.categories(rec) {
		if c.configured && c.matches() {
			return true
		}
	}
	return false
}

func (e *Engine) allCategoriesMatch(rec *types.Record) bool {
	for _, c := range e.categories(rec) {
		if c.configured && !c.matches() {
			return false
		}
	}
	return true
}
