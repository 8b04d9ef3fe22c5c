// Package patch computes minimal per-record field patches from declarative
// update rules. A patch carries only fields whose canonical value actually
// changes, so re-running the same rules against an already-patched record
// yields nothing.
package patch

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"

	"github.com/chanctl/chanctl/internal/errors"
	"github.com/chanctl/chanctl/internal/logger"
	"github.com/chanctl/chanctl/internal/normalize"
	"github.com/chanctl/chanctl/pkg/types"
)

// Formatter renders canonical field values into one vendor's wire
// representation. Each record source supplies its own.
type Formatter interface {
	FormatListField(field string, members []string) any
	FormatMapField(field string, value map[string]any) any
	FormatScalarField(field string, value any) any
}

// Calculator computes patches. One field failing never fails the record:
// the bad field is logged and skipped, the rest still diff.
type Calculator struct {
	traits    *Traits
	formatter Formatter
	log       logger.Logger
}

// NewCalculator builds a calculator using the given wire formatter.
func NewCalculator(formatter Formatter, traits *Traits, log logger.Logger) *Calculator {
	if traits == nil {
		traits = DefaultTraits()
	}
	return &Calculator{traits: traits, formatter: formatter, log: log}
}

// Compute diffs the record against every enabled rule and returns the
// minimal patch. An empty patch means the record already matches its
// declared state.
func (c *Calculator) Compute(rec *types.Record, rules []Rule) *types.Patch {
	p := &types.Patch{ID: rec.ID, Changed: make(map[string]any)}

	for i := range rules {
		rule := &rules[i]
		if !rule.Enabled {
			continue
		}

		orig := rec.Get(rule.Field)
		raw, apply, err := c.newValue(orig, rule)
		if err != nil {
			c.log.WithFields(map[string]interface{}{
				"record": rec.String(),
				"field":  rule.Field,
			}).Warn(fmt.Sprintf("skipping field: %v", err))
			continue
		}
		if !apply {
			continue
		}

		formattedNew := c.format(rule.Field, raw)
		formattedOrig := c.format(rule.Field, orig)
		if c.equal(rule.Field, formattedOrig, formattedNew) {
			continue
		}
		p.Changed[rule.Field] = formattedNew
	}

	return p
}

// newValue computes the candidate raw value for one rule. The second
// return is false when the rule is a declared no-op for this record.
func (c *Calculator) newValue(orig any, rule *Rule) (any, bool, error) {
	switch rule.Mode {
	case ModeOverwrite:
		return rule.Value, true, nil

	case ModeRegexReplace:
		rv, err := rule.RegexValue()
		if err != nil {
			return nil, false, err
		}
		re, err := regexp.Compile(rv.Pattern)
		if err != nil {
			return nil, false, errors.Wrap(errors.KindField,
				fmt.Sprintf("invalid pattern %q", rv.Pattern), err)
		}
		s, ok := orig.(string)
		if !ok {
			if orig == nil {
				return nil, false, nil
			}
			return nil, false, errors.Newf(errors.KindField,
				"regex_replace needs a string value, field holds %T", orig)
		}
		return re.ReplaceAllString(s, rv.Replacement), true, nil

	case ModeAppend:
		members := normalize.ToList(orig)
		seen := normalize.NewSet(members...)
		for _, m := range normalize.ToList(rule.Value) {
			if !seen.Contains(m) {
				members = append(members, m)
				seen[m] = struct{}{}
			}
		}
		return members, true, nil

	case ModeRemove:
		drop := normalize.ToSet(rule.Value)
		kept := make([]string, 0)
		for _, m := range normalize.ToList(orig) {
			if !drop.Contains(m) {
				kept = append(kept, m)
			}
		}
		return kept, true, nil

	case ModeMerge:
		overlay := normalize.ToMap(rule.Value, rule.Field, c.log)
		merged := make(map[string]any)
		for k, v := range normalize.ToMap(orig, rule.Field, c.log) {
			merged[k] = v
		}
		for k, v := range overlay {
			merged[k] = v
		}
		return merged, true, nil

	case ModeDeleteKeys:
		if rule.Value == nil {
			return nil, false, nil
		}
		drop := normalize.ToSet(rule.Value)
		kept := make(map[string]any)
		for k, v := range normalize.ToMap(orig, rule.Field, c.log) {
			if !drop.Contains(k) {
				kept[k] = v
			}
		}
		return kept, true, nil

	default:
		return nil, false, errors.Newf(errors.KindConfig, "unknown update mode %q", rule.Mode)
	}
}

// format runs the type-specific wire formatter, then the scalar pass.
func (c *Calculator) format(field string, value any) any {
	switch {
	case c.traits.IsList(field):
		members := normalize.ToList(value)
		if !c.traits.IsOrderSensitive(field) {
			sort.Strings(members)
		}
		value = c.formatter.FormatListField(field, members)
	case c.traits.IsMap(field):
		value = c.formatter.FormatMapField(field, normalize.ToMap(value, field, c.log))
	}
	return c.formatter.FormatScalarField(field, value)
}

// equal compares two formatted values. Lists compare order-insensitively
// unless the field is order-sensitive; maps compare structurally; empty
// representations of any shape compare equal to each other.
func (c *Calculator) equal(field string, a, b any) bool {
	if isEmpty(a) && isEmpty(b) {
		return true
	}

	switch {
	case c.traits.IsList(field):
		if c.traits.IsOrderSensitive(field) {
			la, lb := normalize.ToList(a), normalize.ToList(b)
			if len(la) != len(lb) {
				return false
			}
			for i := range la {
				if la[i] != lb[i] {
					return false
				}
			}
			return true
		}
		return normalize.ToSet(a).Equal(normalize.ToSet(b))

	case c.traits.IsMap(field):
		return reflect.DeepEqual(
			normalize.ToMap(a, field, c.log),
			normalize.ToMap(b, field, c.log))

	default:
		return fmt.Sprint(a) == fmt.Sprint(b)
	}
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []string:
		return len(t) == 0
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	default:
		return false
	}
}
