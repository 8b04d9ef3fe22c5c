// Package normalize converts the mixed wire representations of record
// fields (absent, scalar, comma-delimited string, native list, native or
// serialized map) into canonical sets and maps. Every component that
// compares or mutates list/map fields goes through this package; nothing
// else special-cases representation.
package normalize

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/chanctl/chanctl/internal/logger"
)

// Set is an unordered collection of trimmed, non-empty strings.
type Set map[string]struct{}

// NewSet builds a Set from the given members, trimming and dropping empties.
func NewSet(members ...string) Set {
	s := make(Set, len(members))
	for _, m := range members {
		if t := strings.TrimSpace(m); t != "" {
			s[t] = struct{}{}
		}
	}
	return s
}

// Contains reports set membership.
func (s Set) Contains(member string) bool {
	_, ok := s[member]
	return ok
}

// Union returns a new set with members of both sets.
func (s Set) Union(other Set) Set {
	out := make(Set, len(s)+len(other))
	for m := range s {
		out[m] = struct{}{}
	}
	for m := range other {
		out[m] = struct{}{}
	}
	return out
}

// Difference returns members of s absent from other.
func (s Set) Difference(other Set) Set {
	out := make(Set)
	for m := range s {
		if !other.Contains(m) {
			out[m] = struct{}{}
		}
	}
	return out
}

// Intersects reports whether the sets share at least one member.
func (s Set) Intersects(other Set) bool {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	for m := range small {
		if large.Contains(m) {
			return true
		}
	}
	return false
}

// Equal reports whether both sets carry exactly the same members.
func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for m := range s {
		if !other.Contains(m) {
			return false
		}
	}
	return true
}

// Sorted returns the members in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for m := range s {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// ToSet converts any wire representation of a list field to a Set.
// Nil yields the empty set. Native lists keep their trimmed non-empty
// members; strings split on comma; anything else is stringified first.
func ToSet(value any) Set {
	return NewSet(ToList(value)...)
}

// ToList converts any wire representation of a list field to an ordered,
// de-duplicated slice of trimmed non-empty strings. Order follows first
// appearance, which matters for order-sensitive fields.
func ToList(value any) []string {
	var raw []string
	switch t := value.(type) {
	case nil:
		return nil
	case []string:
		raw = t
	case []any:
		raw = make([]string, 0, len(t))
		for _, e := range t {
			raw = append(raw, fmt.Sprint(e))
		}
	case string:
		raw = strings.Split(t, ",")
	default:
		raw = strings.Split(fmt.Sprint(t), ",")
	}

	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, m := range raw {
		t := strings.TrimSpace(m)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// ToMap converts any wire representation of a map field to a map. Nil and
// empty strings yield the empty map. Strings are parsed as JSON objects;
// a parse failure or a non-map result logs a warning and yields the empty
// map rather than failing the field.
func ToMap(value any, field string, log logger.Logger) map[string]any {
	switch t := value.(type) {
	case nil:
		return map[string]any{}
	case map[string]any:
		return t
	case string:
		if strings.TrimSpace(t) == "" {
			return map[string]any{}
		}
		var parsed map[string]any
		if err := json.Unmarshal([]byte(t), &parsed); err != nil {
			if log != nil {
				log.WithFields(map[string]interface{}{
					"field": field,
					"value": t,
				}).Warn("field value is not a parsable map, treating as empty")
			}
			return map[string]any{}
		}
		return parsed
	default:
		if log != nil {
			log.WithFields(map[string]interface{}{
				"field": field,
				"type":  fmt.Sprintf("%T", value),
			}).Warn("field value is not a map, treating as empty")
		}
		return map[string]any{}
	}
}
