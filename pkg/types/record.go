package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Record is a transient copy of one remote channel record. The gateway owns
// the record; the engine only reads it, computes patches against it, and
// snapshots it before mutation.
type Record struct {
	ID     int
	Name   string
	Fields map[string]any
}

// Get returns the value of a named field. The id and name fields are
// addressable by name like any other field.
func (r *Record) Get(field string) any {
	switch field {
	case "id":
		return r.ID
	case "name":
		return r.Name
	}
	if r.Fields == nil {
		return nil
	}
	return r.Fields[field]
}

// Set stores a field value on the record's transient copy.
func (r *Record) Set(field string, value any) {
	switch field {
	case "id":
		if id, ok := CoerceInt(value); ok {
			r.ID = id
		}
		return
	case "name":
		r.Name = fmt.Sprint(value)
		return
	}
	if r.Fields == nil {
		r.Fields = make(map[string]any)
	}
	r.Fields[field] = value
}

// Has reports whether the record carries the named field at all, which is
// distinct from carrying it with a nil value.
func (r *Record) Has(field string) bool {
	switch field {
	case "id", "name":
		return true
	}
	_, ok := r.Fields[field]
	return ok
}

// FieldNames returns the names of all open fields, excluding id and name.
func (r *Record) FieldNames() []string {
	names := make([]string, 0, len(r.Fields))
	for name := range r.Fields {
		names = append(names, name)
	}
	return names
}

// Clone creates a deep copy of the record. Nested maps and slices inside
// field values are copied one level at a time via JSON-compatible types.
func (r *Record) Clone() *Record {
	clone := &Record{ID: r.ID, Name: r.Name}
	if r.Fields != nil {
		clone.Fields = make(map[string]any, len(r.Fields))
		for k, v := range r.Fields {
			clone.Fields[k] = cloneValue(v)
		}
	}
	return clone
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = cloneValue(e)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = cloneValue(e)
		}
		return s
	case []string:
		s := make([]string, len(t))
		copy(s, t)
		return s
	default:
		return v
	}
}

// String returns a short identifier for logs and operator output.
func (r *Record) String() string {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Sprintf("ID:%d", r.ID)
	}
	return fmt.Sprintf("%s (ID: %d)", r.Name, r.ID)
}

// MarshalJSON renders the record as the flat object the gateway APIs use.
func (r Record) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(r.Fields)+2)
	for k, v := range r.Fields {
		m[k] = v
	}
	m["id"] = r.ID
	m["name"] = r.Name
	return json.Marshal(m)
}

// UnmarshalJSON parses a flat gateway object into a Record. A missing or
// non-numeric id is an error: every addressable record must carry one.
func (r *Record) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	rec, err := RecordFromMap(m)
	if err != nil {
		return err
	}
	*r = *rec
	return nil
}

// RecordFromMap builds a Record from a decoded wire object.
func RecordFromMap(m map[string]any) (*Record, error) {
	id, ok := CoerceInt(m["id"])
	if !ok {
		return nil, fmt.Errorf("record has no usable integer id (got %v)", m["id"])
	}
	rec := &Record{ID: id, Fields: make(map[string]any, len(m))}
	for k, v := range m {
		switch k {
		case "id":
		case "name":
			rec.Name = fmt.Sprint(v)
		default:
			rec.Fields[k] = v
		}
	}
	return rec, nil
}

// CoerceInt converts JSON and YAML scalar representations to an int.
func CoerceInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
