package patch

// Traits declares the logical type of known fields: which hold delimited
// lists, which hold key-value maps, which lists are order-sensitive, and
// which scalars are numeric. Unknown fields are treated as plain scalars.
type Traits struct {
	lists   map[string]bool
	maps    map[string]bool
	ordered map[string]bool
	numeric map[string]bool
}

// DefaultTraits covers the gateway channel schema both supported vendors
// share. The model list is order-sensitive: gateways route by first match.
func DefaultTraits() *Traits {
	return &Traits{
		lists: map[string]bool{
			"models": true,
			"group":  true,
			"tag":    true,
		},
		maps: map[string]bool{
			"model_mapping":       true,
			"status_code_mapping": true,
			"setting":             true,
			"headers":             true,
			"override_params":     true,
			"param_override":      true,
		},
		ordered: map[string]bool{
			"models": true,
		},
		numeric: map[string]bool{
			"priority": true,
			"weight":   true,
		},
	}
}

// IsList reports whether the field holds a delimited or native list.
func (t *Traits) IsList(field string) bool { return t.lists[field] }

// IsMap reports whether the field holds a key-value map.
func (t *Traits) IsMap(field string) bool { return t.maps[field] }

// IsOrderSensitive reports whether a list field's member order carries
// meaning and must survive mutation.
func (t *Traits) IsOrderSensitive(field string) bool { return t.ordered[field] }

// IsNumeric reports whether a scalar field should be coerced to an integer
// on the wire.
func (t *Traits) IsNumeric(field string) bool { return t.numeric[field] }
