package types

import "sort"

// Patch is the minimal set of field changes required to move one record
// toward its declared target state. Changed holds wire-formatted values.
type Patch struct {
	ID      int            `json:"id"`
	Changed map[string]any `json:"changed"`
}

// IsEmpty reports whether the patch would change anything.
func (p *Patch) IsEmpty() bool {
	return len(p.Changed) == 0
}

// Fields returns the changed field names in deterministic order.
func (p *Patch) Fields() []string {
	fields := make([]string, 0, len(p.Changed))
	for f := range p.Changed {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// Payload renders the patch as the flat update object the gateway expects:
// the record id plus only the fields that changed.
func (p *Patch) Payload() map[string]any {
	payload := make(map[string]any, len(p.Changed)+1)
	for k, v := range p.Changed {
		payload[k] = v
	}
	payload["id"] = p.ID
	return payload
}

// PatchResult is the per-record outcome of one apply call.
type PatchResult struct {
	ID      int    `json:"id"`
	Name    string `json:"name,omitempty"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}
