package contract

import (
	"encoding/json"
	"fmt"
)

// Operation is one named mutation with a typed argument map.
// On the wire an operation is a flat object: {"name":"create_task",
// "title":"...","phase":"..."} — every key except "name" is an argument.
type Operation struct {
	Name string
	Args map[string]interface{}
}

// UnmarshalJSON decodes the flat wire form
func (o *Operation) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	name, ok := raw["name"].(string)
	if !ok {
		return fmt.Errorf("operation missing string field %q", "name")
	}
	delete(raw, "name")

	o.Name = name
	o.Args = raw
	return nil
}

// MarshalJSON encodes the flat wire form
func (o Operation) MarshalJSON() ([]byte, error) {
	raw := make(map[string]interface{}, len(o.Args)+1)
	for k, v := range o.Args {
		raw[k] = v
	}
	raw["name"] = o.Name
	return json.Marshal(raw)
}

// StringArg returns a string argument, or "" when absent
func (o Operation) StringArg(name string) string {
	s, _ := o.Args[name].(string)
	return s
}

// HasArg reports whether the argument is present
func (o Operation) HasArg(name string) bool {
	_, ok := o.Args[name]
	return ok
}

// OperationBatch is the engine's final structured answer: an ordered list of
// operations plus a human-readable summary. Pointer fields let the schema
// validator distinguish a missing field from an empty one.
type OperationBatch struct {
	Operations *[]Operation `json:"operations"`
	Summary    *string      `json:"summary"`
}

// Ops returns the operation list, or nil when the field was absent
func (b *OperationBatch) Ops() []Operation {
	if b.Operations == nil {
		return nil
	}
	return *b.Operations
}

// SummaryText returns the summary, or "" when the field was absent
func (b *OperationBatch) SummaryText() string {
	if b.Summary == nil {
		return ""
	}
	return *b.Summary
}

// ParseBatch parses a payload into an OperationBatch.
// A parse failure here is a syntax failure; field presence and types are
// the schema validator's concern.
func ParseBatch(payload string) (*OperationBatch, error) {
	var batch OperationBatch
	if err := json.Unmarshal([]byte(payload), &batch); err != nil {
		return nil, fmt.Errorf("parse operation batch: %w", err)
	}
	return &batch, nil
}
