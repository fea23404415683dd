// Package validate is the contract gate between engine output and the
// applier. Nothing reaches the record store unless the finalization text
// yields exactly one payload that parses and satisfies the schema.
package validate

import (
	"github.com/sotakimura/conductor/internal/domain/model/contract"
)

// Verdict is the gate's decision on one finalization attempt
type Verdict string

const (
	VerdictValid         Verdict = "valid"
	VerdictInvalidSyntax Verdict = "invalid-syntax"
	VerdictInvalidSchema Verdict = "invalid-schema"
)

// Result is one gate decision.
// Batch is populated only for VerdictValid; Diagnostics explain the
// failure in expected-vs-received terms suitable for feeding back to the
// engine on a retry.
type Result struct {
	Verdict     Verdict
	Payload     string
	Batch       *contract.OperationBatch
	Diagnostics []string
}

// OK reports whether the attempt passed the gate
func (r *Result) OK() bool { return r.Verdict == VerdictValid }

// Gate validates finalization output against one schema
type Gate struct {
	schema *contract.Schema
}

// NewGate creates a gate for the given schema
func NewGate(schema *contract.Schema) *Gate {
	return &Gate{schema: schema}
}

// Check runs the full pipeline on one finalization text: locate the
// payload, parse it, validate it. The first failing stage decides the
// verdict; a failed attempt changes nothing downstream.
func (g *Gate) Check(text string) *Result {
	payload, err := contract.ExtractPayload(text)
	if err != nil {
		// Location failures are syntax-level: the engine did not produce
		// one well-formed payload
		return &Result{
			Verdict:     VerdictInvalidSyntax,
			Diagnostics: []string{err.Error()},
		}
	}

	batch, err := contract.ParseBatch(payload)
	if err != nil {
		return &Result{
			Verdict:     VerdictInvalidSyntax,
			Payload:     payload,
			Diagnostics: []string{"payload is not valid JSON: " + err.Error()},
		}
	}

	if issues := g.schema.Validate(batch); len(issues) > 0 {
		diags := make([]string, len(issues))
		for i, issue := range issues {
			diags[i] = issue.String()
		}
		return &Result{
			Verdict:     VerdictInvalidSchema,
			Payload:     payload,
			Diagnostics: diags,
		}
	}

	return &Result{Verdict: VerdictValid, Payload: payload, Batch: batch}
}
