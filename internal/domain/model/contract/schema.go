// Package contract defines the machine-checkable response contract between
// an engine and the orchestrator: the operation schema the engine must
// satisfy, the operation batch wire format, and the payload extraction that
// locates the batch inside trailing engine output.
package contract

import (
	"fmt"
	"sort"
	"strings"
)

// ArgType is the expected JSON type of an operation argument
type ArgType string

const (
	TypeString ArgType = "string"
	TypeInt    ArgType = "int"
	TypeBool   ArgType = "bool"
	TypeList   ArgType = "list" // list of strings
)

// ArgSpec describes one argument of an operation
type ArgSpec struct {
	Name     string  `json:"name"`
	Type     ArgType `json:"type"`
	Required bool    `json:"required"`
}

// OperationDef describes one operation the engine may emit
type OperationDef struct {
	Name string    `json:"name"`
	Args []ArgSpec `json:"args"`
}

// Schema is the set of operations and argument shapes known at prompt-build
// time. A batch is valid only if every operation name is recognized and
// every required argument is present with the correct type.
type Schema struct {
	defs  []OperationDef
	index map[string]*OperationDef
}

// NewSchema creates a schema from operation definitions
func NewSchema(defs []OperationDef) *Schema {
	s := &Schema{defs: defs, index: make(map[string]*OperationDef, len(defs))}
	for i := range s.defs {
		s.index[s.defs[i].Name] = &s.defs[i]
	}
	return s
}

// DefaultSchema returns the operation catalog for repo-truth mutations
func DefaultSchema() *Schema {
	return NewSchema([]OperationDef{
		{Name: "create_task", Args: []ArgSpec{
			{Name: "title", Type: TypeString, Required: true},
			{Name: "phase", Type: TypeString, Required: true},
			{Name: "description", Type: TypeString},
			{Name: "workflow", Type: TypeString},
		}},
		{Name: "update_task", Args: []ArgSpec{
			{Name: "id", Type: TypeString, Required: true},
			{Name: "title", Type: TypeString},
			{Name: "description", Type: TypeString},
			{Name: "status", Type: TypeString},
		}},
		{Name: "complete_task", Args: []ArgSpec{
			{Name: "id", Type: TypeString, Required: true},
		}},
		{Name: "create_issue", Args: []ArgSpec{
			{Name: "title", Type: TypeString, Required: true},
			{Name: "severity", Type: TypeString},
			{Name: "task", Type: TypeString},
		}},
		{Name: "update_issue", Args: []ArgSpec{
			{Name: "id", Type: TypeString, Required: true},
			{Name: "status", Type: TypeString},
			{Name: "severity", Type: TypeString},
		}},
		{Name: "add_note", Args: []ArgSpec{
			{Name: "target", Type: TypeString, Required: true},
			{Name: "text", Type: TypeString, Required: true},
		}},
	})
}

// Operations returns the operation definitions in declaration order
func (s *Schema) Operations() []OperationDef { return s.defs }

// Lookup returns the definition for an operation name
func (s *Schema) Lookup(name string) (*OperationDef, bool) {
	def, ok := s.index[name]
	return def, ok
}

// Issue is one schema validation finding, stated as expected vs received
type Issue struct {
	OpIndex  int    // index of the offending operation, -1 for batch-level issues
	Field    string // argument or field name, "" for operation-level issues
	Expected string
	Received string
}

func (i Issue) String() string {
	loc := "batch"
	if i.OpIndex >= 0 {
		loc = fmt.Sprintf("operations[%d]", i.OpIndex)
		if i.Field != "" {
			loc += "." + i.Field
		}
	}
	return fmt.Sprintf("%s: expected %s, received %s", loc, i.Expected, i.Received)
}

// Validate checks a batch against the schema and returns all findings.
// An empty result means the batch is valid.
func (s *Schema) Validate(b *OperationBatch) []Issue {
	var issues []Issue

	if b.Operations == nil {
		issues = append(issues, Issue{
			OpIndex:  -1,
			Expected: `required field "operations"`,
			Received: "missing",
		})
	}
	if b.Summary == nil {
		issues = append(issues, Issue{
			OpIndex:  -1,
			Expected: `required field "summary"`,
			Received: "missing",
		})
	}
	if b.Operations == nil {
		return issues
	}

	for i, op := range *b.Operations {
		def, ok := s.Lookup(op.Name)
		if !ok {
			issues = append(issues, Issue{
				OpIndex:  i,
				Expected: "one of: " + strings.Join(s.names(), ", "),
				Received: fmt.Sprintf("unknown operation %q", op.Name),
			})
			continue
		}

		known := make(map[string]ArgSpec, len(def.Args))
		for _, arg := range def.Args {
			known[arg.Name] = arg
		}

		for _, arg := range def.Args {
			val, present := op.Args[arg.Name]
			if !present {
				if arg.Required {
					issues = append(issues, Issue{
						OpIndex:  i,
						Field:    arg.Name,
						Expected: fmt.Sprintf("required %s argument", arg.Type),
						Received: "missing",
					})
				}
				continue
			}
			if !typeMatches(arg.Type, val) {
				issues = append(issues, Issue{
					OpIndex:  i,
					Field:    arg.Name,
					Expected: string(arg.Type),
					Received: describeValue(val),
				})
			}
		}

		// Unknown arguments are rejected: no silent acceptance of fields
		// the applier would ignore
		extras := make([]string, 0)
		for name := range op.Args {
			if _, ok := known[name]; !ok {
				extras = append(extras, name)
			}
		}
		sort.Strings(extras)
		for _, name := range extras {
			issues = append(issues, Issue{
				OpIndex:  i,
				Field:    name,
				Expected: "no such argument",
				Received: describeValue(op.Args[name]),
			})
		}
	}

	return issues
}

func (s *Schema) names() []string {
	names := make([]string, len(s.defs))
	for i, def := range s.defs {
		names[i] = def.Name
	}
	return names
}

// typeMatches checks a decoded JSON value against an ArgType
func typeMatches(t ArgType, v interface{}) bool {
	switch t {
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeInt:
		f, ok := v.(float64)
		return ok && f == float64(int64(f))
	case TypeBool:
		_, ok := v.(bool)
		return ok
	case TypeList:
		list, ok := v.([]interface{})
		if !ok {
			return false
		}
		for _, item := range list {
			if _, ok := item.(string); !ok {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func describeValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("string %q", val)
	case float64:
		return fmt.Sprintf("number %v", val)
	case bool:
		return fmt.Sprintf("bool %v", val)
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
