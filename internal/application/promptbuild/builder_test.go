package promptbuild

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sotakimura/conductor/internal/application/contextres"
	"github.com/sotakimura/conductor/internal/domain/model/contract"
	"github.com/sotakimura/conductor/internal/domain/model/record"
)

func taskContext() *contextres.Context {
	now := time.Date(2025, 11, 2, 9, 0, 0, 0, time.UTC)
	return &contextres.Context{
		TargetRef: "T-001",
		Target: &record.Record{
			ID: "T-001", Kind: record.KindTask, Title: "Fix tokenizer",
			Status: record.StatusOpen, Description: "Tokenizer drops unicode escapes",
			Notes:     []record.Note{{TS: now, Text: "repro added"}},
			CreatedAt: now, UpdatedAt: now,
		},
		Ancestors: []*record.Record{
			{ID: "PH-01", Kind: record.KindPhase, Title: "Parser rework", Status: record.StatusActive},
		},
		Workflow: &record.Workflow{
			ID: "WF-01", Title: "Standard flow",
			Steps: []record.WorkflowStep{{Name: "design", Guidance: "sketch first"}},
		},
	}
}

func TestBuildInitialIsDeterministic(t *testing.T) {
	b := NewBuilder(contract.DefaultSchema())
	ctx := taskContext()

	first := b.BuildInitial(ctx, nil, "let's plan the fix")
	second := b.BuildInitial(ctx, nil, "let's plan the fix")
	assert.Equal(t, first, second)
}

func TestBuildInitialCarriesContext(t *testing.T) {
	b := NewBuilder(contract.DefaultSchema())
	prompt := b.BuildInitial(taskContext(), nil, "let's plan the fix")

	assert.Contains(t, prompt, `T-001 "Fix tokenizer"`)
	assert.Contains(t, prompt, "Tokenizer drops unicode escapes")
	assert.Contains(t, prompt, `PH-01 "Parser rework"`)
	assert.Contains(t, prompt, "repro added")
	assert.Contains(t, prompt, `WF-01 "Standard flow"`)
	assert.Contains(t, prompt, "1. design: sketch first")
	assert.Contains(t, prompt, "let's plan the fix")
}

func TestBuildInitialCarriesContract(t *testing.T) {
	b := NewBuilder(contract.DefaultSchema())
	prompt := b.BuildInitial(taskContext(), nil, "hi")

	assert.Contains(t, prompt, `{"operations": [...], "summary": "..."}`)
	assert.Contains(t, prompt, "create_task {title: string, phase: string, description: string (optional), workflow: string (optional)}")
	assert.Contains(t, prompt, "complete_task {id: string}")
	assert.Contains(t, prompt, "add_note {target: string, text: string}")
}

func TestBuildInitialGeneralSession(t *testing.T) {
	b := NewBuilder(contract.DefaultSchema())
	prompt := b.BuildInitial(&contextres.Context{TargetRef: record.GeneralTarget}, nil, "hi")

	assert.Contains(t, prompt, "general session")
	assert.NotContains(t, prompt, "Target:")
}

func TestBuildInitialCarriesWorkBrief(t *testing.T) {
	b := NewBuilder(contract.DefaultSchema())
	brief := &WorkBrief{
		ID:         "WS-01J9",
		Cookie:     "cookie-123",
		MailboxDir: "/tmp/ws/WS-01J9_fix",
		Seed:       "Resuming work session WS-01J9.",
	}
	prompt := b.BuildInitial(taskContext(), brief, "pick it back up")

	assert.Contains(t, prompt, "work session WS-01J9")
	assert.Contains(t, prompt, "ws crumb WS-01J9 --cookie cookie-123")
	assert.Contains(t, prompt, "/tmp/ws/WS-01J9_fix")
	assert.Contains(t, prompt, "Resuming work session WS-01J9.")
}

func TestBuildFinalizeDemandsSinglePayload(t *testing.T) {
	b := NewBuilder(contract.DefaultSchema())
	prompt := b.BuildFinalize()

	assert.Contains(t, prompt, "exactly one JSON object")
	assert.Contains(t, prompt, `"operations"`)
	assert.Contains(t, prompt, `"summary"`)
	assert.Contains(t, prompt, "empty operations array")
}

func TestBuildTurnPassthrough(t *testing.T) {
	b := NewBuilder(contract.DefaultSchema())
	require.Equal(t, "what about tests?\n", b.BuildTurn("what about tests?"))
}
