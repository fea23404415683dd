// Package promptbuild composes the prompts sent to engines.
// Building is pure: the same context, contract, and message always yield
// the same prompt, so transcripts fully determine what an engine saw.
package promptbuild

import (
	"fmt"
	"strings"

	"github.com/sotakimura/conductor/internal/application/contextres"
	"github.com/sotakimura/conductor/internal/domain/model/contract"
)

// Control tokens the operator can type to steer a session
const (
	TokenApply = "/apply"
	TokenAbort = "/abort"
)

// WorkBrief binds a conversation to a work session. The cookie lets the
// engine drop breadcrumbs into the mailbox through the CLI; the seed
// carries everything that happened before this process attached.
type WorkBrief struct {
	ID         string
	Cookie     string
	MailboxDir string
	Seed       string
}

// Builder composes prompts against one operation schema
type Builder struct {
	schema *contract.Schema
}

// NewBuilder creates a builder for the given schema
func NewBuilder(schema *contract.Schema) *Builder {
	return &Builder{schema: schema}
}

// BuildInitial composes the opening prompt for a conversation: resolved
// context, the work-session brief if the conversation is bound to one,
// the contract the engine must eventually satisfy, and the operator's
// first message. A nil brief means a standalone conversation.
func (b *Builder) BuildInitial(ctx *contextres.Context, brief *WorkBrief, message string) string {
	var sb strings.Builder

	sb.WriteString("# Role\n\n")
	sb.WriteString("You are assisting with planning work tracked in a structured record store.\n")
	sb.WriteString("Discuss freely, but any change to the records must go through the\n")
	sb.WriteString("operation contract described below. Nothing you write is applied until\n")
	sb.WriteString("the operator finalizes the session.\n\n")

	b.writeContext(&sb, ctx)
	b.writeWorkSession(&sb, brief)
	b.writeContract(&sb)

	sb.WriteString("# Operator\n\n")
	sb.WriteString(message)
	sb.WriteString("\n")

	return sb.String()
}

// BuildTurn composes a follow-up prompt for an ongoing conversation
func (b *Builder) BuildTurn(message string) string {
	return message + "\n"
}

// BuildFinalize composes the finalization prompt that demands the
// contract payload and nothing else.
func (b *Builder) BuildFinalize() string {
	var sb strings.Builder
	sb.WriteString("Finalize this session now.\n\n")
	sb.WriteString("Respond with exactly one JSON object containing the fields\n")
	sb.WriteString("\"operations\" and \"summary\" as specified earlier. Emit no other\n")
	sb.WriteString("JSON objects. If the discussion produced no record changes, send an\n")
	sb.WriteString("empty operations array with a summary explaining why.\n")
	return sb.String()
}

func (b *Builder) writeContext(sb *strings.Builder, ctx *contextres.Context) {
	sb.WriteString("# Context\n\n")
	if ctx == nil || ctx.IsGeneral() {
		sb.WriteString("This is a general session, not bound to any record.\n\n")
		return
	}

	writeRecordLine := func(label string, id, title, status string) {
		fmt.Fprintf(sb, "%s: %s %q (status: %s)\n", label, id, title, status)
	}

	writeRecordLine("Target", ctx.Target.ID, ctx.Target.Title, ctx.Target.Status)
	if ctx.Target.Description != "" {
		fmt.Fprintf(sb, "Description: %s\n", ctx.Target.Description)
	}
	for _, note := range ctx.Target.Notes {
		fmt.Fprintf(sb, "Note (%s): %s\n", note.TS.Format("2006-01-02"), note.Text)
	}
	for _, ancestor := range ctx.Ancestors {
		writeRecordLine("Under", ancestor.ID, ancestor.Title, ancestor.Status)
	}

	if ctx.Workflow != nil {
		fmt.Fprintf(sb, "\nWorkflow %s %q:\n", ctx.Workflow.ID, ctx.Workflow.Title)
		for i, step := range ctx.Workflow.Steps {
			fmt.Fprintf(sb, "  %d. %s: %s\n", i+1, step.Name, step.Guidance)
		}
	}
	sb.WriteString("\n")
}

func (b *Builder) writeWorkSession(sb *strings.Builder, brief *WorkBrief) {
	if brief == nil {
		return
	}
	sb.WriteString("# Work session\n\n")
	fmt.Fprintf(sb, "This conversation runs inside work session %s.\n", brief.ID)
	fmt.Fprintf(sb, "Mailbox directory: %s\n", brief.MailboxDir)
	sb.WriteString("Record durable progress as you go by running:\n\n")
	fmt.Fprintf(sb, "  conductor ws crumb %s --cookie %s --message \"<what you did>\"\n\n", brief.ID, brief.Cookie)
	sb.WriteString("The cookie above authorizes writes to this session only; do not\n")
	sb.WriteString("reuse it elsewhere or print it in your replies.\n")
	if brief.Seed != "" {
		sb.WriteString("\n")
		sb.WriteString(brief.Seed)
	}
	sb.WriteString("\n")
}

func (b *Builder) writeContract(sb *strings.Builder) {
	sb.WriteString("# Contract\n\n")
	sb.WriteString("When asked to finalize, respond with exactly one JSON object:\n\n")
	sb.WriteString("  {\"operations\": [...], \"summary\": \"...\"}\n\n")
	sb.WriteString("Each operation is an object with a \"name\" field plus its arguments.\n")
	sb.WriteString("Available operations:\n\n")

	for _, def := range b.schema.Operations() {
		var args []string
		for _, arg := range def.Args {
			spec := fmt.Sprintf("%s: %s", arg.Name, arg.Type)
			if !arg.Required {
				spec += " (optional)"
			}
			args = append(args, spec)
		}
		fmt.Fprintf(sb, "  %s {%s}\n", def.Name, strings.Join(args, ", "))
	}

	sb.WriteString("\nUnknown operations and unknown arguments are rejected.\n\n")
}
