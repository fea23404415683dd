// Package chat drives the conversation loop: operator messages go out
// through the prompt builder and engine gateway, engine replies come back
// through the stream interpreter, and finalization runs the contract gate
// and applier.
package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/sotakimura/conductor/internal/app"
	"github.com/sotakimura/conductor/internal/application/apply"
	"github.com/sotakimura/conductor/internal/application/contextres"
	"github.com/sotakimura/conductor/internal/application/promptbuild"
	"github.com/sotakimura/conductor/internal/application/streaminterp"
	"github.com/sotakimura/conductor/internal/application/validate"
	"github.com/sotakimura/conductor/internal/domain/model/session"
	"github.com/sotakimura/conductor/internal/gateway/engine"
	sessrepo "github.com/sotakimura/conductor/internal/infra/repository/session"
)

// DefaultFinalizeAttempts is how many times a rejected contract is fed
// back to the engine before the finalization fails
const DefaultFinalizeAttempts = 2

// ErrAborted is returned when the operator aborts during finalization
var ErrAborted = fmt.Errorf("session aborted by operator")

// ContractRejectedError indicates every finalization attempt failed the
// gate. The last gate result carries the diagnostics.
type ContractRejectedError struct {
	Attempts int
	Last     *validate.Result
}

func (e ContractRejectedError) Error() string {
	return fmt.Sprintf("contract rejected after %d attempts (%s)", e.Attempts, e.Last.Verdict)
}

// IsContractRejected checks for the rejected-contract error
func IsContractRejected(err error) bool {
	_, ok := err.(ContractRejectedError)
	return ok
}

// FinalizeResult reports one finalization: the gate verdict that let it
// through and what the applier committed
type FinalizeResult struct {
	Gate     *validate.Result
	Apply    *apply.Result
	Attempts int
}

// Deps wires a runner. Brief and OnResumeToken are optional: set, they
// bind the conversation to a work session and mirror engine resume
// tokens into its mailbox.
type Deps struct {
	Resolver      *contextres.Resolver
	Builder       *promptbuild.Builder
	Interpreter   *streaminterp.Interpreter
	Gate          *validate.Gate
	Applier       *apply.Applier
	Transcripts   *sessrepo.TranscriptStore
	Engine        engine.Engine
	Brief         *promptbuild.WorkBrief
	OnResumeToken func(token string) error
}

// Runner executes conversation turns for sessions
type Runner struct {
	deps             Deps
	finalizeAttempts int
	log              app.Logger
}

// NewRunner creates a runner
func NewRunner(deps Deps) *Runner {
	return &Runner{
		deps:             deps,
		finalizeAttempts: DefaultFinalizeAttempts,
		log:              app.GetLogger(),
	}
}

// Open starts a new session against a target.
// The target must resolve before any engine process is spawned.
func (r *Runner) Open(target string) (*session.Session, error) {
	resolved, err := r.deps.Resolver.Resolve(target)
	if err != nil {
		return nil, err
	}

	sess := session.New(resolved.TargetRef, r.deps.Engine.Name())
	if err := r.deps.Transcripts.Open(sess); err != nil {
		return nil, err
	}
	r.log.Info("session %s opened against %s (engine: %s)", sess.ID(), sess.Target(), sess.EngineName())
	return sess, nil
}

// Resume reloads a persisted session for further turns.
// Completed sessions stay closed; aborted and awaiting ones reopen.
func (r *Runner) Resume(id string) (*session.Session, error) {
	sess, err := r.deps.Transcripts.Load(id)
	if err != nil {
		return nil, err
	}
	if sess.Status() == session.StatusCompleted {
		return nil, fmt.Errorf("session %s is completed and cannot be resumed", id)
	}
	if sess.Status() != session.StatusActive {
		if err := sess.Reopen(); err != nil {
			return nil, err
		}
		if err := r.deps.Transcripts.SetStatus(id, sess.Status()); err != nil {
			return nil, err
		}
	}
	return sess, nil
}

// Send delivers one operator message and returns the engine's reply.
// Control tokens are not messages; the caller routes those to Finalize
// or Abort. An abort arriving on the control channel while the engine is
// still streaming stops the turn and aborts the session with ErrAborted.
func (r *Runner) Send(ctx context.Context, sess *session.Session, message string, control <-chan streaminterp.Control) (string, error) {
	if streaminterp.ParseControl(message) != streaminterp.ControlNone {
		return "", fmt.Errorf("control token %q is not a message", strings.TrimSpace(message))
	}

	firstExchange := !hasEngineTurn(sess)
	if err := r.recordTurn(sess, session.RoleOperator, message); err != nil {
		return "", err
	}

	var prompt string
	if firstExchange {
		resolved, err := r.deps.Resolver.Resolve(sess.Target())
		if err != nil {
			return "", err
		}
		prompt = r.deps.Builder.BuildInitial(resolved, r.deps.Brief, message)
	} else {
		prompt = r.deps.Builder.BuildTurn(message)
	}

	outcome, err := r.runTurn(ctx, sess, prompt, control)
	if err != nil {
		return "", err
	}
	if outcome.Control == streaminterp.ControlAbort {
		// Partial text is already in the transcript via runTurn
		if err := r.Abort(sess); err != nil {
			return "", err
		}
		return "", ErrAborted
	}
	return outcome.Text, nil
}

// Finalize demands the contract payload, gates it, and applies it.
// A rejected payload is fed back with diagnostics up to the attempt
// budget; each attempt lands in the transcript like any other turn.
func (r *Runner) Finalize(ctx context.Context, sess *session.Session, control <-chan streaminterp.Control) (*FinalizeResult, error) {
	if err := sess.AwaitContract(); err != nil {
		return nil, err
	}
	if err := r.deps.Transcripts.SetStatus(sess.ID(), sess.Status()); err != nil {
		return nil, err
	}

	prompt := r.deps.Builder.BuildFinalize()
	var lastResult *validate.Result

	for attempt := 1; attempt <= r.finalizeAttempts; attempt++ {
		if err := r.recordTurn(sess, session.RoleSystem, prompt); err != nil {
			return nil, err
		}

		outcome, err := r.runTurn(ctx, sess, prompt, control)
		if err != nil {
			return nil, err
		}
		if outcome.Control == streaminterp.ControlAbort {
			if err := r.Abort(sess); err != nil {
				return nil, err
			}
			return nil, ErrAborted
		}

		result := r.deps.Gate.Check(outcome.Text)
		lastResult = result
		if result.OK() {
			applied, err := r.deps.Applier.Apply(ctx, sess.ID(), result.Batch)
			if err != nil {
				// A precondition miss is the engine's error, not the
				// operator's; the session stays workable
				if apply.IsPrecondition(err) {
					if reopenErr := sess.Reopen(); reopenErr == nil {
						_ = r.deps.Transcripts.SetStatus(sess.ID(), sess.Status())
					}
				}
				return nil, err
			}
			if err := sess.Complete(); err != nil {
				return nil, err
			}
			if err := r.deps.Transcripts.SetStatus(sess.ID(), sess.Status()); err != nil {
				return nil, err
			}
			r.log.Info("session %s finalized: %d created, %d updated",
				sess.ID(), len(applied.Created), len(applied.Updated))
			return &FinalizeResult{Gate: result, Apply: applied, Attempts: attempt}, nil
		}

		r.log.Warn("session %s finalization attempt %d rejected: %s",
			sess.ID(), attempt, result.Verdict)
		prompt = rejectionPrompt(result)
	}

	// The session drops back to active so the operator can refine the
	// conversation and finalize again
	if err := sess.Reopen(); err != nil {
		return nil, err
	}
	if err := r.deps.Transcripts.SetStatus(sess.ID(), sess.Status()); err != nil {
		return nil, err
	}
	return nil, ContractRejectedError{Attempts: r.finalizeAttempts, Last: lastResult}
}

// Abort terminates the session, preserving the transcript
func (r *Runner) Abort(sess *session.Session) error {
	if err := sess.Abort(); err != nil {
		return err
	}
	if err := r.recordTurn(sess, session.RoleSystem, "session aborted by operator"); err != nil {
		return err
	}
	return r.deps.Transcripts.SetStatus(sess.ID(), sess.Status())
}

// runTurn executes one engine exchange.
// If resuming an engine conversation fails, the turn is retried fresh
// with the transcript folded into the prompt, so a stale token degrades
// to a re-seeded conversation instead of a dead session.
func (r *Runner) runTurn(ctx context.Context, sess *session.Session, prompt string, control <-chan streaminterp.Control) (*streaminterp.Outcome, error) {
	outcome, err := r.exchange(ctx, sess, prompt, sess.ResumeToken(), control)
	if err != nil && engine.IsResumeFailed(err) && sess.ResumeToken() != "" {
		r.log.Warn("session %s: engine resume failed, re-seeding from transcript", sess.ID())
		seeded := seedFromTranscript(sess) + prompt
		outcome, err = r.exchange(ctx, sess, seeded, "", control)
	}
	if err != nil {
		return nil, err
	}

	if err := r.recordTurn(sess, session.RoleEngine, outcome.Text); err != nil {
		return nil, err
	}
	if outcome.ResumeToken != "" {
		sess.SetResumeToken(outcome.ResumeToken)
		if err := r.deps.Transcripts.SetResumeToken(sess.ID(), outcome.ResumeToken); err != nil {
			return nil, err
		}
		if r.deps.OnResumeToken != nil {
			if err := r.deps.OnResumeToken(outcome.ResumeToken); err != nil {
				r.log.Warn("session %s: resume token not mirrored: %v", sess.ID(), err)
			}
		}
	}
	return outcome, nil
}

func (r *Runner) exchange(ctx context.Context, sess *session.Session, prompt, resumeToken string, control <-chan streaminterp.Control) (*streaminterp.Outcome, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := r.deps.Engine.Start(streamCtx, engine.Request{
		Prompt:      prompt,
		ResumeToken: resumeToken,
	})
	if err != nil {
		return nil, err
	}

	outcome, err := r.deps.Interpreter.Consume(ctx, stream, control)
	if err != nil {
		cancel()
		drain(stream)
		return outcome, err
	}
	if outcome.Control == streaminterp.ControlAbort {
		cancel()
		drain(stream)
	}
	return outcome, nil
}

func (r *Runner) recordTurn(sess *session.Session, role, text string) error {
	turn := sess.AppendTurn(role, text)
	return r.deps.Transcripts.AppendTurn(sess.ID(), turn)
}

func hasEngineTurn(sess *session.Session) bool {
	for _, turn := range sess.Turns() {
		if turn.Role == session.RoleEngine {
			return true
		}
	}
	return false
}

func rejectionPrompt(result *validate.Result) string {
	var sb strings.Builder
	sb.WriteString("Your finalization was rejected (")
	sb.WriteString(string(result.Verdict))
	sb.WriteString("):\n")
	for _, diag := range result.Diagnostics {
		sb.WriteString("- ")
		sb.WriteString(diag)
		sb.WriteString("\n")
	}
	sb.WriteString("\nSend exactly one corrected JSON object with \"operations\" and \"summary\". Emit nothing else.\n")
	return sb.String()
}

func drain(stream *engine.Stream) {
	for range stream.Chunks() {
	}
}

// seedFromTranscript folds the conversation so far into a prompt prefix
// for engines that lost their server-side session
func seedFromTranscript(sess *session.Session) string {
	var sb strings.Builder
	sb.WriteString("The previous conversation could not be resumed. Transcript so far:\n\n")
	for _, turn := range sess.Turns() {
		switch turn.Role {
		case session.RoleOperator:
			sb.WriteString("Operator: ")
		case session.RoleEngine:
			sb.WriteString("Engine: ")
		default:
			sb.WriteString("System: ")
		}
		sb.WriteString(turn.Text)
		if !strings.HasSuffix(turn.Text, "\n") {
			sb.WriteString("\n")
		}
	}
	sb.WriteString("\nContinue from here.\n\n")
	return sb.String()
}
