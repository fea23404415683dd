package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sotakimura/conductor/internal/application/chat"
	"github.com/sotakimura/conductor/internal/application/streaminterp"
	"github.com/sotakimura/conductor/internal/domain/model/session"
)

func newChatCmd() *cobra.Command {
	var target, engineName, resumeID, wsID, wsCookie string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Converse with an engine; finalize with /apply, abandon with /abort",
		RunE: func(cmd *cobra.Command, args []string) error {
			if wsID != "" && wsCookie == "" {
				return fmt.Errorf("--ws requires --cookie")
			}

			svc := buildServices()
			out := cmd.OutOrStdout()
			runner, err := svc.chatRunner(engineName, out, wsID, wsCookie)
			if err != nil {
				return err
			}

			// A work-session chat defaults to the session's own target
			if wsID != "" && !cmd.Flags().Changed("target") {
				meta, err := svc.boxes.Load(wsID)
				if err != nil {
					return err
				}
				target = meta.Target
			}

			var sess *session.Session
			if resumeID != "" {
				sess, err = runner.Resume(resumeID)
			} else {
				sess, err = runner.Open(target)
			}
			if err != nil {
				return err
			}

			if wsID != "" {
				// The attach crumb proves cookie possession before any
				// engine process starts
				if err := svc.sessions.Crumb(wsID, wsCookie, "chat session "+sess.ID()+" attached", sess.ID()); err != nil {
					return err
				}
				if token, err := svc.sessions.ResumeToken(wsID); err == nil && token != "" {
					sess.SetResumeToken(token)
				}
			}

			fmt.Fprintf(out, "session %s (target: %s, engine: %s)\n",
				sess.ID(), sess.Target(), sess.EngineName())

			// Input flows through a channel so the operator can still type
			// /abort while an engine is streaming
			var scanErr error
			lines := make(chan string)
			go func() {
				defer close(lines)
				scanner := bufio.NewScanner(cmd.InOrStdin())
				for scanner.Scan() {
					lines <- scanner.Text()
				}
				scanErr = scanner.Err()
			}()

			for {
				fmt.Fprint(out, "> ")
				line, ok := <-lines
				if !ok {
					// EOF without /apply leaves the session resumable
					fmt.Fprintf(out, "\nsession %s left open; resume with --resume\n", sess.ID())
					return scanErr
				}
				if strings.TrimSpace(line) == "" {
					continue
				}

				switch streaminterp.ParseControl(line) {
				case streaminterp.ControlAbort:
					if err := runner.Abort(sess); err != nil {
						return err
					}
					fmt.Fprintf(out, "session %s aborted\n", sess.ID())
					return nil

				case streaminterp.ControlFinalize:
					done := make(chan struct{})
					result, err := runner.Finalize(cmd.Context(), sess, watchAbort(lines, done))
					close(done)
					if err != nil {
						if errors.Is(err, chat.ErrAborted) {
							fmt.Fprintf(out, "session %s aborted\n", sess.ID())
							return nil
						}
						if chat.IsContractRejected(err) {
							rejected := err.(chat.ContractRejectedError)
							fmt.Fprintf(out, "finalization rejected (%s):\n", rejected.Last.Verdict)
							for _, diag := range rejected.Last.Diagnostics {
								fmt.Fprintf(out, "  - %s\n", diag)
							}
							fmt.Fprintln(out, "session stays open; refine and /apply again")
							continue
						}
						return err
					}
					fmt.Fprintf(out, "applied: %d created, %d updated (%s)\n",
						len(result.Apply.Created), len(result.Apply.Updated), result.Apply.Summary)
					for _, id := range result.Apply.Created {
						fmt.Fprintf(out, "  + %s\n", id)
					}
					for _, id := range result.Apply.Updated {
						fmt.Fprintf(out, "  ~ %s\n", id)
					}
					if wsID != "" {
						// The records are committed either way; a failed
						// crumb only costs the progress note
						msg := fmt.Sprintf("session %s applied: %s", sess.ID(), result.Apply.Summary)
						if err := svc.sessions.Crumb(wsID, wsCookie, msg, sess.ID()); err != nil {
							fmt.Fprintf(out, "warning: breadcrumb not recorded: %v\n", err)
						}
					}
					return nil

				default:
					// Chunks stream to out as they arrive; only close the line
					done := make(chan struct{})
					reply, err := runner.Send(cmd.Context(), sess, line, watchAbort(lines, done))
					close(done)
					if err != nil {
						if errors.Is(err, chat.ErrAborted) {
							fmt.Fprintf(out, "session %s aborted\n", sess.ID())
							return nil
						}
						return err
					}
					if !strings.HasSuffix(reply, "\n") {
						fmt.Fprintln(out)
					}
				}
			}
		},
	}

	cmd.Flags().StringVar(&target, "target", "general", "target record reference")
	cmd.Flags().StringVar(&engineName, "engine", "", "engine to use (default from config)")
	cmd.Flags().StringVar(&resumeID, "resume", "", "resume a persisted session by id")
	cmd.Flags().StringVar(&wsID, "ws", "", "bind the conversation to a work session")
	cmd.Flags().StringVar(&wsCookie, "cookie", "", "work session cookie (required with --ws)")
	return cmd
}

// watchAbort forwards a mid-stream /abort from the operator to the
// interpreter. Anything else typed while the engine is talking is
// dropped. The watcher stops when done closes.
func watchAbort(lines <-chan string, done <-chan struct{}) <-chan streaminterp.Control {
	control := make(chan streaminterp.Control, 1)
	go func() {
		for {
			select {
			case line, ok := <-lines:
				if !ok {
					return
				}
				if streaminterp.ParseControl(line) == streaminterp.ControlAbort {
					select {
					case control <- streaminterp.ControlAbort:
					default:
					}
				}
			case <-done:
				return
			}
		}
	}()
	return control
}
