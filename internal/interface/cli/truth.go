package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sotakimura/conductor/internal/domain/model/record"
)

var listableKinds = map[string]record.Kind{
	"task":  record.KindTask,
	"phase": record.KindPhase,
	"track": record.KindTrack,
	"issue": record.KindIssue,
}

func newTruthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "truth",
		Short: "Inspect the record store",
	}
	cmd.AddCommand(newTruthListCmd())
	cmd.AddCommand(newTruthShowCmd())
	cmd.AddCommand(newTruthSeedCmd())
	return cmd
}

func newTruthSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed a sample track, phase, and workflow",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := buildServices()
			if err := seedRecords(svc); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "seeded TR-01, PH-01, WF-01")
			return nil
		},
	}
}

func newTruthListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <task|phase|track|issue>",
		Short: "List records of one kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, ok := listableKinds[args[0]]
			if !ok {
				return fmt.Errorf("unknown kind %q", args[0])
			}

			svc := buildServices()
			records, err := svc.store.List(kind)
			if err != nil {
				return err
			}
			for _, rec := range records {
				line := fmt.Sprintf("%s  %-10s %s", rec.ID, rec.Status, rec.Title)
				if rec.Parent != "" {
					line += "  (under " + rec.Parent + ")"
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
}

func newTruthShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <ref>",
		Short: "Show one record in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := record.ParseRef(args[0])
			if err != nil {
				return err
			}

			svc := buildServices()
			out := cmd.OutOrStdout()

			if ref.Kind == record.KindWorkflow {
				wf, err := svc.store.GetWorkflow(ref.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s  %s\n", wf.ID, wf.Title)
				for i, step := range wf.Steps {
					fmt.Fprintf(out, "  %d. %s: %s\n", i+1, step.Name, step.Guidance)
				}
				return nil
			}

			rec, err := svc.store.Get(ref.Kind, ref.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s  %s\n", rec.ID, rec.Title)
			fmt.Fprintf(out, "kind:     %s\n", rec.Kind)
			fmt.Fprintf(out, "status:   %s\n", rec.Status)
			if rec.Severity != "" {
				fmt.Fprintf(out, "severity: %s\n", rec.Severity)
			}
			if rec.Parent != "" {
				fmt.Fprintf(out, "parent:   %s\n", rec.Parent)
			}
			if rec.Workflow != "" {
				fmt.Fprintf(out, "workflow: %s\n", rec.Workflow)
			}
			if rec.Description != "" {
				fmt.Fprintf(out, "\n%s\n", rec.Description)
			}
			if len(rec.Children) > 0 {
				fmt.Fprintf(out, "\nchildren: %v\n", rec.Children)
			}
			for _, note := range rec.Notes {
				fmt.Fprintf(out, "note [%s] %s\n", note.TS.Format("2006-01-02 15:04"), note.Text)
			}
			return nil
		},
	}
}
