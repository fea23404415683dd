package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newWsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ws",
		Short: "Manage work sessions",
	}
	cmd.AddCommand(newWsStartCmd())
	cmd.AddCommand(newWsListCmd())
	cmd.AddCommand(newWsLogCmd())
	cmd.AddCommand(newWsCrumbCmd())
	cmd.AddCommand(newWsStatusCmd())
	cmd.AddCommand(newWsCompleteCmd())
	cmd.AddCommand(newWsStackCmd())
	cmd.AddCommand(newWsResumeCmd())
	return cmd
}

func newWsStartCmd() *cobra.Command {
	var title, target string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a new work session",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := buildServices()
			ws, err := svc.sessions.Start(title, target)
			if err != nil {
				return err
			}
			// The cookie is printed exactly once; it is not recoverable
			// through any read API afterwards
			fmt.Fprintf(cmd.OutOrStdout(), "started %s\ncookie: %s\n", ws.ID(), ws.Cookie())
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "session title")
	cmd.Flags().StringVar(&target, "target", "general", "target record reference")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newWsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List work sessions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := buildServices()
			metas, err := svc.sessions.List()
			if err != nil {
				return err
			}
			for _, meta := range metas {
				line := fmt.Sprintf("%s  %-9s %-8s %s", meta.ID, meta.Status, meta.Target, meta.Title)
				if meta.Parent != "" {
					line += "  (child of " + meta.Parent + ")"
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
}

func newWsLogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "log <ws-id>",
		Short: "Show a session's breadcrumb trail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := buildServices()
			_, crumbs, err := svc.sessions.Status(args[0])
			if err != nil {
				return err
			}
			for _, crumb := range crumbs {
				source := ""
				if crumb.Source != "" {
					source = " <" + crumb.Source + ">"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-6s%s %s\n",
					crumb.TS.Format("2006-01-02 15:04:05"), crumb.Kind, source, crumb.Message)
			}
			return nil
		},
	}
}

func newWsCrumbCmd() *cobra.Command {
	var cookie, message, source string

	cmd := &cobra.Command{
		Use:   "crumb <ws-id>",
		Short: "Append a progress note to a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := buildServices()
			return svc.sessions.Crumb(args[0], cookie, message, source)
		},
	}

	cmd.Flags().StringVar(&cookie, "cookie", "", "session write cookie")
	cmd.Flags().StringVar(&message, "message", "", "note text")
	cmd.Flags().StringVar(&source, "source", "", "who is writing (e.g. engine name)")
	_ = cmd.MarkFlagRequired("cookie")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

func newWsStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <ws-id>",
		Short: "Show a session's state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := buildServices()
			meta, crumbs, err := svc.sessions.Status(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s  %s\n", meta.ID, meta.Title)
			fmt.Fprintf(out, "status:  %s\n", meta.Status)
			fmt.Fprintf(out, "target:  %s\n", meta.Target)
			if meta.Parent != "" {
				fmt.Fprintf(out, "parent:  %s\n", meta.Parent)
			}
			fmt.Fprintf(out, "started: %s\n", meta.StartedAt.Format("2006-01-02 15:04:05"))
			fmt.Fprintf(out, "crumbs:  %d\n", len(crumbs))
			for _, child := range meta.Children {
				fmt.Fprintf(out, "child:   %s %q: %s\n", child.ID, child.Title, child.Summary)
			}
			return nil
		},
	}
}

func newWsCompleteCmd() *cobra.Command {
	var cookie, summary string

	cmd := &cobra.Command{
		Use:   "complete <ws-id>",
		Short: "Complete a session, rolling a child's summary up to its parent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := buildServices()
			return svc.sessions.Complete(args[0], cookie, summary)
		},
	}

	cmd.Flags().StringVar(&cookie, "cookie", "", "session write cookie")
	cmd.Flags().StringVar(&summary, "summary", "", "what this session accomplished")
	_ = cmd.MarkFlagRequired("cookie")
	_ = cmd.MarkFlagRequired("summary")
	return cmd
}

func newWsStackCmd() *cobra.Command {
	var cookie, title string

	cmd := &cobra.Command{
		Use:   "stack <parent-ws-id>",
		Short: "Pause a session and start a child session under it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := buildServices()
			child, err := svc.sessions.StackChild(args[0], cookie, title)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stacked %s under %s\ncookie: %s\n",
				child.ID(), args[0], child.Cookie())
			return nil
		},
	}

	cmd.Flags().StringVar(&cookie, "cookie", "", "parent session write cookie")
	cmd.Flags().StringVar(&title, "title", "", "child session title")
	_ = cmd.MarkFlagRequired("cookie")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newWsResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume <ws-id>",
		Short: "Print the catch-up context for resuming a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := buildServices()
			seed, err := svc.sessions.ResumeSeed(args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), seed)
			return nil
		},
	}
}
