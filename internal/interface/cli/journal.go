package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sotakimura/conductor/internal/application/apply"
)

func newJournalCmd() *cobra.Command {
	var tail int

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show the apply journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := buildServices()

			data, err := os.ReadFile(svc.paths.JournalPath())
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}

			lines := strings.Split(strings.TrimSpace(string(data)), "\n")
			if tail > 0 && len(lines) > tail {
				lines = lines[len(lines)-tail:]
			}

			for _, line := range lines {
				if line == "" {
					continue
				}
				var entry apply.JournalEntry
				if err := json.Unmarshal([]byte(line), &entry); err != nil {
					return fmt.Errorf("corrupt journal line: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %d op(s)  %s\n",
					entry.TS.Format("2006-01-02 15:04:05"),
					entry.Session, len(entry.Operations), entry.Summary)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&tail, "tail", 0, "show only the last N entries")
	return cmd
}
