package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/sotakimura/conductor/internal/domain/model/record"
	"github.com/sotakimura/conductor/internal/infra/fs"
)

const defaultSettingJSON = `{
  "default_engine": "claude",
  "timeout_sec": 900,
  "stderr_level": "info"
}
`

func newInitCmd() *cobra.Command {
	var seed bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the conductor home directory layout",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := buildServices()
			home := svc.paths.Home

			dirs := []string{
				svc.paths.WorkSessionDir(),
				svc.paths.SessionDir(),
				svc.paths.TxnDir(),
			}
			for _, kind := range []record.Kind{
				record.KindTask, record.KindPhase, record.KindTrack,
				record.KindIssue, record.KindWorkflow,
			} {
				dirs = append(dirs, filepath.Join(svc.paths.TruthDir(), string(kind)))
			}
			for _, dir := range dirs {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return fmt.Errorf("create %s: %w", dir, err)
				}
			}

			settingPath := svc.paths.SettingPath()
			if _, err := os.Stat(settingPath); os.IsNotExist(err) {
				if err := fs.WriteFileSync(settingPath, []byte(defaultSettingJSON), 0644); err != nil {
					return err
				}
			}

			if seed {
				if err := seedRecords(svc); err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "initialized %s\n", home)
			return nil
		},
	}

	cmd.Flags().BoolVar(&seed, "seed", false, "seed a sample track, phase, and workflow")
	return cmd
}

// seedRecords creates a minimal hierarchy so chat sessions have targets
// to work against right after init
func seedRecords(svc *services) error {
	now := time.Now().UTC()

	if !svc.store.Exists(record.KindTrack, "TR-01") {
		if err := svc.store.Put(record.KindTrack, "TR-01", &record.Record{
			ID: "TR-01", Kind: record.KindTrack, Title: "Main track",
			Status: record.StatusActive, Workflow: "WF-01",
			CreatedAt: now, UpdatedAt: now,
		}); err != nil {
			return err
		}
	}
	if !svc.store.Exists(record.KindPhase, "PH-01") {
		if err := svc.store.Put(record.KindPhase, "PH-01", &record.Record{
			ID: "PH-01", Kind: record.KindPhase, Title: "Initial phase",
			Status: record.StatusActive, Parent: "TR-01",
			CreatedAt: now, UpdatedAt: now,
		}); err != nil {
			return err
		}
	}
	if _, err := svc.store.GetWorkflow("WF-01"); record.IsNotFound(err) {
		return svc.store.PutWorkflow(&record.Workflow{
			ID: "WF-01", Title: "Standard dev flow",
			Steps: []record.WorkflowStep{
				{Name: "design", Guidance: "sketch the approach and name the risks"},
				{Name: "implement", Guidance: "small steps, tests alongside"},
				{Name: "review", Guidance: "re-read the diff before completing"},
			},
		})
	}
	return nil
}
