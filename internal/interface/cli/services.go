package cli

import (
	"io"
	"time"

	"github.com/spf13/afero"

	"github.com/sotakimura/conductor/internal/app"
	"github.com/sotakimura/conductor/internal/application/apply"
	"github.com/sotakimura/conductor/internal/application/chat"
	"github.com/sotakimura/conductor/internal/application/contextres"
	"github.com/sotakimura/conductor/internal/application/promptbuild"
	"github.com/sotakimura/conductor/internal/application/streaminterp"
	"github.com/sotakimura/conductor/internal/application/validate"
	wssvc "github.com/sotakimura/conductor/internal/application/worksession"
	"github.com/sotakimura/conductor/internal/domain/model/contract"
	"github.com/sotakimura/conductor/internal/domain/model/record"
	"github.com/sotakimura/conductor/internal/gateway/engine"
	"github.com/sotakimura/conductor/internal/infra/fs/txn"
	"github.com/sotakimura/conductor/internal/infra/mailbox"
	filestore "github.com/sotakimura/conductor/internal/infra/repository/record"
	sessrepo "github.com/sotakimura/conductor/internal/infra/repository/session"
)

// services is the wired object graph for one command invocation
type services struct {
	paths       app.Paths
	store       record.Store
	resolver    *contextres.Resolver
	boxes       *mailbox.Store
	sessions    *wssvc.Service
	transcripts *sessrepo.TranscriptStore
	applier     *apply.Applier
	factory     *engine.Factory
}

func buildServices() *services {
	paths := app.ResolvePaths(globalConfig.Home())
	store := filestore.NewFileStore(afero.NewOsFs(), paths.TruthDir())
	resolver := contextres.NewResolver(store)
	boxes := mailbox.NewStore(paths.WorkSessionDir())

	engineBins := map[string]string{}
	for _, name := range []string{"claude", "codex", "gemini"} {
		if bin := globalConfig.EngineBin(name); bin != "" {
			engineBins[name] = bin
		}
	}

	return &services{
		paths:       paths,
		store:       store,
		resolver:    resolver,
		boxes:       boxes,
		sessions:    wssvc.NewService(boxes, resolver),
		transcripts: sessrepo.NewTranscriptStore(paths.SessionDir()),
		applier: apply.NewApplier(store,
			txn.NewManager(paths.TxnDir(), paths.TruthDir()),
			paths.JournalPath()),
		factory: engine.NewFactory(engineBins),
	}
}

// chatRunner wires a conversation runner for the named engine.
// A non-empty wsID binds the conversation to that work session: the
// brief (cookie, mailbox path, catch-up seed) lands in the opening
// prompt and engine resume tokens are mirrored into the mailbox.
func (s *services) chatRunner(engineName string, display io.Writer, wsID, wsCookie string) (*chat.Runner, error) {
	if engineName == "" {
		engineName = globalConfig.DefaultEngine()
	}
	eng, err := s.factory.Resolve(engineName)
	if err != nil {
		return nil, err
	}

	interp := streaminterp.NewInterpreter(time.Duration(globalConfig.TimeoutSec()) * time.Second)
	if display != nil {
		interp.SetDisplay(display)
	}

	schema := contract.DefaultSchema()
	deps := chat.Deps{
		Resolver:    s.resolver,
		Builder:     promptbuild.NewBuilder(schema),
		Interpreter: interp,
		Gate:        validate.NewGate(schema),
		Applier:     s.applier,
		Transcripts: s.transcripts,
		Engine:      eng,
	}

	if wsID != "" {
		seed, err := s.sessions.ResumeSeed(wsID)
		if err != nil {
			return nil, err
		}
		dir, err := s.boxes.DirFor(wsID)
		if err != nil {
			return nil, err
		}
		deps.Brief = &promptbuild.WorkBrief{
			ID:         wsID,
			Cookie:     wsCookie,
			MailboxDir: dir,
			Seed:       seed,
		}
		deps.OnResumeToken = func(token string) error {
			return s.sessions.SetResumeToken(wsID, wsCookie, token)
		}
	}

	return chat.NewRunner(deps), nil
}
