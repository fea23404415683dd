package cli

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sotakimura/conductor/internal/application/streaminterp"
	"github.com/sotakimura/conductor/internal/testutil"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRoot()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestInitCreatesLayout(t *testing.T) {
	home := testutil.Workspace(t)

	out, err := run(t, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "initialized")

	for _, dir := range []string{
		filepath.Join(home, "truth", "task"),
		filepath.Join(home, "var", "ws"),
		filepath.Join(home, "var", "sessions"),
		filepath.Join(home, "var", "txn"),
	} {
		assert.DirExists(t, dir)
	}
	assert.FileExists(t, filepath.Join(home, "setting.json"))
}

func TestInitSeedAndTruthList(t *testing.T) {
	testutil.Workspace(t)

	_, err := run(t, "init", "--seed")
	require.NoError(t, err)

	out, err := run(t, "truth", "list", "phase")
	require.NoError(t, err)
	assert.Contains(t, out, "PH-01")
	assert.Contains(t, out, "Initial phase")

	out, err = run(t, "truth", "show", "WF-01")
	require.NoError(t, err)
	assert.Contains(t, out, "Standard dev flow")
	assert.Contains(t, out, "1. design")
}

func TestTruthSeedIsIdempotent(t *testing.T) {
	testutil.Workspace(t)
	_, err := run(t, "init")
	require.NoError(t, err)

	out, err := run(t, "truth", "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "TR-01")

	_, err = run(t, "truth", "seed")
	require.NoError(t, err)

	out, err = run(t, "truth", "list", "track")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "TR-01"))
}

func TestTruthListUnknownKind(t *testing.T) {
	testutil.Workspace(t)
	_, err := run(t, "init")
	require.NoError(t, err)

	_, err = run(t, "truth", "list", "widget")
	assert.Error(t, err)
}

func TestWsStartAndCrumbFlow(t *testing.T) {
	testutil.Workspace(t)
	_, err := run(t, "init", "--seed")
	require.NoError(t, err)

	out, err := run(t, "ws", "start", "--title", "Parser spike", "--target", "PH-01")
	require.NoError(t, err)

	var wsID, cookie string
	for _, line := range strings.Split(out, "\n") {
		if rest, found := strings.CutPrefix(line, "started "); found {
			wsID = strings.TrimSpace(rest)
		}
		if rest, found := strings.CutPrefix(line, "cookie: "); found {
			cookie = strings.TrimSpace(rest)
		}
	}
	require.NotEmpty(t, wsID)
	require.NotEmpty(t, cookie)

	_, err = run(t, "ws", "crumb", wsID, "--cookie", cookie, "--message", "spiked the lexer")
	require.NoError(t, err)

	_, err = run(t, "ws", "crumb", wsID, "--cookie", "forged", "--message", "nope")
	assert.Error(t, err)

	out, err = run(t, "ws", "log", wsID)
	require.NoError(t, err)
	assert.Contains(t, out, "spiked the lexer")
	assert.NotContains(t, out, "nope")

	out, err = run(t, "ws", "list")
	require.NoError(t, err)
	assert.Contains(t, out, wsID)
}

func TestWsStartRejectsPhantomTarget(t *testing.T) {
	testutil.Workspace(t)
	_, err := run(t, "init")
	require.NoError(t, err)

	_, err = run(t, "ws", "start", "--title", "x", "--target", "T-404")
	assert.Error(t, err)
}

func TestJournalEmptyIsQuiet(t *testing.T) {
	testutil.Workspace(t)
	_, err := run(t, "init")
	require.NoError(t, err)

	out, err := run(t, "journal")
	require.NoError(t, err)
	assert.Empty(t, strings.TrimSpace(out))
}

func TestWatchAbortForwardsAbortOnly(t *testing.T) {
	lines := make(chan string)
	done := make(chan struct{})
	control := watchAbort(lines, done)

	// Ordinary chatter while the engine streams is dropped
	lines <- "are you still there?"
	select {
	case c := <-control:
		t.Fatalf("unexpected control %v", c)
	default:
	}

	lines <- "/abort"
	select {
	case c := <-control:
		assert.Equal(t, streaminterp.ControlAbort, c)
	case <-time.After(time.Second):
		t.Fatal("abort was not forwarded")
	}
	close(done)
}

func TestWatchAbortStopsOnDone(t *testing.T) {
	lines := make(chan string)
	done := make(chan struct{})
	watchAbort(lines, done)
	close(done)
	time.Sleep(20 * time.Millisecond)

	// Once released, the watcher no longer competes for operator input
	select {
	case lines <- "next prompt":
		t.Fatal("watcher still consuming input")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestVersionOutput(t *testing.T) {
	testutil.Workspace(t)
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "conductor")
}
