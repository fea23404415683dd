package fs

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileSync(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.json")

	err := WriteFileSync(path, []byte(`{"ok":true}`), 0644)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(data))

	// No temp file left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".tmp."), "temp file left behind: %s", e.Name())
	}
}

func TestWriteFileSyncOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")

	require.NoError(t, WriteFileSync(path, []byte("first"), 0644))
	require.NoError(t, WriteFileSync(path, []byte("second"), 0644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestAtomicRename(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "sub", "dst.txt")

	require.NoError(t, os.WriteFile(src, []byte("payload"), 0644))
	require.NoError(t, AtomicRename(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err))
}

func TestAtomicRenameMissingSource(t *testing.T) {
	dir := t.TempDir()
	err := AtomicRename(filepath.Join(dir, "nope"), filepath.Join(dir, "dst"))
	assert.Error(t, err)
}

func TestAppendLineSync(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log.ndjson")

	require.NoError(t, AppendLineSync(path, []byte(`{"n":1}`)))
	require.NoError(t, AppendLineSync(path, []byte(`{"n":2}`+"\n")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\"n\":1}\n{\"n\":2}\n", string(data))
}

func TestAppendLineSyncConcurrent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log.ndjson")

	const writers = 8
	const perWriter = 20

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if err := AppendLineSync(path, []byte(`{"w":true}`)); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, writers*perWriter)
	for _, line := range lines {
		assert.Equal(t, `{"w":true}`, line, "interleaved partial record")
	}
}
