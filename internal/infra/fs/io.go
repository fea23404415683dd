// Package fs provides the durability primitives shared by the record store,
// the work-session mailboxes, and the apply transaction: fsync of files and
// parent directories, atomic rename, and synced whole-file writes.
package fs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FsyncFile syncs file contents to disk.
// This ensures that all buffered data is written to persistent storage.
func FsyncFile(f *os.File) error {
	if f == nil {
		return fmt.Errorf("FsyncFile: file is nil")
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("FsyncFile: failed to sync file %s: %w", f.Name(), err)
	}
	return nil
}

// FsyncDir syncs directory metadata to disk.
// This is crucial after rename operations to ensure directory entries are
// persisted. Ordering: fsync(file) then fsync(parent dir).
func FsyncDir(dirPath string) error {
	if dirPath == "" {
		return fmt.Errorf("FsyncDir: directory path is empty")
	}

	dir, err := os.Open(dirPath)
	if err != nil {
		return fmt.Errorf("FsyncDir: failed to open directory %s: %w", dirPath, err)
	}
	defer dir.Close()

	if err := dir.Sync(); err != nil {
		return fmt.Errorf("FsyncDir: failed to sync directory %s: %w", dirPath, err)
	}
	return nil
}

// AtomicRename performs an atomic rename within the same filesystem and
// syncs the destination's parent directory afterwards.
//
// src and dst must be on the same filesystem for the atomicity guarantee;
// EXDEV errors are wrapped with clear messaging.
func AtomicRename(src, dst string) error {
	if src == "" {
		return fmt.Errorf("atomic rename: source path is empty")
	}
	if dst == "" {
		return fmt.Errorf("atomic rename: destination path is empty")
	}

	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("atomic rename %s -> %s: source does not exist: %w", src, dst, err)
	}

	parentDir := filepath.Dir(dst)
	if err := os.MkdirAll(parentDir, 0755); err != nil {
		return fmt.Errorf("atomic rename %s -> %s: failed to create parent dir: %w", src, dst, err)
	}

	if err := os.Rename(src, dst); err != nil {
		if strings.Contains(err.Error(), "cross-device") {
			return fmt.Errorf("atomic rename %s -> %s: cross-filesystem rename not supported (EXDEV): %w", src, dst, err)
		}
		return fmt.Errorf("atomic rename %s -> %s: %w", src, dst, err)
	}

	if err := FsyncDir(parentDir); err != nil {
		// Rename succeeded but the directory entry may not be durable yet
		return fmt.Errorf("atomic rename %s -> %s: rename succeeded but parent sync failed: %w", src, dst, err)
	}
	return nil
}

// WriteFileSync writes data to a file and ensures it is synced to disk.
// The write goes to a temp file in the same directory first, then an atomic
// rename moves it into place, so readers never observe a partial file.
func WriteFileSync(path string, data []byte, perm os.FileMode) error {
	if path == "" {
		return fmt.Errorf("write file sync: path is empty")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("write file sync %s: failed to create parent dir: %w", path, err)
	}

	// Temp file stays in the same directory to guarantee same filesystem
	tempFile := filepath.Join(dir, fmt.Sprintf(".tmp.%s.%d", filepath.Base(path), os.Getpid()))

	if perm == 0 {
		perm = 0644
	}
	f, err := os.OpenFile(tempFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("write file sync %s: failed to create temp file: %w", path, err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tempFile)
		return fmt.Errorf("write file sync %s: failed to write temp file: %w", path, err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tempFile)
		return fmt.Errorf("write file sync %s: failed to sync temp file: %w", path, err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("write file sync %s: failed to close temp file: %w", path, err)
	}

	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("write file sync %s: failed to rename temp file: %w", path, err)
	}

	if err := FsyncDir(dir); err != nil {
		return fmt.Errorf("write file sync %s: failed to sync parent dir: %w", path, err)
	}
	return nil
}

// AppendLineSync appends one full line to a file opened with O_APPEND and
// syncs it. The line (including its trailing newline) is written with a
// single Write call, so concurrent appenders never interleave partial
// records. Atomicity is at the level of one record, not bytes.
func AppendLineSync(path string, line []byte) error {
	if path == "" {
		return fmt.Errorf("append line sync: path is empty")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("append line sync %s: failed to create parent dir: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("append line sync %s: failed to open: %w", path, err)
	}
	defer f.Close()

	buf := line
	if len(buf) == 0 || buf[len(buf)-1] != '\n' {
		buf = append(append([]byte{}, line...), '\n')
	}

	if _, err := f.Write(buf); err != nil {
		return fmt.Errorf("append line sync %s: failed to write: %w", path, err)
	}

	if err := FsyncFile(f); err != nil {
		return fmt.Errorf("append line sync %s: %w", path, err)
	}
	if err := FsyncDir(dir); err != nil {
		return fmt.Errorf("append line sync %s: %w", path, err)
	}
	return nil
}
