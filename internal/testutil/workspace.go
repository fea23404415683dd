// Package testutil provides helpers shared across test packages.
package testutil

import (
	"path/filepath"
	"testing"
)

// Workspace creates an isolated conductor home for a test and points
// CONDUCTOR_HOME at it. Cleanup is automatic via t.TempDir.
func Workspace(t *testing.T) string {
	t.Helper()
	home := filepath.Join(t.TempDir(), ".conductor")
	t.Setenv("CONDUCTOR_HOME", home)
	return home
}
