package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRef(t *testing.T) {
	tests := []struct {
		in   string
		kind Kind
		id   string
	}{
		{"T-001", KindTask, "T-001"},
		{"PH-01", KindPhase, "PH-01"},
		{"TR-01", KindTrack, "TR-01"},
		{"IS-042", KindIssue, "IS-042"},
		{"WF-01", KindWorkflow, "WF-01"},
		{"t-001", KindTask, "T-001"},
		{" T-001 ", KindTask, "T-001"},
	}

	for _, tt := range tests {
		ref, err := ParseRef(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.kind, ref.Kind, tt.in)
		assert.Equal(t, tt.id, ref.ID, tt.in)
	}
}

func TestParseRefInvalid(t *testing.T) {
	for _, in := range []string{"", "T001", "XX-01", "general", "-01"} {
		_, err := ParseRef(in)
		assert.Error(t, err, in)
	}
}

func TestIsNotFound(t *testing.T) {
	err := NotFound(KindTask, "T-404")
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "T-404")
	assert.False(t, IsNotFound(assert.AnError))
}
