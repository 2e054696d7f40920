package commands

import (
	"bytes"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand_PrintsBuildInfo(t *testing.T) {
	cmd := NewVersionCommand("1.2.3", "abc123", "2024-07-01")
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs(nil)

	require.NoError(t, cmd.Execute())
	assert.Equal(t,
		"mktwh v1.2.3\ncommit abc123, built 2024-07-01, "+runtime.Version()+"\n",
		buf.String())
}

func TestVersionCommand_Metadata(t *testing.T) {
	cmd := NewVersionCommand("dev", "", "")
	assert.Equal(t, "version", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)
}
