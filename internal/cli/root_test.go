package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clitest "github.com/leapstack-labs/mktwh/internal/cli/testutil"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestRootCmd_Commands(t *testing.T) {
	root := NewRootCmd()
	for _, name := range []string{"build", "validate", "runs", "sources", "query", "reference", "version", "completion"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
	for _, flag := range []string{"config", "data-dir", "warehouse-dir", "state", "window-start", "window-end", "tolerance", "output"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), flag)
	}
}

func TestVersion_SkipsConfig(t *testing.T) {
	t.Chdir(t.TempDir())
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "mktwh v"+Version)
}

func TestBuildValidateQuery(t *testing.T) {
	dir := clitest.SetupTestProject(t)
	t.Chdir(dir)

	out, _, err := execute(t, "build")
	require.NoError(t, err)
	clitest.AssertNoANSI(t, out)
	assert.Contains(t, out, "# Warehouse build")
	assert.Contains(t, out, "## Dimension")
	assert.Contains(t, out, "- ✓ dim_date")
	assert.Contains(t, out, "0 failed")
	assert.Contains(t, out, "✓ Built")
	assert.FileExists(t, filepath.Join(dir, "data_warehouse", "dimensions", "dim_date.csv"))
	assert.FileExists(t, filepath.Join(dir, ".mktwh", "metrics.prom"))

	out, _, err = execute(t, "validate", "--by-month")
	require.NoError(t, err)
	assert.Contains(t, out, "# Validation")
	assert.Contains(t, out, "## Rows by month")
	assert.Contains(t, out, "| dim_date | 2023-01 | 31 |")

	out, _, err = execute(t, "runs", "-o", "json")
	require.NoError(t, err)
	var runs []struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "completed", runs[0].Status)

	out, _, err = execute(t, "runs", "show", runs[0].ID)
	require.NoError(t, err)
	assert.Contains(t, out, "## Stages")
	assert.Contains(t, out, "dim_geography")

	out, _, err = execute(t, "query", "SELECT count(*) AS n FROM dim_date")
	require.NoError(t, err)
	assert.Contains(t, out, "| n |")
	assert.Contains(t, out, "| 547 |")

	_, _, err = execute(t, "query", "DROP TABLE dim_date")
	require.Error(t, err)
}

func TestBuild_JSON(t *testing.T) {
	t.Chdir(clitest.SetupTestProject(t))

	out, _, err := execute(t, "build", "-o", "json", "--skip-validate")
	require.NoError(t, err)

	var res struct {
		Success bool `json:"success"`
		Stages  []struct {
			Stage  string `json:"stage"`
			Status string `json:"status"`
		} `json:"stages"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Success)
	assert.NotEmpty(t, res.Stages)
	for _, s := range res.Stages {
		if s.Stage == "validate" {
			assert.Equal(t, "skipped", s.Status)
		}
	}
}

func TestSources(t *testing.T) {
	t.Chdir(clitest.SetupTestProject(t))

	out, _, err := execute(t, "sources", "-o", "json")
	require.NoError(t, err)
	var sources []struct {
		Stream  string `json:"stream"`
		Present bool   `json:"present"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &sources))
	assert.NotEmpty(t, sources)
	var present int
	for _, s := range sources {
		if s.Present {
			present++
		}
	}
	assert.Positive(t, present)
}

func TestBuild_MissingDataDir(t *testing.T) {
	t.Chdir(clitest.SetupTestProject(t))

	_, _, err := execute(t, "build", "--data-dir", "nowhere")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data directory")
}

func TestValidate_WithoutBuild(t *testing.T) {
	dir := clitest.SetupTestProject(t)
	t.Chdir(dir)
	require.NoError(t, os.RemoveAll(filepath.Join(dir, "data_warehouse")))

	_, _, err := execute(t, "validate")
	require.Error(t, err)
}

func TestRuns_NoLedger(t *testing.T) {
	t.Chdir(clitest.SetupTestProject(t))

	_, _, err := execute(t, "runs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mktwh build")
}
