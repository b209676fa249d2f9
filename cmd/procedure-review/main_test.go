package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_List(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile("procedures.yaml", []byte(`procedures:
  - procedure_name: replace-filter
    steps:
      - instruction: Open the housing.
  - procedure_name: wipe
    steps:
      - instruction: Wipe the surface.
`), 0o644))

	var stdout, stderr bytes.Buffer
	code := run([]string{"-list"}, &stdout, &stderr)

	require.Equal(t, exitOK, code, stderr.String())
	assert.Equal(t, "replace-filter\nwipe\n", stdout.String())
}

func TestRun_LoadFailureIsJournaled(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("JOURNAL_PATH", filepath.Join(dir, "runs.db"))

	var stdout, stderr bytes.Buffer
	code := run([]string{"-procedure", "replace-filter", "-procedures-file", "missing.yaml"}, &stdout, &stderr)
	require.Equal(t, exitFailed, code)
	assert.Contains(t, stderr.String(), "load:")
	assert.Contains(t, stdout.String(), "local  skipped")

	stdout.Reset()
	code = run([]string{"-history", "5", "-procedure", "replace-filter"}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())
	assert.Contains(t, stdout.String(), "replace-filter")
	assert.Contains(t, stdout.String(), "stage=load")
}

func TestRun_NothingToDo(t *testing.T) {
	t.Chdir(t.TempDir())

	var stdout, stderr bytes.Buffer
	assert.Equal(t, exitUsage, run(nil, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "neither procedure")
}
