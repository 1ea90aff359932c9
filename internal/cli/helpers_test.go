package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const counterSpec = `package specs

store: counter: {
	state: n: 0
	getters: double: "n * 2"
	actions: {
		increment: n: "n + 1"
		add: n:       "n + args[0]"
	}
	persist: version: "1"
}
`

const prefsSpec = `package specs

store: prefs: {
	state: {
		theme:    "dark"
		fontSize: 14
	}
	actions: toggleTheme: theme: "theme == \"dark\" ? \"light\" : \"dark\""
	persist: {
		version: "2"
		codec:   "yaml"
	}
}
`

const burstScenario = `name: counter_burst
description: three increments, one write
specs: [counter.cue]
session_id: cli-session
steps:
  - action: counter.increment
  - action: counter.increment
  - action: counter.increment
  - flush: true
assertions:
  - type: state
    store: counter
    expect: { n: 3 }
  - type: write_count
    key: gudam_data__counter
    count: 2
`

// writeFiles writes name -> content into dir and returns dir.
func writeFiles(t *testing.T, dir string, files map[string]string) string {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return dir
}

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeCommand(t, NewRootCommand(), args...)
}

func executeCommand(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}
