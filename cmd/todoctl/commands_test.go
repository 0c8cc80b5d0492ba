package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, db string, args ...string) (string, error) {
	t.Helper()
	cmd, opts := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--db", db}, args...))
	err := execute(context.Background(), cmd, opts)
	return out.String(), err
}

func TestTodoctlWorkflow(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "board.db")

	out, err := runCLI(t, db, "add", "Book helicopter transfer", "--priority", "urgent", "--category", "travel")
	require.NoError(t, err)
	assert.Contains(t, out, "Book helicopter transfer")

	_, err = runCLI(t, db, "add", "Send thank-you notes", "--priority", "low")
	require.NoError(t, err)

	out, err = runCLI(t, db, "list", "--sort", "priority")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "urgent")
	assert.Contains(t, lines[2], "low")

	id := strings.Fields(lines[1])[0]
	out, err = runCLI(t, db, "toggle", id)
	require.NoError(t, err)
	assert.Contains(t, out, "is now completed")

	out, err = runCLI(t, db, "stats")
	require.NoError(t, err)
	assert.Equal(t, "1 active, 1 completed\n", out)

	export := filepath.Join(dir, "backup.csv")
	_, err = runCLI(t, db, "export", "--format", "csv", "-o", export)
	require.NoError(t, err)
	raw, err := os.ReadFile(export)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "ID,Text,Category"))

	out, err = runCLI(t, db, "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 1")

	out, err = runCLI(t, filepath.Join(dir, "fresh.db"), "import", export)
	require.NoError(t, err)
	assert.Equal(t, "Successfully imported 2 todos\n", out)
}

func TestTodoctlErrors(t *testing.T) {
	db := filepath.Join(t.TempDir(), "board.db")

	_, err := runCLI(t, db, "toggle", "abc")
	assert.ErrorContains(t, err, "invalid todo id")

	_, err = runCLI(t, db, "delete", "42")
	assert.ErrorContains(t, err, "todo not found")

	_, err = runCLI(t, db, "list", "--filter", "archived")
	assert.ErrorContains(t, err, "invalid query")

	_, err = runCLI(t, db, "import", "notes.txt")
	assert.ErrorContains(t, err, "unsupported format")
}

func TestTodoctlClosesDatabaseWhenCommandFails(t *testing.T) {
	db := filepath.Join(t.TempDir(), "board.db")
	cmd, opts := newRootCmd()
	open := cmd.PersistentPreRunE
	var opened *app
	cmd.PersistentPreRunE = func(c *cobra.Command, args []string) error {
		err := open(c, args)
		opened = opts.app
		return err
	}
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--db", db, "delete", "42"})

	err := execute(context.Background(), cmd, opts)
	assert.ErrorContains(t, err, "todo not found")
	assert.Nil(t, opts.app)

	require.NotNil(t, opened)
	_, err = opened.todos.Stats(context.Background())
	assert.ErrorContains(t, err, "database is closed")
}
