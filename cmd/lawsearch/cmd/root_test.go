package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_RegistersSubcommands(t *testing.T) {
	root := NewRootCmd()

	want := []string{"search", "detail", "articles", "collect", "serve"}
	for _, name := range want {
		found := false
		for _, sub := range root.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		assert.True(t, found, "missing subcommand %s", name)
	}
}

func TestRootCmd_Help(t *testing.T) {
	root := NewRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"--help"})

	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "lawsearch")
	assert.Contains(t, buf.String(), "search")
}

func TestSearchCmd_FlagDefaults(t *testing.T) {
	cmd := newSearchCmd()

	mode, err := cmd.Flags().GetString("mode")
	require.NoError(t, err)
	assert.Equal(t, "hybrid", mode)

	limit, err := cmd.Flags().GetInt("limit")
	require.NoError(t, err)
	assert.Zero(t, limit)
}
