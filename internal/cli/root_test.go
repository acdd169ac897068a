package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "objstore", cmd.Use)
	assert.Contains(t, cmd.Long, "SQLite or MongoDB")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"compile", "read", "upsert", "delete", "cleanup"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
	assert.Equal(t, "false", verbose.DefValue)

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)

	config := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, config)
	assert.Equal(t, "c", config.Shorthand)

	envFile := cmd.PersistentFlags().Lookup("env-file")
	require.NotNil(t, envFile)
	assert.Equal(t, ".env", envFile.DefValue)

	require.NotNil(t, cmd.PersistentFlags().Lookup("backend"))

	metricsFile := cmd.PersistentFlags().Lookup("metrics-file")
	require.NotNil(t, metricsFile)
	assert.Empty(t, metricsFile.DefValue)
}

func TestCommandFlagDefaults(t *testing.T) {
	tests := []struct {
		command string
		flag    string
		want    string
	}{
		{"compile", "page", "1"},
		{"compile", "limit", "0"},
		{"read", "limit", "50"},
		{"read", "include-deleted", "false"},
		{"upsert", "on-conflict", "ignore"},
		{"upsert", "index", "true"},
		{"delete", "many", "false"},
		{"delete", "hard", "false"},
		{"cleanup", "batch", "0"},
	}

	root := NewRootCommand()
	for _, tt := range tests {
		t.Run(tt.command+"/"+tt.flag, func(t *testing.T) {
			sub, _, err := root.Find([]string{tt.command})
			require.NoError(t, err)
			f := sub.Flags().Lookup(tt.flag)
			require.NotNil(t, f)
			assert.Equal(t, tt.want, f.DefValue)
		})
	}
}

func TestInvalidFormat(t *testing.T) {
	_, err := runCLI(t, "", "compile", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestVersionFlag(t *testing.T) {
	out, err := runCLI(t, "", "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "objstore version 0.1.0")
}
