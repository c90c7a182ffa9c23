package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	expected := []string{"hives", "ingest", "analyze", "assign", "sessions", "status", "serve", "migrate"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "beekeep", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestHivesCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range hivesCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"add", "list", "remove", "import"} {
		assert.True(t, names[name], "hives should have subcommand %q", name)
	}
}

func TestIngestCommand_Flags(t *testing.T) {
	flag := ingestCmd.Flags().Lookup("file")
	require.NotNil(t, flag)
	assert.Equal(t, "-", flag.DefValue)

	flag = ingestCmd.Flags().Lookup("source")
	require.NotNil(t, flag)
	assert.Equal(t, "cli", flag.DefValue)
}

func TestAnalyzeCommand_Flags(t *testing.T) {
	for _, name := range []string{"transcript", "dir"} {
		assert.NotNil(t, analyzeCmd.Flags().Lookup(name), "analyze should have --%s flag", name)
	}
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestPairAssignments(t *testing.T) {
	got, err := pairAssignments([]int{0, 2}, []string{"hive-a", "hive-b"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[1].Index)
	assert.Equal(t, "hive-b", got[1].HiveID)

	_, err = pairAssignments(nil, nil)
	assert.Error(t, err)

	_, err = pairAssignments([]int{0}, []string{"a", "b"})
	assert.Error(t, err)
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "12345678", truncateID("12345678-aaaa-bbbb"))
	assert.Equal(t, "short", truncateID("short"))
}
