package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"gemchat/internal/config"
	"gemchat/internal/services"
	"gemchat/internal/testutils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLoader(t *testing.T) *config.Loader {
	t.Helper()
	return &config.Loader{
		ConfigDir: t.TempDir(),
		WorkDir:   t.TempDir(),
		LookupEnv: func(string) (string, bool) { return "", false },
	}
}

// runCLI executes the command tree against a file store in dataDir.
func runCLI(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()
	cmd := newCommand(testLoader(t))
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--store", config.StoreFile, "--data-dir", dataDir}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func fileConfig(dataDir string) *config.Config {
	return &config.Config{Provider: config.DefaultProvider, Store: config.StoreFile, DataDir: dataDir}
}

func TestSessionsLifecycle(t *testing.T) {
	dataDir := t.TempDir()

	out, err := runCLI(t, dataDir, "sessions", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No sessions")

	out, err = runCLI(t, dataDir, "sessions", "new")
	require.NoError(t, err)
	id := strings.TrimSpace(out)
	require.NotEmpty(t, id)

	out, err = runCLI(t, dataDir, "sessions", "list")
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "New Chat")
	header, _, _ := strings.Cut(out, "\n")
	assert.Contains(t, header, "TITLE")
	assert.NotContains(t, header, id)

	var reply bytes.Buffer
	client := testutils.NewScriptedClient(testutils.Reply("Hi", " there"))
	require.NoError(t, ask(context.Background(), fileConfig(dataDir), client, &reply, "Hello", false))
	assert.Equal(t, "Hi there\n", reply.String())

	out, err = runCLI(t, dataDir, "sessions", "show", id[:8])
	require.NoError(t, err)
	assert.Contains(t, out, "# Hello")
	assert.Contains(t, out, "Hi there")

	out, err = runCLI(t, dataDir, "sessions", "export", id, "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"title": "Hello"`)

	_, err = runCLI(t, dataDir, "sessions", "export", id, "--format", "xml")
	assert.Error(t, err)

	out, err = runCLI(t, dataDir, "sessions", "delete", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted "+id)

	out, err = runCLI(t, dataDir, "sessions", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No sessions")
}

func TestSessionsUnknownID(t *testing.T) {
	_, err := runCLI(t, t.TempDir(), "sessions", "show", "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrSessionNotFound))
}

func TestAsk_NewSessionKeepsHistorySeparate(t *testing.T) {
	dataDir := t.TempDir()
	client := testutils.NewScriptedClient(testutils.Reply("first"), testutils.Reply("second"))

	var out bytes.Buffer
	require.NoError(t, ask(context.Background(), fileConfig(dataDir), client, &out, "one", false))
	require.NoError(t, ask(context.Background(), fileConfig(dataDir), client, &out, "two", true))

	calls := client.Calls()
	require.Len(t, calls, 2)
	assert.Empty(t, calls[1].History, "a new session starts without history")

	listed, err := runCLI(t, dataDir, "sessions", "list")
	require.NoError(t, err)
	assert.Contains(t, listed, "one")
	assert.Contains(t, listed, "two")
}

func TestAsk_ContinuesActiveSession(t *testing.T) {
	dataDir := t.TempDir()
	client := testutils.NewScriptedClient(testutils.Reply("first"), testutils.Reply("second"))

	var out bytes.Buffer
	require.NoError(t, ask(context.Background(), fileConfig(dataDir), client, &out, "one", false))
	require.NoError(t, ask(context.Background(), fileConfig(dataDir), client, &out, "two", false))

	calls := client.Calls()
	require.Len(t, calls, 2)
	require.Len(t, calls[1].History, 2)
	assert.Equal(t, "one", calls[1].History[0].Content)
	assert.Equal(t, "first", calls[1].History[1].Content)
	assert.Equal(t, "first\nsecond\n", out.String())
}

func TestAsk_ProviderFailurePrintsApology(t *testing.T) {
	client := testutils.NewScriptedClient(testutils.ScriptedTurn{OpenErr: errors.New("quota exceeded")})

	var out bytes.Buffer
	err := ask(context.Background(), fileConfig(t.TempDir()), client, &out, "Hello", false)
	require.NoError(t, err)
	assert.Equal(t, services.DefaultErrorMessage+"\n", out.String())
}

func TestAsk_PartialReplyThenFailure(t *testing.T) {
	client := testutils.NewScriptedClient(testutils.ScriptedTurn{
		Chunks:    []string{"Hal"},
		StreamErr: errors.New("connection reset"),
	})

	var out bytes.Buffer
	require.NoError(t, ask(context.Background(), fileConfig(t.TempDir()), client, &out, "Hello", false))
	assert.Equal(t, "Hal\n"+services.DefaultErrorMessage+"\n", out.String())
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "gemchat v")
}

func TestInvalidStoreFlag(t *testing.T) {
	cmd := newCommand(testLoader(t))
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--store", "redis", "sessions", "list"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store")
}
