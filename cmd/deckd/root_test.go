// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Deckd Contributors

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	// Keep config auto-discovery and bootstrap inside the test sandbox.
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	resetViper(t)

	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "deckd dev")
}

func TestRootCmd_UnknownCommand(t *testing.T) {
	resetViper(t)

	_, err := execute(t, "nonsense")
	assert.Error(t, err)
}

func TestInitViper_ExplicitConfigFile(t *testing.T) {
	resetViper(t)

	path := filepath.Join(t.TempDir(), "deckd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("networking:\n  listen: \"127.0.0.1:4242\"\n"), 0o600))

	_, err := execute(t, "--config", path, "version")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:4242", viper.GetString("networking.listen"))
}

func TestInitViper_MissingExplicitConfigFails(t *testing.T) {
	resetViper(t)

	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "nope.yaml"), "version")
	assert.Error(t, err)
}

func TestInitViper_DataDirFlag(t *testing.T) {
	resetViper(t)

	_, err := execute(t, "--data-dir", "/tmp/deckd-data", "version")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/deckd-data", viper.GetString("storage.data_dir"))
}
