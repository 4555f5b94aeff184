// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BizBox Contributors

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizbox/bizbox/pkg/errutil"
)

func TestDatabaseURL_FromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env-host/bizbox")
	configFile = ""

	url, err := databaseURL()
	require.NoError(t, err)
	assert.Equal(t, "postgres://env-host/bizbox", url)
}

func TestDatabaseURL_FromConfig(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	path := filepath.Join(t.TempDir(), "bizbox.yaml")
	require.NoError(t, os.WriteFile(path, []byte("db:\n  url: postgres://file-host/bizbox\n"), 0o600))
	configFile = path
	t.Cleanup(func() { configFile = "" })

	url, err := databaseURL()
	require.NoError(t, err)
	assert.Equal(t, "postgres://file-host/bizbox", url)
}

func TestDatabaseURL_EnvWinsOverConfig(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env-host/bizbox")

	path := filepath.Join(t.TempDir(), "bizbox.yaml")
	require.NoError(t, os.WriteFile(path, []byte("db:\n  url: postgres://file-host/bizbox\n"), 0o600))
	configFile = path
	t.Cleanup(func() { configFile = "" })

	url, err := databaseURL()
	require.NoError(t, err)
	assert.Equal(t, "postgres://env-host/bizbox", url)
}

func TestDatabaseURL_Missing(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	configFile = ""

	_, err := databaseURL()
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
}

func TestMigrateCommand_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	configFile = ""

	cmd := NewMigrateCmd()
	cmd.SetArgs([]string{})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	err := cmd.Execute()
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
}
