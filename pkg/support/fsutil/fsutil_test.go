// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	exists, err := FileExists(dir)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = FileExists(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestReplaceTildeInDir(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := ReplaceTildeInDir("~/checkpoints/model")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "checkpoints", "model"), got)

	got, err = ReplaceTildeInDir("~")
	require.NoError(t, err)
	assert.Equal(t, filepath.Clean(home), got)

	got, err = ReplaceTildeInDir("/tmp/model")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/model", got)

	_, err = ReplaceTildeInDir("~no_such_user_for_sure/model")
	require.Error(t, err)
}
