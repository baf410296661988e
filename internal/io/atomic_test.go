package io

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestWriteJSONAtomic_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")

	require.NoError(t, WriteJSONAtomic(path, doc{Name: "bandit", Count: 7}))

	var got doc
	require.NoError(t, ReadJSON(path, &got))
	assert.Equal(t, doc{Name: "bandit", Count: 7}, got)

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should not survive a successful write")
}

func TestWriteJSONAtomic_OverwriteReplacesWholeDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, WriteJSONAtomic(path, doc{Name: "first", Count: 1}))
	require.NoError(t, WriteJSONAtomic(path, doc{Name: "second", Count: 2}))

	var got doc
	require.NoError(t, ReadJSON(path, &got))
	assert.Equal(t, "second", got.Name)
}

func TestReadJSON_MissingFile(t *testing.T) {
	var got doc
	err := ReadJSON(filepath.Join(t.TempDir(), "absent.json"), &got)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadJSON_CorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{truncated"), 0o644))

	var got doc
	err := ReadJSON(path, &got)
	require.Error(t, err)
	assert.False(t, os.IsNotExist(err))
}
