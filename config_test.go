package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ConnectionConfig
		wantErr string
	}{
		{"ok mysql", ConnectionConfig{Label: "a", Driver: "mysql", Host: "h"}, ""},
		{"ok sqlite", ConnectionConfig{Label: "a", Driver: "sqlite", Database: "x.db"}, ""},
		{"missing label", ConnectionConfig{Driver: "mysql", Host: "h"}, "label is required"},
		{"blank label", ConnectionConfig{Label: "  ", Driver: "mysql", Host: "h"}, "label is required"},
		{"unknown driver", ConnectionConfig{Label: "a", Driver: "oracle", Host: "h"}, "unknown driver"},
		{"missing host", ConnectionConfig{Label: "a", Driver: "postgres"}, "host is required"},
		{"missing path", ConnectionConfig{Label: "a", Driver: "sqlite"}, "database path is required"},
		{"bad port", ConnectionConfig{Label: "a", Driver: "pgx", Host: "h", Port: 70000}, "out of range"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestConnectionConfigTagsAndAddress(t *testing.T) {
	cfg := ConnectionConfig{Label: "a", Driver: "mysql", Host: "db", Port: 3307, Tags: " prod, ,eu-west ,"}
	assert.Equal(t, []string{"prod", "eu-west"}, cfg.TagList())
	assert.Equal(t, "db:3307", cfg.Address())

	assert.Nil(t, ConnectionConfig{}.TagList())
	assert.Equal(t, "db", ConnectionConfig{Host: "db"}.Address())
	assert.Equal(t, "/tmp/x.db", ConnectionConfig{Database: "/tmp/x.db"}.Address())
}

func TestConnectionConfigCloneIsDeep(t *testing.T) {
	cfg := ConnectionConfig{
		Label:       "a",
		Credentials: &Credentials{User: "u"},
		Params:      map[string]string{"k": "v"},
	}
	c := cfg.clone()
	c.Credentials.User = "other"
	c.Params["k"] = "changed"

	assert.Equal(t, "u", cfg.Credentials.User)
	assert.Equal(t, "v", cfg.Params["k"])
}

func TestFormatForPath(t *testing.T) {
	for path, want := range map[string]ConfigFormat{
		"a.json":     FormatJSON,
		"a.JSON":     FormatJSON,
		"dir/a.yaml": FormatYAML,
		"a.yml":      FormatYAML,
	} {
		got, err := FormatForPath(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}

	_, err := FormatForPath("a.toml")
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestEncodeDecodeConfigs(t *testing.T) {
	cfgs := []ConnectionConfig{
		{Label: "dev", Driver: "pgx", Host: "localhost", Port: 5432, Database: "app",
			Credentials: &Credentials{User: "u", Password: "p"}, Tags: "local", ReadOnly: true},
		{Label: "file", Driver: "sqlite", Database: "/tmp/f.db", Params: map[string]string{"_pragma": "foreign_keys(1)"}},
	}

	for _, format := range []ConfigFormat{FormatJSON, FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, EncodeConfigs(&buf, format, cfgs))

			got, err := DecodeConfigs(&buf, format)
			require.NoError(t, err)
			assert.Equal(t, cfgs, got)
		})
	}
}

func TestDecodeConfigs(t *testing.T) {
	t.Run("empty document", func(t *testing.T) {
		got, err := DecodeConfigs(strings.NewReader("  \n"), FormatYAML)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("unknown json field", func(t *testing.T) {
		_, err := DecodeConfigs(strings.NewReader(`{"connections":[{"label":"a","colour":"red"}]}`), FormatJSON)
		assert.Error(t, err)
	})

	t.Run("unknown yaml field", func(t *testing.T) {
		_, err := DecodeConfigs(strings.NewReader("connections:\n  - label: a\n    colour: red\n"), FormatYAML)
		assert.Error(t, err)
	})

	t.Run("yaml readOnly key", func(t *testing.T) {
		got, err := DecodeConfigs(strings.NewReader("connections:\n  - label: a\n    driver: sqlite\n    database: x.db\n    readOnly: true\n"), FormatYAML)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.True(t, got[0].ReadOnly)
	})
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "connections.yaml")

	store, err := NewFileStore(path)
	require.NoError(t, err)
	assert.Equal(t, path, store.Path())

	loaded, err := store.Load()
	require.NoError(t, err, "missing file is an empty set")
	assert.Empty(t, loaded)

	cfgs := []ConnectionConfig{sqliteCfg("one"), sqliteCfg("two")}
	require.NoError(t, store.Save(cfgs))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, cfgs, loaded)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")

	_, err = NewFileStore(filepath.Join(dir, "connections.ini"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
