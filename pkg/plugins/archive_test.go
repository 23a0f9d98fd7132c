package plugins

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenArchive(t *testing.T) {
	dir := t.TempDir()
	path := writePackage(t, dir, "greeter.pkg", greeterPackage("Greeter"))

	a, err := OpenArchive(path)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, path, a.Path())
	assert.True(t, a.Has(ManifestEntry))
	assert.True(t, a.Has("com/example/Greeter.lua"))
	assert.False(t, a.Has("com/example/"))
	assert.Contains(t, a.Entries(), "messages_de.properties")

	data, err := a.ReadEntry("messages.properties")
	require.NoError(t, err)
	assert.Equal(t, "greeting=Hello\n", string(data))

	_, err = a.ReadEntry("missing.txt")
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestOpenArchiveNotAPackage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("just text"), 0644))

	_, err := OpenArchive(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotAPackage)

	_, err = OpenArchive(filepath.Join(dir, "absent.pkg"))
	assert.ErrorIs(t, err, ErrNotAPackage)
}

func TestArchiveEntriesAreCopies(t *testing.T) {
	path := writePackage(t, t.TempDir(), "greeter.pkg", greeterPackage("Greeter"))

	a, err := OpenArchive(path)
	require.NoError(t, err)
	defer a.Close()

	entries := a.Entries()
	entries[0] = "changed"
	assert.NotEqual(t, "changed", a.Entries()[0])
}
