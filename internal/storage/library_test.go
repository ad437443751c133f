package storage

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLibraryCreatesDirectory(t *testing.T) {
	fs := afero.NewMemMapFs()
	lib, err := NewLibrary(fs, "/photos/viewfinder")
	require.NoError(t, err)
	assert.Equal(t, "/photos/viewfinder", lib.Dir())

	ok, err := afero.DirExists(fs, "/photos/viewfinder")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSaveWritesAsset(t *testing.T) {
	fs := afero.NewMemMapFs()
	lib, err := NewLibrary(fs, "/photos")
	require.NoError(t, err)

	require.NoError(t, lib.Save("abc.png", []byte{1, 2, 3}))

	data, err := afero.ReadFile(fs, "/photos/abc.png")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)
}

func TestSaveFailsOnReadOnlyFs(t *testing.T) {
	base := afero.NewMemMapFs()
	lib := &Library{fs: afero.NewReadOnlyFs(base), dir: "/photos"}

	assert.Error(t, lib.Save("abc.png", []byte{1}))
}
