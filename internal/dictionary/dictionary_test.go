package dictionary

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dict.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCSV(t *testing.T) {
	path := writeCSV(t, "SHIP001,Evergreen\nSHIP002,Maersk\n")

	dict, err := LoadCSV("ships", path, map[string]int{"id": 0, "name": 1})
	require.NoError(t, err)

	assert.Equal(t, "ships", dict.Name())
	assert.Equal(t, 2, dict.Len())
	assert.True(t, dict.HasColumn("id"))
	assert.False(t, dict.HasColumn("owner"))

	v, err := dict.Value(0, "id")
	require.NoError(t, err)
	assert.Equal(t, "SHIP001", v)

	v, err = dict.Value(1, "name")
	require.NoError(t, err)
	assert.Equal(t, "Maersk", v)
}

func TestLoadCSVShortRows(t *testing.T) {
	path := writeCSV(t, "SHIP001,Evergreen\nSHIP002\n")

	dict, err := LoadCSV("ships", path, map[string]int{"id": 0, "name": 1})
	require.NoError(t, err)

	v, err := dict.Value(1, "name")
	require.NoError(t, err)
	assert.Equal(t, "", v, "missing columns become empty strings")
}

func TestLoadCSVMissingFile(t *testing.T) {
	_, err := LoadCSV("ships", "/nonexistent/ships.csv", map[string]int{"id": 0})
	require.Error(t, err)
}

func TestValueOutOfRange(t *testing.T) {
	dict := New("codes", []map[string]string{{"code": "A"}})

	_, err := dict.Value(5, "code")
	require.Error(t, err)

	_, err = dict.Value(0, "missing")
	require.Error(t, err)
}

func TestStore(t *testing.T) {
	store := NewStore()
	store.Add(New("ships", []map[string]string{{"id": "SHIP001"}}))

	dict, ok := store.Get("ships")
	require.True(t, ok)
	assert.Equal(t, 1, dict.Len())

	_, ok = store.Get("ports")
	assert.False(t, ok)
	assert.ElementsMatch(t, []string{"ships"}, store.Names())
}
