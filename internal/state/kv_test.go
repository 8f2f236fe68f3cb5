package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// kvContract runs the behaviour every backend must share.
func kvContract(t *testing.T, kv KV) {
	t.Helper()

	_, err := kv.Read("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, kv.Write("a", []byte("one")))
	got, err := kv.Read("a")
	require.NoError(t, err)
	assert.Equal(t, "one", string(got))

	require.NoError(t, kv.Write("a", []byte("two")))
	got, err = kv.Read("a")
	require.NoError(t, err)
	assert.Equal(t, "two", string(got))

	require.NoError(t, kv.Delete("a"))
	_, err = kv.Read("a")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, kv.Delete("a"), "deleting an absent key is not an error")
}

func TestFileKV_Contract(t *testing.T) {
	kv := NewFileKV(t.TempDir(), nil)
	defer kv.Close()
	kvContract(t, kv)
}

func TestSQLiteKV_Contract(t *testing.T) {
	kv, err := OpenSQLiteKV(filepath.Join(t.TempDir(), "state", "state.db"))
	require.NoError(t, err)
	defer kv.Close()
	kvContract(t, kv)
}

func TestFileKV_FixedLocations(t *testing.T) {
	dir := t.TempDir()
	hashFile := filepath.Join(dir, "registries", "last-known-config-hash.txt")
	kv := NewFileKV(filepath.Join(dir, "state"), map[string]string{
		KeyConfigHash:  hashFile,
		KeySuggestions: filepath.Join(dir, "state", "skill-suggestions.json"),
	})

	require.NoError(t, kv.Write(KeyConfigHash, []byte("abc")))
	data, err := os.ReadFile(hashFile)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))

	assert.Equal(t, filepath.Join(dir, "state", "status.json"), kv.Path(KeyStatus))
}

func TestFileKV_WriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	kv := NewFileKV(dir, nil)
	for i := 0; i < 3; i++ {
		require.NoError(t, kv.Write("k", []byte{byte('0' + i)}))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "k.json", entries[0].Name())
}

func TestSQLiteKV_KeysAndPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	kv, err := OpenSQLiteKV(path)
	require.NoError(t, err)
	require.NoError(t, kv.Write("b", []byte("2")))
	require.NoError(t, kv.Write("a", []byte("1")))
	require.NoError(t, kv.Close())

	kv, err = OpenSQLiteKV(path)
	require.NoError(t, err)
	defer kv.Close()

	keys, err := kv.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)
}
