package game

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWordPackFromBytes(t *testing.T) {
	pack, err := LoadWordPackFromBytes([]byte(`
pack:
  name: animals
  words:
    - whale
    - "  penguin  "
    - ""
    - octopus
`))
	require.NoError(t, err)
	assert.Equal(t, "animals", pack.Name)
	assert.Equal(t, []string{"whale", "penguin", "octopus"}, pack.Words)
}

func TestLoadWordPackFromBytes_MissingName(t *testing.T) {
	_, err := LoadWordPackFromBytes([]byte("pack:\n  words: [a]\n"))
	assert.Error(t, err)
}

func TestLoadWordPackFromBytes_NoWords(t *testing.T) {
	_, err := LoadWordPackFromBytes([]byte("pack:\n  name: empty\n  words: []\n"))
	assert.Error(t, err)
}

func TestLoadWordPackFromBytes_BadYAML(t *testing.T) {
	_, err := LoadWordPackFromBytes([]byte("pack: [not a map"))
	assert.Error(t, err)
}

func TestLoadWordPacksFromDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"),
		[]byte("pack:\n  name: a\n  words: [one, two]\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yml"),
		[]byte("pack:\n  name: b\n  words: [three]\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"),
		[]byte("not yaml"), 0o600))

	packs, err := LoadWordPacksFromDir(dir)
	require.NoError(t, err)
	require.Len(t, packs, 2)
}

func TestLoadWordPacksFromDir_BadPackFails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"),
		[]byte("pack:\n  name: ''\n  words: []\n"), 0o600))

	_, err := LoadWordPacksFromDir(dir)
	assert.Error(t, err)
}

func TestMergeWords(t *testing.T) {
	merged := MergeWords(
		[]string{"Apple", "banana", ""},
		[]string{"apple", "  cherry "},
	)
	assert.Equal(t, []string{"Apple", "banana", "cherry"}, merged)
}

func TestDefaultWordsNonEmpty(t *testing.T) {
	assert.NotEmpty(t, DefaultWords)
}
